package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Character classes for password generation. Symbols are limited to ones
// commonly accepted by signup forms.
const (
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*-_=+?"
)

// MinPasswordLength is the smallest length GeneratePassword accepts. Four
// guaranteed class characters need room to breathe.
const MinPasswordLength = 8

// GeneratePassword returns a random password of the given length containing
// at least one lowercase letter, one uppercase letter, one digit and one
// symbol. Randomness comes from crypto/rand.
func GeneratePassword(length int) (string, error) {
	if length < MinPasswordLength {
		return "", fmt.Errorf("password length must be at least %d, got %d", MinPasswordLength, length)
	}

	all := lowerChars + upperChars + digitChars + symbolChars

	buf := make([]byte, length)

	// One guaranteed character per class, the rest drawn from the full set.
	classes := []string{lowerChars, upperChars, digitChars, symbolChars}
	for i, class := range classes {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}
	for i := len(classes); i < length; i++ {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}

	// Shuffle so the guaranteed characters don't sit at fixed positions.
	for i := len(buf) - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf), nil
}

// MustGeneratePassword is like GeneratePassword but panics on error.
// Randomness failure is unrecoverable anyway.
func MustGeneratePassword(length int) string {
	pw, err := GeneratePassword(length)
	if err != nil {
		panic(fmt.Sprintf("cryptox: failed to generate password: %v", err))
	}
	return pw
}

func randomChar(set string) (byte, error) {
	i, err := randomIndex(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random index: %w", err)
	}
	return int(v.Int64()), nil
}
