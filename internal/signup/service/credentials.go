package service

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/pixelgrid/signupmill/pkg/cryptox"
	"github.com/pixelgrid/signupmill/pkg/randomname"
)

// Credentials are the fresh identity a single signup attempt uses. Nothing
// here is reused across attempts.
type Credentials struct {
	LocalPart string
	Domain    string
	FullName  string
	Password  string
}

// CredentialGenerator draws random identities from a configured mailbox
// domain allow-list.
type CredentialGenerator struct {
	domains        []string
	passwordLength int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewCredentialGenerator creates a generator. At least one mailbox domain is
// required; passwordLength below the cryptox minimum is an error.
func NewCredentialGenerator(domains []string, passwordLength int) (*CredentialGenerator, error) {
	if len(domains) == 0 {
		return nil, fmt.Errorf("at least one mailbox domain is required")
	}
	if passwordLength < cryptox.MinPasswordLength {
		return nil, fmt.Errorf("password length must be at least %d, got %d",
			cryptox.MinPasswordLength, passwordLength)
	}
	return &CredentialGenerator{
		domains:        domains,
		passwordLength: passwordLength,
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Generate returns a fresh random identity.
func (g *CredentialGenerator) Generate() (Credentials, error) {
	password, err := cryptox.GeneratePassword(g.passwordLength)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to generate password: %w", err)
	}

	g.mu.Lock()
	domain := g.domains[g.rnd.Intn(len(g.domains))]
	g.mu.Unlock()

	return Credentials{
		LocalPart: sanitizeLocalPart(randomname.Username()),
		Domain:    domain,
		FullName:  randomname.FullName(),
		Password:  password,
	}, nil
}

// sanitizeLocalPart lower-cases and strips anything a mailbox service might
// reject from a local part, keeping letters, digits and dots.
func sanitizeLocalPart(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), ".")
}
