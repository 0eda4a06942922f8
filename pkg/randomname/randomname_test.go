package randomname_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/pixelgrid/signupmill/pkg/randomname"
	"github.com/stretchr/testify/require"
)

var usernameShape = regexp.MustCompile(`^[a-z]+\.[a-z]+\d{4}$`)

func TestUsernameShape(t *testing.T) {
	for range 50 {
		u := randomname.Username()
		require.Regexp(t, usernameShape, u)
		require.Equal(t, strings.ToLower(u), u)
	}
}

func TestFullNameShape(t *testing.T) {
	for range 50 {
		name := randomname.FullName()
		parts := strings.Split(name, " ")
		require.Len(t, parts, 2)
		for _, p := range parts {
			require.NotEmpty(t, p)
			require.Equal(t, strings.ToUpper(p[:1]), p[:1])
		}
	}
}

func TestSeedIsDeterministic(t *testing.T) {
	randomname.Seed(42)
	a := randomname.Username()
	b := randomname.FullName()

	randomname.Seed(42)
	require.Equal(t, a, randomname.Username())
	require.Equal(t, b, randomname.FullName())
}
