package cryptox_test

import (
	"strings"
	"testing"

	"github.com/pixelgrid/signupmill/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGeneratePassword(t *testing.T) {
	t.Run("meets complexity constraints", func(t *testing.T) {
		for range 100 {
			pw, err := cryptox.GeneratePassword(12)
			require.NoError(t, err)
			require.Len(t, pw, 12)

			require.True(t, strings.ContainsAny(pw, "abcdefghijklmnopqrstuvwxyz"), "missing lowercase: %q", pw)
			require.True(t, strings.ContainsAny(pw, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"), "missing uppercase: %q", pw)
			require.True(t, strings.ContainsAny(pw, "0123456789"), "missing digit: %q", pw)
			require.True(t, strings.ContainsAny(pw, "!@#$%^&*-_=+?"), "missing symbol: %q", pw)
		}
	})

	t.Run("rejects too-short lengths", func(t *testing.T) {
		_, err := cryptox.GeneratePassword(4)
		require.Error(t, err)
	})

	t.Run("values are not reused", func(t *testing.T) {
		seen := make(map[string]struct{})
		for range 50 {
			pw := cryptox.MustGeneratePassword(16)
			_, dup := seen[pw]
			require.False(t, dup, "duplicate password %q", pw)
			seen[pw] = struct{}{}
		}
	})
}
