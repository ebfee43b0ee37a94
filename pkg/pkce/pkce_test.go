package pkce

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Test vector from RFC 7636 Appendix B.
const (
	rfcVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	rfcChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

func TestChallengeS256(t *testing.T) {
	t.Parallel()

	got, err := Challenge(rfcVerifier, MethodS256)
	require.NoError(t, err)
	require.Equal(t, rfcChallenge, got)

	// Deterministic.
	again, err := Challenge(rfcVerifier, MethodS256)
	require.NoError(t, err)
	require.Equal(t, got, again)
}

func TestChallengePlain(t *testing.T) {
	t.Parallel()

	got, err := Challenge(rfcVerifier, MethodPlain)
	require.NoError(t, err)
	require.Equal(t, rfcVerifier, got)
}

func TestChallengeUnknownMethod(t *testing.T) {
	t.Parallel()

	_, err := Challenge(rfcVerifier, "S512")
	require.Error(t, err)
}

func TestGenerateVerifier(t *testing.T) {
	t.Parallel()

	t.Run("default length", func(t *testing.T) {
		v, err := GenerateVerifier(0)
		require.NoError(t, err)
		require.Len(t, v, DefaultVerifierLength)
		require.True(t, ValidVerifier(v))
	})

	t.Run("clamps short lengths up", func(t *testing.T) {
		v, err := GenerateVerifier(10)
		require.NoError(t, err)
		require.Len(t, v, MinVerifierLength)
	})

	t.Run("clamps long lengths down", func(t *testing.T) {
		v, err := GenerateVerifier(4096)
		require.NoError(t, err)
		require.Len(t, v, MaxVerifierLength)
	})

	t.Run("uses only unreserved characters", func(t *testing.T) {
		v, err := GenerateVerifier(128)
		require.NoError(t, err)
		for _, r := range v {
			require.True(t, strings.ContainsRune(unreserved, r), "unexpected rune %q", r)
		}
	})
}

func TestVerifyChallenge(t *testing.T) {
	t.Parallel()

	t.Run("accepts RFC test vector", func(t *testing.T) {
		require.True(t, VerifyChallenge(rfcVerifier, rfcChallenge, MethodS256))
	})

	t.Run("rejects wrong verifier", func(t *testing.T) {
		wrong := strings.Repeat("a", MinVerifierLength)
		require.False(t, VerifyChallenge(wrong, rfcChallenge, MethodS256))
	})

	t.Run("plain compares directly", func(t *testing.T) {
		v := strings.Repeat("x", MinVerifierLength)
		require.True(t, VerifyChallenge(v, v, MethodPlain))
		require.False(t, VerifyChallenge(v, v+"y", MethodPlain))
	})

	t.Run("rejects verifier below minimum length", func(t *testing.T) {
		short := strings.Repeat("a", MinVerifierLength-1)
		challenge, err := Challenge(short, MethodS256)
		require.NoError(t, err)
		require.False(t, VerifyChallenge(short, challenge, MethodS256))
	})

	t.Run("rejects verifier with forbidden characters", func(t *testing.T) {
		bad := strings.Repeat("a", MinVerifierLength-1) + "!"
		require.False(t, VerifyChallenge(bad, rfcChallenge, MethodPlain))
	})

	t.Run("rejects unknown method", func(t *testing.T) {
		require.False(t, VerifyChallenge(rfcVerifier, rfcChallenge, "md5"))
	})
}
