package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	secret := []byte("k")
	token, err := GenerateToken("indexer", secret, time.Hour)
	require.NoError(t, err)
	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "indexer", claims.Client)
	require.Equal(t, "indexer", claims.Subject)
}

func TestParseRejects(t *testing.T) {
	secret := []byte("k")

	expired, err := GenerateToken("indexer", secret, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired, secret)
	require.Error(t, err)

	good, err := GenerateToken("indexer", secret, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(good, []byte("other"))
	require.Error(t, err)

	noClient, err := GenerateToken("", secret, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(noClient, secret)
	require.Error(t, err)

	none := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, Claims{Client: "x"})
	unsigned, err := none.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(unsigned, secret)
	require.Error(t, err)
}
