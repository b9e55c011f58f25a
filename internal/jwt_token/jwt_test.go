package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "reloop/pkg/domain"
	dErrors "reloop/pkg/domain-errors"
)

var jwtService = NewJWTService("test-signing-key", "reloop", time.Minute)

func Test_GenerateAndValidate(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(id.UserID("admin-7"), "super_admin", time.Now())
	require.NoError(t, err)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-7", claims.UserID)
	assert.Equal(t, "super_admin", claims.Role)
	assert.Equal(t, "admin-7", claims.Subject)
}

func Test_GenerateRejectsEmptySubject(t *testing.T) {
	_, err := jwtService.GenerateAccessToken("", "", time.Now())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func Test_ValidateToken_Expired(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(id.UserID("u-1"), "", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_Garbage(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.ErrorContains(t, err, "invalid token")
}

func Test_ValidateToken_RejectsAlgorithmConfusion(t *testing.T) {
	claims := AccessTokenClaims{
		UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "reloop",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	cases := []struct {
		name       string
		signMethod jwt.SigningMethod
		signKey    any
	}{
		{name: "hs512 header rejected", signMethod: jwt.SigningMethodHS512, signKey: []byte("test-signing-key")},
		{name: "alg none rejected", signMethod: jwt.SigningMethodNone, signKey: jwt.UnsafeAllowNoneSignatureType},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			signed, err := jwt.NewWithClaims(tt.signMethod, claims).SignedString(tt.signKey)
			require.NoError(t, err)

			_, err = jwtService.ValidateToken(signed)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func Test_ValidateToken_RejectsForeignIssuer(t *testing.T) {
	other := NewJWTService("test-signing-key", "someone-else", time.Minute)
	token, err := other.GenerateAccessToken(id.UserID("u-1"), "", time.Now())
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorContains(t, err, "issuer")
}

func Test_MiddlewareAdapter(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(id.UserID("u-9"), "zone_manager", time.Now())
	require.NoError(t, err)

	claims, err := NewMiddlewareAdapter(jwtService).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-9", claims.UserID)
	assert.Equal(t, "zone_manager", claims.Role)
}
