package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/digital-banking/internal/domain"
)

const testSecret = "test-jwt-secret"

func testClaims() Claims {
	return Claims{UserID: 42, Username: "jdoe", Role: domain.RoleManager}
}

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken(testClaims(), testSecret, 24*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "jdoe", claims.Username)
	assert.Equal(t, domain.RoleManager, claims.Role)
}

func TestValidateToken(t *testing.T) {
	validToken, err := GenerateToken(testClaims(), testSecret, 24*time.Hour)
	require.NoError(t, err)

	expiredToken, err := GenerateToken(testClaims(), testSecret, -1*time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name      string
		token     string
		secret    string
		wantErrIs error
	}{
		{
			name:      "expired token",
			token:     expiredToken,
			secret:    testSecret,
			wantErrIs: jwt.ErrTokenExpired,
		},
		{
			name:      "wrong secret",
			token:     validToken,
			secret:    "wrong-secret",
			wantErrIs: jwt.ErrTokenSignatureInvalid,
		},
		{
			name:      "malformed token",
			token:     "not.a.valid.jwt",
			secret:    testSecret,
			wantErrIs: jwt.ErrTokenMalformed,
		},
		{
			name:      "empty token",
			token:     "",
			secret:    testSecret,
			wantErrIs: jwt.ErrTokenMalformed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateToken(tc.token, tc.secret)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErrIs)
		})
	}
}

func TestValidateToken_RejectsNonHMAC(t *testing.T) {
	// Algorithm confusion: a token signed with "none" should be rejected
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Username: "jdoe",
		Role:     string(domain.RoleAdmin),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateToken(signed, testSecret)
	require.Error(t, err)
}

func TestValidateToken_RejectsForeignIssuer(t *testing.T) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: string(domain.RoleUser),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ValidateToken(signed, testSecret)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestHasRole(t *testing.T) {
	ctx := ContextWithClaims(context.Background(), &Claims{UserID: 1, Role: domain.RoleUser})

	assert.True(t, HasRole(ctx, domain.RoleUser, domain.RoleAdmin))
	assert.False(t, HasRole(ctx, domain.RoleAdmin, domain.RoleManager))
	assert.False(t, HasRole(context.Background(), domain.RoleUser))

	id, ok := UserIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(1), id)
}
