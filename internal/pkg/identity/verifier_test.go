package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/chatpay_server/config"
)

const testSecret = "test-identity-secret"

func newHS256Verifier(t *testing.T) *JWTVerifier {
	t.Helper()

	v, err := NewJWTVerifier(config.IdentityConfig{Secret: testSecret})
	require.NoError(t, err)
	return v
}

func publicKeyPEM(t *testing.T, key *rsa.PrivateKey, headers map[string]string) []byte {
	t.Helper()

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Headers: headers, Bytes: der})
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims *Claims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTVerifier_HS256(t *testing.T) {
	v := newHS256Verifier(t)
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		token, err := GenerateToken("uid_123", testSecret, time.Hour)
		require.NoError(t, err)

		userID, err := v.VerifyIDToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "uid_123", userID)
	})

	t.Run("user_id claim fallback", func(t *testing.T) {
		claims := NewClaims("", time.Hour)
		claims.UserID = "legacy_uid"
		token, err := SignHS256(claims, testSecret)
		require.NoError(t, err)

		userID, err := v.VerifyIDToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "legacy_uid", userID)
	})

	t.Run("missing subject", func(t *testing.T) {
		token, err := SignHS256(NewClaims("", time.Hour), testSecret)
		require.NoError(t, err)

		_, err = v.VerifyIDToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := GenerateToken("uid_123", "different-secret", time.Hour)
		require.NoError(t, err)

		_, err = v.VerifyIDToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := NewClaims("uid_123", time.Hour)
		claims.IssuedAt = jwt.NewNumericDate(time.Now().Add(-3 * time.Hour))
		claims.NotBefore = claims.IssuedAt
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-2 * time.Hour))
		token, err := SignHS256(claims, testSecret)
		require.NoError(t, err)

		_, err = v.VerifyIDToken(ctx, token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("missing expiration", func(t *testing.T) {
		claims := NewClaims("uid_123", time.Hour)
		claims.ExpiresAt = nil
		token, err := SignHS256(claims, testSecret)
		require.NoError(t, err)

		_, err = v.VerifyIDToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("empty and malformed", func(t *testing.T) {
		_, err := v.VerifyIDToken(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidToken)

		_, err = v.VerifyIDToken(ctx, "not-a-jwt-at-all")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, NewClaims("uid_123", time.Hour))
		s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = v.VerifyIDToken(ctx, s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		token, _ := GenerateToken("uid_123", testSecret, time.Hour)

		_, err := v.VerifyIDToken(cctx, token)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestJWTVerifier_IssuerAndAudience(t *testing.T) {
	v, err := NewJWTVerifier(config.IdentityConfig{Secret: testSecret, ProjectID: "chat-app"})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("matching issuer and audience", func(t *testing.T) {
		claims := NewClaims("uid_1", time.Hour)
		claims.Issuer = "https://securetoken.google.com/chat-app"
		claims.Audience = jwt.ClaimStrings{"chat-app"}
		token, err := SignHS256(claims, testSecret)
		require.NoError(t, err)

		userID, err := v.VerifyIDToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "uid_1", userID)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := NewClaims("uid_1", time.Hour)
		claims.Issuer = "https://securetoken.google.com/chat-app"
		claims.Audience = jwt.ClaimStrings{"other-app"}
		token, err := SignHS256(claims, testSecret)
		require.NoError(t, err)

		_, err = v.VerifyIDToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing issuer", func(t *testing.T) {
		token, err := GenerateToken("uid_1", testSecret, time.Hour)
		require.NoError(t, err)

		_, err = v.VerifyIDToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestJWTVerifier_RS256(t *testing.T) {
	ctx := context.Background()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	t.Run("pem file", func(t *testing.T) {
		path := writeFile(t, "keys.pem", publicKeyPEM(t, key, nil))
		v, err := NewJWTVerifier(config.IdentityConfig{PublicKeysFile: path})
		require.NoError(t, err)

		userID, err := v.VerifyIDToken(ctx, signRS256(t, key, "", NewClaims("uid_rsa", time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, "uid_rsa", userID)

		_, err = v.VerifyIDToken(ctx, signRS256(t, otherKey, "", NewClaims("uid_rsa", time.Hour)))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("json key map selects by kid", func(t *testing.T) {
		keys := map[string]string{
			"kid-1": string(publicKeyPEM(t, key, nil)),
			"kid-2": string(publicKeyPEM(t, otherKey, nil)),
		}
		data, err := json.Marshal(keys)
		require.NoError(t, err)
		path := writeFile(t, "keys.json", data)

		v, err := NewJWTVerifier(config.IdentityConfig{PublicKeysFile: path})
		require.NoError(t, err)

		userID, err := v.VerifyIDToken(ctx, signRS256(t, otherKey, "kid-2", NewClaims("uid_2", time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, "uid_2", userID)

		// kid 与签名密钥不匹配
		_, err = v.VerifyIDToken(ctx, signRS256(t, key, "kid-2", NewClaims("uid_2", time.Hour)))
		assert.ErrorIs(t, err, ErrInvalidToken)

		_, err = v.VerifyIDToken(ctx, signRS256(t, key, "kid-unknown", NewClaims("uid_2", time.Hour)))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("hs256 rejected when only rsa configured", func(t *testing.T) {
		path := writeFile(t, "keys.pem", publicKeyPEM(t, key, nil))
		v, err := NewJWTVerifier(config.IdentityConfig{PublicKeysFile: path})
		require.NoError(t, err)

		token, err := GenerateToken("uid_1", testSecret, time.Hour)
		require.NoError(t, err)

		_, err = v.VerifyIDToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewJWTVerifier_Errors(t *testing.T) {
	t.Run("no key configured", func(t *testing.T) {
		_, err := NewJWTVerifier(config.IdentityConfig{})
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewJWTVerifier(config.IdentityConfig{PublicKeysFile: filepath.Join(t.TempDir(), "nope.pem")})
		assert.Error(t, err)
	})

	t.Run("file without keys", func(t *testing.T) {
		path := writeFile(t, "empty.pem", []byte("no pem here"))
		_, err := NewJWTVerifier(config.IdentityConfig{PublicKeysFile: path})
		assert.Error(t, err)
	})

	t.Run("bad json", func(t *testing.T) {
		path := writeFile(t, "bad.json", []byte(`{"kid": "not a pem"}`))
		_, err := NewJWTVerifier(config.IdentityConfig{PublicKeysFile: path})
		assert.Error(t, err)
	})
}
