package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// NewClaims 构造开发用的 ID 令牌声明
func NewClaims(userID string, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

// SignHS256 用共享密钥签发令牌，仅用于开发和测试
func SignHS256(claims *Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// GenerateToken 生成指定用户的 HS256 ID 令牌
func GenerateToken(userID, secret string, ttl time.Duration) (string, error) {
	return SignHS256(NewClaims(userID, ttl), secret)
}
