package identity

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/qs3c/chatpay_server/config"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Verifier 校验身份令牌，返回稳定的用户 ID
type Verifier interface {
	VerifyIDToken(ctx context.Context, token string) (string, error)
}

// Claims ID 令牌声明，用户 ID 取自 sub，兼容 user_id
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type JWTVerifier struct {
	secret     []byte
	keys       map[string]*rsa.PublicKey
	defaultKey *rsa.PublicKey
	parser     *jwt.Parser
}

// NewJWTVerifier 根据配置构建校验器，公钥文件只在启动时读取一次
func NewJWTVerifier(cfg config.IdentityConfig) (*JWTVerifier, error) {
	v := &JWTVerifier{keys: make(map[string]*rsa.PublicKey)}
	methods := make([]string, 0, 2)

	if cfg.Secret != "" {
		v.secret = []byte(cfg.Secret)
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}

	if cfg.PublicKeysFile != "" {
		data, err := os.ReadFile(cfg.PublicKeysFile)
		if err != nil {
			return nil, fmt.Errorf("read identity public keys: %w", err)
		}
		if err := v.loadKeys(data); err != nil {
			return nil, err
		}
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}

	if len(methods) == 0 {
		return nil, errors.New("identity: no verification key configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(30 * time.Second),
	}
	if iss := cfg.IdentityIssuer(); iss != "" {
		opts = append(opts, jwt.WithIssuer(iss))
	}
	if aud := cfg.IdentityAudience(); aud != "" {
		opts = append(opts, jwt.WithAudience(aud))
	}
	v.parser = jwt.NewParser(opts...)

	return v, nil
}

// loadKeys 支持 JSON（kid -> PEM 证书）或多个 PEM 块
func (v *JWTVerifier) loadKeys(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var certs map[string]string
		if err := json.Unmarshal(trimmed, &certs); err != nil {
			return fmt.Errorf("parse identity key map: %w", err)
		}
		for kid, certPEM := range certs {
			key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(certPEM))
			if err != nil {
				return fmt.Errorf("parse identity key %q: %w", kid, err)
			}
			v.keys[kid] = key
		}
	} else {
		rest := trimmed
		for {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				break
			}
			key, err := jwt.ParseRSAPublicKeyFromPEM(pem.EncodeToMemory(block))
			if err != nil {
				return fmt.Errorf("parse identity key: %w", err)
			}
			if v.defaultKey == nil {
				v.defaultKey = key
			}
			if kid := block.Headers["kid"]; kid != "" {
				v.keys[kid] = key
			}
		}
	}

	if len(v.keys) == 0 && v.defaultKey == nil {
		return errors.New("identity: public keys file contains no keys")
	}
	if v.defaultKey == nil && len(v.keys) == 1 {
		for _, key := range v.keys {
			v.defaultKey = key
		}
	}
	return nil
}

func (v *JWTVerifier) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if v.secret == nil {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	case *jwt.SigningMethodRSA:
		if kid, ok := token.Header["kid"].(string); ok && kid != "" {
			if key, ok := v.keys[kid]; ok {
				return key, nil
			}
			if len(v.keys) > 0 {
				return nil, fmt.Errorf("%w: unknown key id %q", ErrInvalidToken, kid)
			}
		}
		if v.defaultKey != nil {
			return v.defaultKey, nil
		}
		return nil, ErrInvalidToken
	default:
		return nil, ErrInvalidToken
	}
}

// VerifyIDToken 每次调用都完整校验，不缓存结果
func (v *JWTVerifier) VerifyIDToken(ctx context.Context, tokenString string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, v.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	userID := claims.Subject
	if userID == "" {
		userID = claims.UserID
	}
	if userID == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return userID, nil
}
