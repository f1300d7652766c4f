package rpc

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// JWTConfig enables HS256 bearer authentication on mutating methods.
type JWTConfig struct {
	Enable         bool
	HSSecretEnv    string
	Issuer         string
	Audience       string
	MaxSkewSeconds int64
}

type authenticator struct {
	enabled  bool
	secret   []byte
	issuer   string
	audience string
	skew     time.Duration
}

func newAuthenticator(cfg JWTConfig) (*authenticator, error) {
	if !cfg.Enable {
		return &authenticator{}, nil
	}
	env := strings.TrimSpace(cfg.HSSecretEnv)
	if env == "" {
		return nil, errors.New("rpc: jwt secret env not configured")
	}
	secret := strings.TrimSpace(os.Getenv(env))
	if secret == "" {
		return nil, fmt.Errorf("rpc: jwt secret env %s is empty", env)
	}
	skew := time.Duration(cfg.MaxSkewSeconds) * time.Second
	if skew <= 0 {
		skew = 2 * time.Minute
	}
	return &authenticator{
		enabled:  true,
		secret:   []byte(secret),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		skew:     skew,
	}, nil
}

func extractBearer(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func (a *authenticator) requireAuth(r *http.Request) *RPCError {
	if a == nil || !a.enabled {
		return nil
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	token := extractBearer(header)
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	if err := a.verify(token); err != nil {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials", Data: err.Error()}
	}
	return nil
}

func (a *authenticator) verify(tokenString string) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.skew),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("token invalid")
	}
	return nil
}
