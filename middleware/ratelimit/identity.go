package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultIdentityHeader é usado quando nenhum IdentityFunc é configurado.
const DefaultIdentityHeader = "X-User-Id"

var (
	ErrMissingCredentials = errors.New("ratelimit: missing credentials")
	ErrInvalidToken       = errors.New("ratelimit: invalid token")
)

// IdentityFunc extrai a identidade autenticada da requisição.
// Não há fallback para IP: sem identidade a requisição é negada.
type IdentityFunc func(r *http.Request) (string, error)

// Claims são as claims esperadas no bearer token.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// HeaderIdentity confia em um header preenchido por um middleware de auth anterior.
func HeaderIdentity(header string) IdentityFunc {
	return func(r *http.Request) (string, error) {
		v := strings.TrimSpace(r.Header.Get(header))
		if v == "" {
			return "", ErrMissingCredentials
		}
		return v, nil
	}
}

// BearerIdentity valida um JWT HS256 em "Authorization: Bearer <token>" e usa
// a claim user_id (ou sub) como identidade.
func BearerIdentity(secret []byte, opts ...jwt.ParserOption) IdentityFunc {
	opts = append([]jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}, opts...)
	parser := jwt.NewParser(opts...)

	return func(r *http.Request) (string, error) {
		raw, err := BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			return "", err
		}

		claims := &Claims{}
		_, err = parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}

		if id := strings.TrimSpace(claims.UserID); id != "" {
			return id, nil
		}
		if sub := strings.TrimSpace(claims.Subject); sub != "" {
			return sub, nil
		}
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
}

// BearerToken extrai o token do header Authorization.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingCredentials
	}
	return strings.TrimSpace(token), nil
}
