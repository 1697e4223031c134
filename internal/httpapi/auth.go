package httpapi

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"bakeryerp/backend/internal/domain"
)

const defaultPlatform = "api"

// TokenVerifier checks bearer tokens minted by the auth service. Tokens are
// HS256 with the username as subject.
type TokenVerifier struct {
	secret []byte
	issuer string
}

type actorClaims struct {
	jwtlib.RegisteredClaims
	Role     string `json:"role"`
	Platform string `json:"platform,omitempty"`
}

func NewTokenVerifier(secret string, issuer string) *TokenVerifier {
	if secret == "" {
		secret = "dev-change-me"
	}
	return &TokenVerifier{secret: []byte(secret), issuer: strings.TrimSpace(issuer)}
}

func (v *TokenVerifier) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &actorClaims{}
	opts := []jwtlib.ParserOption{jwtlib.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(v.issuer))
	}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}

	platform := strings.TrimSpace(claims.Platform)
	if platform == "" {
		platform = defaultPlatform
	}
	return domain.Actor{Username: sub, Role: claims.Role, Platform: platform}, nil
}

// Sign mints a token the verifier accepts. Used by tooling and tests; the
// production issuer is the auth service.
func (v *TokenVerifier) Sign(actor domain.Actor, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := actorClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.Username,
			Issuer:    v.issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
		Role:     actor.Role,
		Platform: actor.Platform,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
