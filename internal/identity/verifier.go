package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// idTokenVerifier valida ID tokens RS256 emitidos pelo Firebase com
// tolerância de relógio configurável.
type idTokenVerifier struct {
	keys   *keySource
	parser *jwt.Parser
}

func newIDTokenVerifier(keys *keySource, projectID string, clockSkew time.Duration, now func() time.Time) *idTokenVerifier {
	return &idTokenVerifier{
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithLeeway(clockSkew),
			jwt.WithAudience(projectID),
			jwt.WithIssuer("https://securetoken.google.com/"+projectID),
			jwt.WithIssuedAt(),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(now),
		),
	}
}

func (v *idTokenVerifier) Verify(ctx context.Context, raw string) (*Token, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("kid ausente")
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, fmt.Errorf("%w: sub vazio", ErrTokenInvalid)
	}

	tok := &Token{UID: sub, Claims: map[string]any(claims)}
	if email, ok := claims["email"].(string); ok {
		tok.Email = email
	}
	if at, ok := claims["auth_time"].(float64); ok {
		tok.AuthTime = time.Unix(int64(at), 0).UTC()
	}
	return tok, nil
}
