package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer identifica os tokens emitidos pelo provedor local.
const Issuer = "planejafacil-local"

// Claims representa as informações presentes em um token de identidade local.
type Claims struct {
	Role       string `json:"role,omitempty"`
	MainUserID string `json:"mainUserId,omitempty"`
	Email      string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager encapsula geração e validação de tokens.
type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
	leeway    time.Duration
	now       func() time.Time
}

// NewJWTManager cria o gerenciador com segredo, TTL e tolerância de relógio.
func NewJWTManager(secret string, accessTTL, leeway time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), accessTTL: accessTTL, leeway: leeway, now: time.Now}
}

// AccessTTL devolve a validade dos tokens emitidos.
func (m *JWTManager) AccessTTL() time.Duration { return m.accessTTL }

// GenerateIDToken cria um JWT HS256. Claims personalizadas vazias são
// omitidas para que os padrões de papel sejam aplicados na leitura.
func (m *JWTManager) GenerateIDToken(subject, email string, custom map[string]any) (string, error) {
	now := m.now().UTC()

	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	if role, ok := custom["role"].(string); ok {
		claims.Role = role
	}
	if mainID, ok := custom["mainUserId"].(string); ok {
		claims.MainUserID = mainID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseAndValidate verifica assinatura, emissor e expiração com a
// tolerância configurada.
func (m *JWTManager) ParseAndValidate(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(m.leeway),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.New("token inválido")
	}

	return claims, nil
}
