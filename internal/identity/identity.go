// Package identity define o contrato com o provedor de autenticação externo
// e seus adaptadores (Firebase Auth e provedor local).
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTokenInvalid       = errors.New("token inválido")
	ErrTokenExpired       = errors.New("token expirado")
	ErrTokenRevoked       = errors.New("token revogado")
	ErrUserNotFound       = errors.New("usuário não encontrado no provedor")
	ErrEmailExists        = errors.New("email já cadastrado")
	ErrRefreshRejected    = errors.New("refresh token rejeitado")
	ErrInvalidCredentials = errors.New("credenciais inválidas")
)

// Token é o resultado de uma verificação bem-sucedida.
type Token struct {
	UID      string
	Email    string
	AuthTime time.Time
	Claims   map[string]any
}

// UserToCreate descreve uma nova identidade.
type UserToCreate struct {
	Email       string
	Password    string
	DisplayName string
}

// UserUpdate altera apenas os campos não nulos.
type UserUpdate struct {
	Email       *string
	Password    *string
	DisplayName *string
}

// Empty informa se não há alteração de credencial ou nome.
func (u UserUpdate) Empty() bool {
	return u.Email == nil && u.Password == nil && u.DisplayName == nil
}

// TokenPair é devolvido na renovação e no login.
type TokenPair struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
}

// Provider é o provedor de identidade consumido pela API.
type Provider interface {
	// VerifyToken valida assinatura, expiração e revogação.
	VerifyToken(ctx context.Context, raw string) (*Token, error)
	CreateUser(ctx context.Context, user UserToCreate) (string, error)
	SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error
	UpdateUser(ctx context.Context, uid string, update UserUpdate) error
	// RevokeRefreshTokens invalida refresh tokens e tokens emitidos antes
	// do instante atual.
	RevokeRefreshTokens(ctx context.Context, uid string) error
	DeleteUser(ctx context.Context, uid string) error
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// PasswordSignIn é implementado por provedores que autenticam e-mail e
// senha diretamente na API.
type PasswordSignIn interface {
	SignIn(ctx context.Context, email, password string) (*TokenPair, error)
}

// Claims personalizadas gravadas nas identidades.
const (
	ClaimRole       = "role"
	ClaimMainUserID = "mainUserId"
)

// TenantClaims monta as claims de papel e tenant.
func TenantClaims(role, mainUserID string) map[string]any {
	return map[string]any{ClaimRole: role, ClaimMainUserID: mainUserID}
}
