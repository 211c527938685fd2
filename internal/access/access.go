// Package access resolve credenciais em identidades de tenant e aplica as
// regras de papel.
package access

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/planejafacil/api/internal/apperr"
	"github.com/planejafacil/api/internal/identity"
)

// Papéis aceitos na claim role.
const (
	RoleMain  = "main"
	RoleChild = "child"
)

// Identity é o resultado da resolução de um token.
type Identity struct {
	UID        string
	Role       string
	MainUserID string
	Email      string
}

// IsMain informa se a identidade é dona do tenant.
func (i Identity) IsMain() bool { return i.Role == RoleMain }

// Resolver transforma um bearer token em Identity.
type Resolver struct {
	provider identity.Provider
}

func NewResolver(provider identity.Provider) *Resolver {
	return &Resolver{provider: provider}
}

// Resolve verifica o token e aplica os padrões de claims: role ausente vira
// "child" e mainUserId ausente vira o próprio uid. Qualquer falha é
// Unauthorized.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, apperr.Unauthorized("Token ausente")
	}

	tok, err := r.provider.VerifyToken(ctx, raw)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrTokenExpired):
			log.Info().Str("reason", "expired").Msg("token rejeitado")
			return Identity{}, apperr.Unauthorized("Token expirado")
		case errors.Is(err, identity.ErrTokenRevoked):
			log.Info().Str("reason", "revoked").Msg("token rejeitado")
			return Identity{}, apperr.Unauthorized("Token revogado")
		case errors.Is(err, identity.ErrTokenInvalid):
			log.Info().Str("reason", "invalid").Err(err).Msg("token rejeitado")
			return Identity{}, apperr.Unauthorized("Token inválido")
		default:
			log.Error().Err(err).Msg("falha ao verificar token")
			return Identity{}, apperr.Unauthorized("Erro ao verificar token")
		}
	}

	id := Identity{UID: tok.UID, Role: RoleChild, MainUserID: tok.UID, Email: tok.Email}
	if role, ok := tok.Claims[identity.ClaimRole].(string); ok && role != "" {
		id.Role = role
	}
	if mainID, ok := tok.Claims[identity.ClaimMainUserID].(string); ok && mainID != "" {
		id.MainUserID = mainID
	}
	return id, nil
}

// RequireMain rejeita identidades sem papel main.
func RequireMain(id Identity) error {
	if !id.IsMain() {
		return apperr.Forbidden("Acesso restrito ao usuário principal")
	}
	return nil
}

// RequireSelf exige papel main e que o alvo seja o próprio usuário.
func RequireSelf(id Identity, targetUID string) error {
	if !id.IsMain() || id.UID != targetUID {
		return apperr.Forbidden("Não autorizado a alterar este usuário")
	}
	return nil
}
