// Package account cuida do cadastro de usuários principais e filhos, da
// renovação de tokens e da remoção de tenants.
package account

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/planejafacil/api/internal/access"
	"github.com/planejafacil/api/internal/apperr"
	"github.com/planejafacil/api/internal/docstore"
	"github.com/planejafacil/api/internal/identity"
	"github.com/planejafacil/api/internal/tenant"
)

// TypeSeeder cria os tipos de recurso padrão de um tenant novo.
type TypeSeeder interface {
	SeedDefaults(ctx context.Context, mainUID string) (int, error)
}

type Service struct {
	store    docstore.Store
	provider identity.Provider
	seeder   TypeSeeder
	purger   *tenant.Purger
}

func NewService(store docstore.Store, provider identity.Provider, seeder TypeSeeder, purger *tenant.Purger) *Service {
	return &Service{store: store, provider: provider, seeder: seeder, purger: purger}
}

// RegisterMain cria a identidade, as claims de tenant e o documento do
// usuário. Se o documento não puder ser gravado a identidade é removida.
func (s *Service) RegisterMain(ctx context.Context, in RegisterInput) (string, error) {
	email := strings.TrimSpace(in.Email)
	uid, err := s.provider.CreateUser(ctx, identity.UserToCreate{Email: email, Password: in.Password, DisplayName: in.Name})
	if err != nil {
		return "", createErr(err)
	}
	logger := log.With().Str("uid", uid).Logger()

	if err := s.provider.SetCustomClaims(ctx, uid, identity.TenantClaims(access.RoleMain, uid)); err != nil {
		s.rollbackIdentity(ctx, uid)
		return "", apperr.Internal("Erro ao definir papel do usuário", err)
	}
	err = s.store.Set(ctx, tenant.UserPath(uid), map[string]any{
		"name":      strings.TrimSpace(in.Name),
		"email":     email,
		"isMain":    true,
		"createdAt": docstore.ServerTimestamp,
	})
	if err != nil {
		s.rollbackIdentity(ctx, uid)
		return "", apperr.Internal("Erro ao gravar usuário", err)
	}
	if _, err := s.seeder.SeedDefaults(ctx, uid); err != nil {
		logger.Warn().Err(err).Msg("tipos de recurso padrão não criados")
	}
	logger.Info().Msg("usuário principal criado")
	return uid, nil
}

func (s *Service) rollbackIdentity(ctx context.Context, uid string) {
	if err := s.provider.DeleteUser(ctx, uid); err != nil {
		log.Warn().Err(err).Str("uid", uid).Msg("falha ao desfazer criação de identidade")
	}
}

// Refresh troca o refresh token por um novo par.
func (s *Service) Refresh(ctx context.Context, in RefreshInput) (*identity.TokenPair, error) {
	pair, err := s.provider.RefreshToken(ctx, strings.TrimSpace(in.RefreshToken))
	if err != nil {
		if errors.Is(err, identity.ErrRefreshRejected) {
			return nil, apperr.Unauthorized("Refresh token inválido")
		}
		return nil, apperr.Internal("Erro ao renovar token", err)
	}
	return pair, nil
}

// Login autentica e-mail e senha quando o provedor permite.
func (s *Service) Login(ctx context.Context, in LoginInput) (*identity.TokenPair, error) {
	signer, ok := s.provider.(identity.PasswordSignIn)
	if !ok {
		return nil, apperr.NotFound("Login direto não disponível")
	}
	pair, err := signer.SignIn(ctx, strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return nil, apperr.Unauthorized("Credenciais inválidas")
		}
		return nil, apperr.Internal("Erro ao autenticar", err)
	}
	return pair, nil
}

// Role devolve papel, tenant e nome da identidade. O nome vem do documento
// do usuário ou, para filhos, do documento em child_users.
func (s *Service) Role(ctx context.Context, id access.Identity) (*RoleInfo, error) {
	path := tenant.UserPath(id.UID)
	if !id.IsMain() && id.MainUserID != id.UID {
		path = tenant.ChildUserPath(id.MainUserID, id.UID)
	}
	doc, err := s.store.Get(ctx, path)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidPath) {
			return nil, apperr.NotFound("Usuário não encontrado")
		}
		return nil, apperr.Internal("Erro ao consultar usuário", err)
	}
	name, _ := doc.Data["name"].(string)
	return &RoleInfo{Role: id.Role, MainUserID: id.MainUserID, Name: name}, nil
}

// UpdateMain aplica a atualização parcial do próprio usuário principal.
// Mudanças de e-mail ou senha vão para o provedor antes do documento e
// revogam os refresh tokens emitidos.
func (s *Service) UpdateMain(ctx context.Context, id access.Identity, targetUID string, in UpdateInput) error {
	if err := access.RequireSelf(id, targetUID); err != nil {
		return err
	}
	if in.Empty() {
		return apperr.BadRequest("Nenhum campo para atualizar")
	}
	if _, err := s.store.Get(ctx, tenant.UserPath(targetUID)); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperr.NotFound("Usuário não encontrado")
		}
		return apperr.Internal("Erro ao consultar usuário", err)
	}

	if err := s.updateIdentity(ctx, targetUID, in); err != nil {
		return err
	}
	fields := profileFields(in)
	if len(fields) > 0 {
		fields["updatedAt"] = docstore.ServerTimestamp
		if err := s.store.Update(ctx, tenant.UserPath(targetUID), fields); err != nil {
			return apperr.Internal("Erro ao atualizar usuário", err)
		}
	}
	if in.credentialsChanged() {
		if err := s.provider.RevokeRefreshTokens(ctx, targetUID); err != nil {
			return apperr.Internal("Erro ao revogar sessões do usuário", err)
		}
		log.Info().Str("uid", targetUID).Msg("sessões revogadas após troca de credencial")
	}
	return nil
}

// DeleteSelf remove o tenant do próprio usuário principal.
func (s *Service) DeleteSelf(ctx context.Context, id access.Identity, targetUID string) (*tenant.PurgeReport, error) {
	if err := access.RequireSelf(id, targetUID); err != nil {
		return nil, err
	}
	return s.purger.PurgeTenant(ctx, targetUID)
}

// DeleteAny remove qualquer tenant; usado pela rota administrativa.
func (s *Service) DeleteAny(ctx context.Context, targetUID string) (*tenant.PurgeReport, error) {
	log.Warn().Str("uid", targetUID).Msg("remoção administrativa de tenant")
	return s.purger.PurgeTenant(ctx, targetUID)
}

func (s *Service) updateIdentity(ctx context.Context, uid string, in UpdateInput) error {
	update := identity.UserUpdate{Email: trimmed(in.Email), Password: in.Password, DisplayName: trimmed(in.Name)}
	if update.Empty() {
		return nil
	}
	if err := s.provider.UpdateUser(ctx, uid, update); err != nil {
		switch {
		case errors.Is(err, identity.ErrEmailExists):
			return apperr.BadRequest("Email já cadastrado")
		case errors.Is(err, identity.ErrUserNotFound):
			return apperr.NotFound("Usuário não encontrado")
		default:
			return apperr.Internal("Erro ao atualizar credenciais", err)
		}
	}
	return nil
}

func profileFields(in UpdateInput) map[string]any {
	fields := map[string]any{}
	if in.Name != nil {
		fields["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		fields["email"] = strings.TrimSpace(*in.Email)
	}
	return fields
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func createErr(err error) error {
	if errors.Is(err, identity.ErrEmailExists) {
		return apperr.BadRequest("Email já cadastrado")
	}
	return apperr.Internal("Erro ao criar identidade", err)
}
