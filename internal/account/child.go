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

// CreateChild cria a identidade filha ligada ao tenant do principal.
func (s *Service) CreateChild(ctx context.Context, id access.Identity, in RegisterInput) (string, error) {
	if err := access.RequireMain(id); err != nil {
		return "", err
	}
	email := strings.TrimSpace(in.Email)
	uid, err := s.provider.CreateUser(ctx, identity.UserToCreate{Email: email, Password: in.Password, DisplayName: in.Name})
	if err != nil {
		return "", createErr(err)
	}
	if err := s.provider.SetCustomClaims(ctx, uid, identity.TenantClaims(access.RoleChild, id.MainUserID)); err != nil {
		s.rollbackIdentity(ctx, uid)
		return "", apperr.Internal("Erro ao definir papel do usuário", err)
	}
	err = s.store.Set(ctx, tenant.ChildUserPath(id.MainUserID, uid), map[string]any{
		"name":                 strings.TrimSpace(in.Name),
		"email":                email,
		tenant.FieldMainUserID: id.MainUserID,
		"createdAt":            docstore.ServerTimestamp,
	})
	if err != nil {
		s.rollbackIdentity(ctx, uid)
		return "", apperr.Internal("Erro ao gravar usuário filho", err)
	}
	log.Info().Str("mainUserId", id.MainUserID).Str("childUid", uid).Msg("usuário filho criado")
	return uid, nil
}

func (s *Service) ListChildren(ctx context.Context, id access.Identity) ([]ChildUser, error) {
	if err := access.RequireMain(id); err != nil {
		return nil, err
	}
	docs, err := s.store.Query(ctx, tenant.ChildUsers(id.MainUserID), docstore.Eq(tenant.FieldMainUserID, id.MainUserID))
	if err != nil {
		return nil, apperr.Internal("Erro ao listar usuários filhos", err)
	}
	out := make([]ChildUser, 0, len(docs))
	for i := range docs {
		var c ChildUser
		if err := docstore.Decode(docs[i].Data, &c); err != nil {
			return nil, apperr.Internal("Erro ao ler usuário filho", err)
		}
		c.UID = docs[i].ID
		out = append(out, c)
	}
	return out, nil
}

// UpdateChild altera nome, e-mail ou senha do filho. Credenciais vão para
// o provedor antes do documento.
func (s *Service) UpdateChild(ctx context.Context, id access.Identity, childUID string, in UpdateInput) error {
	if err := access.RequireMain(id); err != nil {
		return err
	}
	if in.Empty() {
		return apperr.BadRequest("Nenhum campo para atualizar")
	}
	if _, err := s.childDoc(ctx, id.MainUserID, childUID); err != nil {
		return err
	}
	if err := s.updateIdentity(ctx, childUID, in); err != nil {
		return err
	}
	fields := profileFields(in)
	if len(fields) > 0 {
		fields["updatedAt"] = docstore.ServerTimestamp
		if err := s.store.Update(ctx, tenant.ChildUserPath(id.MainUserID, childUID), fields); err != nil {
			return apperr.Internal("Erro ao atualizar usuário filho", err)
		}
	}
	if in.credentialsChanged() {
		if err := s.provider.RevokeRefreshTokens(ctx, childUID); err != nil {
			log.Warn().Err(err).Str("childUid", childUID).Msg("falha ao revogar sessões do usuário filho")
		}
	}
	return nil
}

// DeleteChild apaga o documento e depois a identidade (melhor esforço).
func (s *Service) DeleteChild(ctx context.Context, id access.Identity, childUID string) error {
	if err := access.RequireMain(id); err != nil {
		return err
	}
	if _, err := s.childDoc(ctx, id.MainUserID, childUID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, tenant.ChildUserPath(id.MainUserID, childUID)); err != nil {
		return apperr.Internal("Erro ao excluir usuário filho", err)
	}
	if err := s.provider.DeleteUser(ctx, childUID); err != nil && !errors.Is(err, identity.ErrUserNotFound) {
		log.Warn().Err(err).Str("childUid", childUID).Msg("falha ao remover identidade do usuário filho")
	}
	return nil
}

func (s *Service) childDoc(ctx context.Context, mainUID, childUID string) (*docstore.Document, error) {
	doc, err := tenant.ValidateOwned(ctx, s.store, tenant.Ref{
		Path:     tenant.ChildUserPath(mainUID, childUID),
		NotFound: "Child user não encontrado",
	}, mainUID)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
