// Package resource mantém os recursos produtivos do tenant e o catálogo de
// tipos de recurso.
package resource

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/planejafacil/api/internal/access"
	"github.com/planejafacil/api/internal/apperr"
	"github.com/planejafacil/api/internal/docstore"
	"github.com/planejafacil/api/internal/tenant"
	"github.com/planejafacil/api/internal/util"
)

// TemplateChecker confirma que um template pertence ao tenant.
type TemplateChecker interface {
	Ensure(ctx context.Context, mainUID, templateID string) error
}

type Service struct {
	repo      *Repository
	store     docstore.Store
	templates TemplateChecker
}

func NewService(repo *Repository, store docstore.Store, templates TemplateChecker) *Service {
	return &Service{repo: repo, store: store, templates: templates}
}

// SeedDefaults cria os tipos padrão ausentes. Chamado no cadastro do
// usuário principal e pelo CLI de manutenção.
func (s *Service) SeedDefaults(ctx context.Context, mainUID string) (int, error) {
	existing, err := s.repo.ListTypes(ctx, mainUID)
	if err != nil {
		return 0, apperr.Internal("Erro ao listar tipos de recurso", err)
	}
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t.Name] = true
	}
	created := 0
	for _, name := range DefaultTypeNames {
		if have[name] {
			continue
		}
		if _, err := s.repo.CreateType(ctx, mainUID, name, true); err != nil {
			return created, apperr.Internal("Erro ao criar tipos padrão", err)
		}
		created++
	}
	return created, nil
}

func (s *Service) ListTypes(ctx context.Context, id access.Identity) ([]Type, error) {
	if err := access.RequireMain(id); err != nil {
		return nil, err
	}
	types, err := s.repo.ListTypes(ctx, id.MainUserID)
	if err != nil {
		return nil, apperr.Internal("Erro ao listar tipos de recurso", err)
	}
	return types, nil
}

// CreateType cria um tipo não padrão com nome único no tenant.
func (s *Service) CreateType(ctx context.Context, id access.Identity, in TypeInput) (string, error) {
	if err := access.RequireMain(id); err != nil {
		return "", err
	}
	name := strings.TrimSpace(in.Name)
	dup, err := s.repo.ListTypes(ctx, id.MainUserID, docstore.Eq("name", name))
	if err != nil {
		return "", apperr.Internal("Erro ao consultar tipos de recurso", err)
	}
	if len(dup) > 0 {
		return "", apperr.BadRequest("Tipo de recurso já existe")
	}
	typeID, err := s.repo.CreateType(ctx, id.MainUserID, name, false)
	if err != nil {
		return "", apperr.Internal("Erro ao criar tipo de recurso", err)
	}
	return typeID, nil
}

// DeleteType remove um tipo não padrão sem recursos vinculados.
func (s *Service) DeleteType(ctx context.Context, id access.Identity, typeID string) error {
	if err := access.RequireMain(id); err != nil {
		return err
	}
	t, err := s.repo.GetType(ctx, id.MainUserID, typeID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperr.NotFound("Tipo de recurso não encontrado")
		}
		return apperr.Internal("Erro ao consultar tipo de recurso", err)
	}
	if t.IsDefault {
		return apperr.Forbidden("Tipos padrão não podem ser excluídos")
	}
	refs, err := s.repo.CountReferencing(ctx, id.MainUserID, t)
	if err != nil {
		return apperr.Internal("Erro ao consultar recursos", err)
	}
	if refs > 0 {
		return apperr.BadRequest("Tipo de recurso em uso por recursos cadastrados")
	}
	if err := s.repo.DeleteType(ctx, id.MainUserID, typeID); err != nil {
		return apperr.Internal("Erro ao excluir tipo de recurso", err)
	}
	return nil
}

// List devolve os recursos do template selecionado; vazio se nenhum.
func (s *Service) List(ctx context.Context, id access.Identity) ([]Resource, error) {
	templateID, err := tenant.SelectedTemplate(ctx, s.store, id.MainUserID)
	if err != nil {
		return nil, err
	}
	if templateID == "" {
		return []Resource{}, nil
	}
	items, err := s.repo.ListByTemplate(ctx, id.MainUserID, templateID)
	if err != nil {
		return nil, apperr.Internal("Erro ao listar recursos", err)
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id access.Identity, resourceID string) (*Resource, error) {
	return s.repo.Get(ctx, id.MainUserID, resourceID)
}

// Lookup expõe a busca tolerante a ausência para outros módulos.
func (s *Service) Lookup(ctx context.Context, mainUID, resourceID string) (*Resource, bool, error) {
	return s.repo.Lookup(ctx, mainUID, resourceID)
}

func (s *Service) Create(ctx context.Context, id access.Identity, in CreateInput) (string, error) {
	if err := access.RequireMain(id); err != nil {
		return "", err
	}
	if err := util.CheckIDs(in.TemplateID, in.TypeID); err != nil {
		return "", err
	}
	if err := s.templates.Ensure(ctx, id.MainUserID, in.TemplateID); err != nil {
		return "", err
	}
	typeName, err := s.resolveType(ctx, id.MainUserID, in.TypeID, in.Type)
	if err != nil {
		return "", err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}
	fields := map[string]any{
		"name":        strings.TrimSpace(in.Name),
		"description": in.Description,
		"code":        in.Code,
		"type":        typeName,
		"templateId":  in.TemplateID,
		"active":      active,
	}
	if in.TypeID != "" {
		fields["typeId"] = in.TypeID
	}
	resourceID, err := s.repo.Create(ctx, id.MainUserID, fields)
	if err != nil {
		return "", apperr.Internal("Erro ao criar recurso", err)
	}
	log.Info().Str("mainUserId", id.MainUserID).Str("resourceId", resourceID).Msg("recurso criado")
	return resourceID, nil
}

func (s *Service) Update(ctx context.Context, id access.Identity, resourceID string, in UpdateInput) error {
	if err := access.RequireMain(id); err != nil {
		return err
	}
	if in.Empty() {
		return apperr.BadRequest("Nenhum campo para atualizar")
	}
	if err := util.CheckIDs(deref(in.TemplateID), deref(in.TypeID)); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, id.MainUserID, resourceID); err != nil {
		return err
	}

	fields := map[string]any{}
	if in.TemplateID != nil {
		if err := s.templates.Ensure(ctx, id.MainUserID, *in.TemplateID); err != nil {
			return err
		}
		fields["templateId"] = *in.TemplateID
	}
	if in.TypeID != nil {
		typeName, err := s.resolveType(ctx, id.MainUserID, *in.TypeID, "")
		if err != nil {
			return err
		}
		fields["typeId"] = *in.TypeID
		if typeName != "" {
			fields["type"] = typeName
		}
	}
	if in.Name != nil {
		fields["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.Code != nil {
		fields["code"] = *in.Code
	}
	if in.Type != nil && in.TypeID == nil {
		fields["type"] = *in.Type
	}
	if in.Active != nil {
		fields["active"] = *in.Active
	}

	if err := s.repo.Update(ctx, id.MainUserID, resourceID, fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperr.NotFound("Recurso não encontrado")
		}
		return apperr.Internal("Erro ao atualizar recurso", err)
	}
	return nil
}

// Delete remove o recurso. Fases que o referenciam não são alteradas.
func (s *Service) Delete(ctx context.Context, id access.Identity, resourceID string) error {
	if err := access.RequireMain(id); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, id.MainUserID, resourceID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id.MainUserID, resourceID); err != nil {
		return apperr.Internal("Erro ao excluir recurso", err)
	}
	return nil
}

// resolveType valida typeId quando informado e devolve o nome do tipo.
func (s *Service) resolveType(ctx context.Context, mainUID, typeID, fallback string) (string, error) {
	if typeID == "" {
		return fallback, nil
	}
	t, err := s.repo.GetType(ctx, mainUID, typeID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return "", apperr.BadRequest("Tipo de recurso inválido")
		}
		return "", apperr.Internal("Erro ao consultar tipo de recurso", err)
	}
	return t.Name, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
