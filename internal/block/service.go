// Package block mantém os blocos de produção de um template e as fases de
// cada bloco.
package block

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/planejafacil/api/internal/access"
	"github.com/planejafacil/api/internal/apperr"
	"github.com/planejafacil/api/internal/docstore"
	"github.com/planejafacil/api/internal/resource"
	"github.com/planejafacil/api/internal/tenant"
	"github.com/planejafacil/api/internal/util"
)

// TemplateChecker confirma que um template pertence ao tenant.
type TemplateChecker interface {
	Ensure(ctx context.Context, mainUID, templateID string) error
}

// ResourceFinder resolve recursos referenciados pelas fases.
type ResourceFinder interface {
	Get(ctx context.Context, id access.Identity, resourceID string) (*resource.Resource, error)
	Lookup(ctx context.Context, mainUID, resourceID string) (*resource.Resource, bool, error)
}

type Service struct {
	repo      *Repository
	store     docstore.Store
	templates TemplateChecker
	resources ResourceFinder
}

func NewService(repo *Repository, store docstore.Store, templates TemplateChecker, resources ResourceFinder) *Service {
	return &Service{repo: repo, store: store, templates: templates, resources: resources}
}

// List devolve os blocos do template selecionado; vazio se nenhum.
func (s *Service) List(ctx context.Context, id access.Identity) ([]Block, error) {
	templateID, err := tenant.SelectedTemplate(ctx, s.store, id.MainUserID)
	if err != nil {
		return nil, err
	}
	if templateID == "" {
		return []Block{}, nil
	}
	blocks, err := s.repo.ListBlocks(ctx, id.MainUserID, templateID)
	if err != nil {
		return nil, apperr.Internal("Erro ao listar blocos", err)
	}
	return blocks, nil
}

// ListFull devolve os blocos do template selecionado com fases e recursos.
func (s *Service) ListFull(ctx context.Context, id access.Identity) ([]FullBlock, error) {
	blocks, err := s.List(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]FullBlock, 0, len(blocks))
	for _, b := range blocks {
		phases, err := s.phaseDetails(ctx, id.MainUserID, b.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, FullBlock{Block: b, Phases: phases})
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id access.Identity, blockID string) (*Block, error) {
	return s.repo.GetBlock(ctx, id.MainUserID, blockID)
}

func (s *Service) Create(ctx context.Context, id access.Identity, in CreateInput) (string, error) {
	if err := access.RequireMain(id); err != nil {
		return "", err
	}
	if err := util.CheckIDs(in.TemplateID); err != nil {
		return "", err
	}
	if err := s.templates.Ensure(ctx, id.MainUserID, in.TemplateID); err != nil {
		return "", err
	}
	blockID, err := s.repo.CreateBlock(ctx, id.MainUserID, map[string]any{
		"name":         strings.TrimSpace(in.Name),
		"description":  in.Description,
		"templateId":   in.TemplateID,
		"durationType": *in.DurationType,
	})
	if err != nil {
		return "", apperr.Internal("Erro ao criar bloco", err)
	}
	log.Info().Str("mainUserId", id.MainUserID).Str("blockId", blockID).Msg("bloco criado")
	return blockID, nil
}

func (s *Service) Update(ctx context.Context, id access.Identity, blockID string, in UpdateInput) error {
	if err := access.RequireMain(id); err != nil {
		return err
	}
	if in.Empty() {
		return apperr.BadRequest("Nenhum campo para atualizar")
	}
	if in.TemplateID != nil {
		if err := util.CheckIDs(*in.TemplateID); err != nil {
			return err
		}
	}
	current, err := s.repo.GetBlock(ctx, id.MainUserID, blockID)
	if err != nil {
		return err
	}
	moving := in.TemplateID != nil && *in.TemplateID != current.TemplateID
	if moving {
		if err := s.templates.Ensure(ctx, id.MainUserID, *in.TemplateID); err != nil {
			return err
		}
	}
	fields := map[string]any{}
	if in.Name != nil {
		fields["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.DurationType != nil {
		fields["durationType"] = *in.DurationType
	}
	if moving {
		n, err := s.repo.MoveBlock(ctx, id.MainUserID, blockID, *in.TemplateID, fields)
		if err != nil {
			return storeErr(err, "Bloco não encontrado", "Erro ao atualizar bloco")
		}
		log.Info().Str("mainUserId", id.MainUserID).Str("blockId", blockID).
			Str("templateId", *in.TemplateID).Int("phases", n).Msg("bloco movido de template")
		return nil
	}
	if len(fields) == 0 {
		return nil
	}
	if err := s.repo.UpdateBlock(ctx, id.MainUserID, blockID, fields); err != nil {
		return storeErr(err, "Bloco não encontrado", "Erro ao atualizar bloco")
	}
	return nil
}

// Delete remove o bloco e suas fases de forma atômica. Recursos
// referenciados pelas fases permanecem.
func (s *Service) Delete(ctx context.Context, id access.Identity, blockID string) error {
	if err := access.RequireMain(id); err != nil {
		return err
	}
	if _, err := s.repo.GetBlock(ctx, id.MainUserID, blockID); err != nil {
		return err
	}
	n, err := s.repo.DeleteBlock(ctx, id.MainUserID, blockID)
	if err != nil {
		return apperr.Internal("Erro ao excluir bloco", err)
	}
	log.Info().Str("mainUserId", id.MainUserID).Str("blockId", blockID).Int("phases", n).Msg("bloco excluído")
	return nil
}

// ListPhases devolve as fases do bloco com resource_details.
func (s *Service) ListPhases(ctx context.Context, id access.Identity, blockID string) ([]PhaseDetails, error) {
	if _, err := s.repo.GetBlock(ctx, id.MainUserID, blockID); err != nil {
		return nil, err
	}
	return s.phaseDetails(ctx, id.MainUserID, blockID)
}

// GetPhase valida bloco e fase do tenant.
func (s *Service) GetPhase(ctx context.Context, id access.Identity, blockID, phaseID string) (*Phase, error) {
	if _, err := s.repo.GetBlock(ctx, id.MainUserID, blockID); err != nil {
		return nil, err
	}
	return s.repo.GetPhase(ctx, id.MainUserID, blockID, phaseID)
}

func (s *Service) CreatePhase(ctx context.Context, id access.Identity, blockID string, in PhaseInput) (string, error) {
	if err := access.RequireMain(id); err != nil {
		return "", err
	}
	if err := util.CheckIDs(in.TemplateID); err != nil {
		return "", err
	}
	b, err := s.repo.GetBlock(ctx, id.MainUserID, blockID)
	if err != nil {
		return "", err
	}
	n, err := s.repo.CountPhases(ctx, id.MainUserID, blockID)
	if err != nil {
		return "", apperr.Internal("Erro ao consultar fases", err)
	}
	if n >= MaxPhasesPerBlock {
		return "", apperr.BadRequest(fmt.Sprintf("Bloco atingiu o limite de %d fases", MaxPhasesPerBlock))
	}
	templateID := b.TemplateID
	if in.TemplateID != "" && in.TemplateID != templateID {
		if err := s.templates.Ensure(ctx, id.MainUserID, in.TemplateID); err != nil {
			return "", err
		}
		templateID = in.TemplateID
	}
	resources, err := s.checkResources(ctx, id, in.Resources)
	if err != nil {
		return "", err
	}
	fields := map[string]any{
		"name":        strings.TrimSpace(in.Name),
		"description": in.Description,
		"duration":    *in.Duration,
		"resources":   resources,
	}
	if templateID != "" {
		fields["templateId"] = templateID
	}
	phaseID, err := s.repo.CreatePhase(ctx, id.MainUserID, blockID, fields)
	if err != nil {
		return "", apperr.Internal("Erro ao criar fase", err)
	}
	return phaseID, nil
}

func (s *Service) UpdatePhase(ctx context.Context, id access.Identity, blockID, phaseID string, in PhaseUpdateInput) error {
	if err := access.RequireMain(id); err != nil {
		return err
	}
	if in.Empty() {
		return apperr.BadRequest("Nenhum campo para atualizar")
	}
	if _, err := s.GetPhase(ctx, id, blockID, phaseID); err != nil {
		return err
	}
	fields := map[string]any{}
	if in.Name != nil {
		fields["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.Duration != nil {
		fields["duration"] = *in.Duration
	}
	if in.Resources != nil {
		resources, err := s.checkResources(ctx, id, *in.Resources)
		if err != nil {
			return err
		}
		fields["resources"] = resources
	}
	if err := s.repo.UpdatePhase(ctx, id.MainUserID, blockID, phaseID, fields); err != nil {
		return storeErr(err, "Fase não encontrada", "Erro ao atualizar fase")
	}
	return nil
}

// DeletePhase remove a fase; os recursos não são alterados.
func (s *Service) DeletePhase(ctx context.Context, id access.Identity, blockID, phaseID string) error {
	if err := access.RequireMain(id); err != nil {
		return err
	}
	if _, err := s.GetPhase(ctx, id, blockID, phaseID); err != nil {
		return err
	}
	if err := s.repo.DeletePhase(ctx, id.MainUserID, blockID, phaseID); err != nil {
		return apperr.Internal("Erro ao excluir fase", err)
	}
	return nil
}

// AssignResource substitui a lista de recursos da fase por um único id.
func (s *Service) AssignResource(ctx context.Context, id access.Identity, blockID, phaseID, resourceID string) error {
	if err := access.RequireMain(id); err != nil {
		return err
	}
	if strings.TrimSpace(resourceID) == "" {
		return apperr.BadRequest("resource_id é obrigatório")
	}
	if err := util.CheckIDs(resourceID); err != nil {
		return err
	}
	if _, err := s.GetPhase(ctx, id, blockID, phaseID); err != nil {
		return err
	}
	if _, err := s.resources.Get(ctx, id, resourceID); err != nil {
		return err
	}
	if err := s.repo.UpdatePhase(ctx, id.MainUserID, blockID, phaseID, map[string]any{"resources": []string{resourceID}}); err != nil {
		return storeErr(err, "Fase não encontrada", "Erro ao atribuir recurso")
	}
	return nil
}

// AppendResource acrescenta o recurso à fase sem duplicar. Devolve false
// quando o recurso já estava vinculado.
func (s *Service) AppendResource(ctx context.Context, id access.Identity, blockID, phaseID, resourceID string) (bool, error) {
	if err := access.RequireMain(id); err != nil {
		return false, err
	}
	if err := util.CheckIDs(resourceID); err != nil {
		return false, err
	}
	p, err := s.GetPhase(ctx, id, blockID, phaseID)
	if err != nil {
		return false, err
	}
	if _, err := s.resources.Get(ctx, id, resourceID); err != nil {
		return false, err
	}
	if slices.Contains(p.Resources, resourceID) {
		return false, nil
	}
	resources := append(slices.Clone(p.Resources), resourceID)
	if err := s.repo.UpdatePhase(ctx, id.MainUserID, blockID, phaseID, map[string]any{"resources": resources}); err != nil {
		return false, storeErr(err, "Fase não encontrada", "Erro ao vincular recurso")
	}
	return true, nil
}

func (s *Service) phaseDetails(ctx context.Context, mainUID, blockID string) ([]PhaseDetails, error) {
	phases, err := s.repo.ListPhases(ctx, mainUID, blockID)
	if err != nil {
		return nil, apperr.Internal("Erro ao listar fases", err)
	}
	out := make([]PhaseDetails, 0, len(phases))
	for _, p := range phases {
		details := make([]resource.Resource, 0, len(p.Resources))
		for _, rid := range p.Resources {
			res, ok, err := s.resources.Lookup(ctx, mainUID, rid)
			if err != nil {
				return nil, apperr.Internal("Erro ao consultar recursos da fase", err)
			}
			if !ok {
				log.Debug().Str("phaseId", p.ID).Str("resourceId", rid).Msg("recurso referenciado não existe mais")
				continue
			}
			details = append(details, *res)
		}
		out = append(out, PhaseDetails{Phase: p, ResourceDetails: details})
	}
	return out, nil
}

// checkResources confirma que os ids pertencem ao tenant e remove repetidos.
func (s *Service) checkResources(ctx context.Context, id access.Identity, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, rid := range ids {
		if slices.Contains(out, rid) {
			continue
		}
		if err := util.CheckIDs(rid); err != nil {
			return nil, err
		}
		if _, err := s.resources.Get(ctx, id, rid); err != nil {
			return nil, err
		}
		out = append(out, rid)
	}
	return out, nil
}

func storeErr(err error, notFound, internal string) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.NotFound(notFound)
	}
	return apperr.Internal(internal, err)
}
