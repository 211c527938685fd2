// Package op mantém as ordens de produção do tenant.
package op

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/planejafacil/api/internal/access"
	"github.com/planejafacil/api/internal/apperr"
	"github.com/planejafacil/api/internal/block"
	"github.com/planejafacil/api/internal/docstore"
	"github.com/planejafacil/api/internal/resource"
	"github.com/planejafacil/api/internal/tenant"
	"github.com/planejafacil/api/internal/util"
)

// TemplateChecker confirma que um template pertence ao tenant.
type TemplateChecker interface {
	Ensure(ctx context.Context, mainUID, templateID string) error
}

// BlockFinder resolve blocos e fases para as cópias gravadas na ordem.
type BlockFinder interface {
	Get(ctx context.Context, id access.Identity, blockID string) (*block.Block, error)
	GetPhase(ctx context.Context, id access.Identity, blockID, phaseID string) (*block.Phase, error)
}

// ResourceGetter resolve o recurso copiado na ordem.
type ResourceGetter interface {
	Get(ctx context.Context, id access.Identity, resourceID string) (*resource.Resource, error)
}

type Service struct {
	repo      *Repository
	store     docstore.Store
	templates TemplateChecker
	blocks    BlockFinder
	resources ResourceGetter
}

func NewService(repo *Repository, store docstore.Store, templates TemplateChecker, blocks BlockFinder, resources ResourceGetter) *Service {
	return &Service{repo: repo, store: store, templates: templates, blocks: blocks, resources: resources}
}

// List devolve as ordens do template selecionado; vazio se nenhum.
func (s *Service) List(ctx context.Context, id access.Identity) ([]Op, error) {
	templateID, err := tenant.SelectedTemplate(ctx, s.store, id.MainUserID)
	if err != nil {
		return nil, err
	}
	if templateID == "" {
		return []Op{}, nil
	}
	ops, err := s.repo.ListByTemplate(ctx, id.MainUserID, templateID)
	if err != nil {
		return nil, apperr.Internal("Erro ao listar operações", err)
	}
	return ops, nil
}

func (s *Service) Get(ctx context.Context, id access.Identity, opID string) (*Op, error) {
	return s.repo.Get(ctx, id.MainUserID, opID)
}

// Create grava a ordem com os valores padrão e as cópias de bloco, fase e
// recurso.
func (s *Service) Create(ctx context.Context, id access.Identity, in CreateInput) (string, error) {
	if err := access.RequireMain(id); err != nil {
		return "", err
	}
	if err := util.CheckIDs(in.TemplateID, in.BlockID, in.PhaseID, in.ResourceID); err != nil {
		return "", err
	}
	if err := s.templates.Ensure(ctx, id.MainUserID, in.TemplateID); err != nil {
		return "", err
	}

	fields := map[string]any{
		"templateId":        in.TemplateID,
		"description":       in.Description,
		"code":              in.Code,
		"status":            intOr(in.Status, StatusCreate),
		"priority":          intOr(in.Priority, PriorityNormal),
		"estimatedDuration": floatOr(in.EstimatedDuration, 0),
		"quantity":          intOr(in.Quantity, 1),
		"progressPrc":       floatOr(in.ProgressPrc, 0),
		"inProducing":       boolOr(in.InProducing, false),
		"active":            boolOr(in.Active, true),
		"customColumn":      in.CustomColumn,
		"operatorName":      in.OperatorName,
		"dateCreated":       docstore.ServerTimestamp,
	}
	if in.DateCreated != nil {
		fields["dateCreated"] = in.DateCreated.UTC()
	}
	setTime(fields, "dateLimit", in.DateLimit)
	setTime(fields, "dateStart", in.DateStart)
	setTime(fields, "dateEnd", in.DateEnd)

	snaps, err := s.snapshots(ctx, id, in.TemplateID, in.BlockID, in.PhaseID, in.ResourceID)
	if err != nil {
		return "", err
	}
	for _, key := range []string{"block", "phase", "resource"} {
		if snap, ok := snaps[key]; ok {
			fields[key] = snap
		}
	}
	if _, ok := snaps["block"]; !ok && in.Block != nil {
		fields["block"] = in.Block
	}
	if _, ok := snaps["phase"]; !ok && in.Phase != nil {
		fields["phase"] = in.Phase
	}
	if _, ok := snaps["resource"]; !ok && in.Resource != nil {
		fields["resource"] = in.Resource
	}

	opID, err := s.repo.Create(ctx, id.MainUserID, fields)
	if err != nil {
		return "", apperr.Internal("Erro ao criar operação", err)
	}
	log.Info().Str("mainUserId", id.MainUserID).Str("opId", opID).Msg("operação criada")
	return opID, nil
}

func (s *Service) Update(ctx context.Context, id access.Identity, opID string, in UpdateInput) error {
	if err := access.RequireMain(id); err != nil {
		return err
	}
	if in.Empty() {
		return apperr.BadRequest("Nenhum campo para atualizar")
	}
	if err := util.CheckIDs(deref(in.TemplateID), deref(in.BlockID), deref(in.PhaseID), deref(in.ResourceID)); err != nil {
		return err
	}
	current, err := s.repo.Get(ctx, id.MainUserID, opID)
	if err != nil {
		return err
	}

	fields := map[string]any{}
	templateID := current.TemplateID
	if in.TemplateID != nil {
		if err := s.templates.Ensure(ctx, id.MainUserID, *in.TemplateID); err != nil {
			return err
		}
		templateID = *in.TemplateID
		fields["templateId"] = templateID
	}
	setString(fields, "description", in.Description)
	setString(fields, "code", in.Code)
	setString(fields, "customColumn", in.CustomColumn)
	setString(fields, "operatorName", in.OperatorName)
	setTime(fields, "dateLimit", in.DateLimit)
	setTime(fields, "dateStart", in.DateStart)
	setTime(fields, "dateEnd", in.DateEnd)
	if in.Status != nil {
		fields["status"] = *in.Status
	}
	if in.Priority != nil {
		fields["priority"] = *in.Priority
	}
	if in.EstimatedDuration != nil {
		fields["estimatedDuration"] = *in.EstimatedDuration
	}
	if in.Quantity != nil {
		fields["quantity"] = *in.Quantity
	}
	if in.ProgressPrc != nil {
		fields["progressPrc"] = *in.ProgressPrc
	}
	if in.InProducing != nil {
		fields["inProducing"] = *in.InProducing
	}
	if in.Active != nil {
		fields["active"] = *in.Active
	}

	blockID := deref(in.BlockID)
	if in.PhaseID != nil && blockID == "" {
		blockID, _ = current.Block["id"].(string)
	}
	if err := keptSnapshotsMatch(current, templateID, blockID, deref(in.PhaseID), deref(in.ResourceID)); err != nil {
		return err
	}
	snaps, err := s.snapshots(ctx, id, templateID, blockID, deref(in.PhaseID), deref(in.ResourceID))
	if err != nil {
		return err
	}
	for key, snap := range snaps {
		fields[key] = snap
	}

	if err := s.repo.Update(ctx, id.MainUserID, opID, fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperr.NotFound("Operação não encontrada")
		}
		return apperr.Internal("Erro ao atualizar operação", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id access.Identity, opID string) error {
	if err := access.RequireMain(id); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, id.MainUserID, opID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id.MainUserID, opID); err != nil {
		return apperr.Internal("Erro ao excluir operação", err)
	}
	return nil
}

// snapshots copia bloco, fase e recurso informados por id. Entidades de
// outro template são rejeitadas.
func (s *Service) snapshots(ctx context.Context, id access.Identity, templateID, blockID, phaseID, resourceID string) (map[string]map[string]any, error) {
	out := map[string]map[string]any{}
	if phaseID != "" && blockID == "" {
		return nil, apperr.BadRequest("blockId é obrigatório para informar phaseId")
	}
	if blockID != "" {
		b, err := s.blocks.Get(ctx, id, blockID)
		if err != nil {
			return nil, err
		}
		if b.TemplateID != "" && b.TemplateID != templateID {
			return nil, apperr.BadRequest("Bloco não pertence ao template informado")
		}
		out["block"] = map[string]any{
			"id":           b.ID,
			"name":         b.Name,
			"description":  b.Description,
			"templateId":   b.TemplateID,
			"durationType": b.DurationType,
		}
	}
	if phaseID != "" {
		p, err := s.blocks.GetPhase(ctx, id, blockID, phaseID)
		if err != nil {
			return nil, err
		}
		out["phase"] = map[string]any{
			"id":          p.ID,
			"name":        p.Name,
			"description": p.Description,
			"duration":    p.Duration,
			"blockId":     p.BlockID,
			"resources":   p.Resources,
		}
	}
	if resourceID != "" {
		r, err := s.resources.Get(ctx, id, resourceID)
		if err != nil {
			return nil, err
		}
		if r.TemplateID != "" && r.TemplateID != templateID {
			return nil, apperr.BadRequest("Recurso não pertence ao template informado")
		}
		out["resource"] = map[string]any{
			"id":          r.ID,
			"name":        r.Name,
			"description": r.Description,
			"code":        r.Code,
			"type":        r.Type,
			"templateId":  r.TemplateID,
			"active":      r.Active,
		}
	}
	return out, nil
}

// keptSnapshotsMatch confere as cópias que a atualização não substitui
// contra o template e o bloco resultantes. Cópias sem templateId (enviadas
// prontas pelo cliente ou gravadas antes do campo existir) não são checadas.
func keptSnapshotsMatch(current *Op, templateID, blockID, phaseID, resourceID string) error {
	if blockID == "" {
		if t, _ := current.Block["templateId"].(string); t != "" && t != templateID {
			return apperr.BadRequest("Bloco da operação não pertence ao template informado")
		}
		blockID, _ = current.Block["id"].(string)
	}
	if phaseID == "" && blockID != "" {
		if b, _ := current.Phase["blockId"].(string); b != "" && b != blockID {
			return apperr.BadRequest("Fase da operação não pertence ao bloco informado")
		}
	}
	if resourceID == "" {
		if t, _ := current.Resource["templateId"].(string); t != "" && t != templateID {
			return apperr.BadRequest("Recurso da operação não pertence ao template informado")
		}
	}
	return nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func setString(fields map[string]any, key string, v *string) {
	if v != nil {
		fields[key] = *v
	}
}

func setTime(fields map[string]any, key string, v *time.Time) {
	if v != nil {
		fields[key] = v.UTC()
	}
}
