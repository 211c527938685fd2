// Package template mantém as agendas semanais do tenant e a seleção da
// agenda ativa.
package template

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/planejafacil/api/internal/access"
	"github.com/planejafacil/api/internal/apperr"
	"github.com/planejafacil/api/internal/docstore"
	"github.com/planejafacil/api/internal/util"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// List devolve os templates do tenant. Filhos enxergam os do principal.
func (s *Service) List(ctx context.Context, id access.Identity) ([]Template, error) {
	items, err := s.repo.List(ctx, id.MainUserID)
	if err != nil {
		return nil, apperr.Internal("Erro ao listar templates", err)
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id access.Identity, templateID string) (*Template, error) {
	return s.repo.Get(ctx, id.MainUserID, templateID)
}

// Ensure confirma que o template existe e pertence ao tenant.
func (s *Service) Ensure(ctx context.Context, mainUID, templateID string) error {
	if strings.TrimSpace(templateID) == "" {
		return apperr.BadRequest("templateId é obrigatório")
	}
	if err := util.CheckIDs(templateID); err != nil {
		return err
	}
	_, err := s.repo.Get(ctx, mainUID, templateID)
	return err
}

func (s *Service) Create(ctx context.Context, id access.Identity, in Input) (string, error) {
	if err := access.RequireMain(id); err != nil {
		return "", err
	}
	fields, err := toFields(in)
	if err != nil {
		return "", err
	}
	templateID, err := s.repo.Create(ctx, id.MainUserID, fields)
	if err != nil {
		return "", apperr.Internal("Erro ao criar template", err)
	}
	log.Info().Str("mainUserId", id.MainUserID).Str("templateId", templateID).Msg("template criado")
	return templateID, nil
}

func (s *Service) Update(ctx context.Context, id access.Identity, templateID string, in Input) error {
	if err := access.RequireMain(id); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, id.MainUserID, templateID); err != nil {
		return err
	}
	fields, err := toFields(in)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id.MainUserID, templateID, fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperr.NotFound("Template não encontrado")
		}
		return apperr.Internal("Erro ao atualizar template", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id access.Identity, templateID string) error {
	if err := access.RequireMain(id); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, id.MainUserID, templateID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id.MainUserID, templateID); err != nil {
		return apperr.Internal("Erro ao excluir template", err)
	}
	return nil
}

// Select marca o template como ativo para o tenant.
func (s *Service) Select(ctx context.Context, id access.Identity, templateID string) error {
	if err := access.RequireMain(id); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, id.MainUserID, templateID); err != nil {
		return err
	}
	if err := s.repo.Select(ctx, id.MainUserID, templateID); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperr.NotFound("Usuário não encontrado")
		}
		return apperr.Internal("Erro ao selecionar template", err)
	}
	return nil
}

// toFields valida datas e monta o documento gravado. Os dias da semana
// seguem a base 0 e o marcador weekBase acompanha o documento.
func toFields(in Input) (map[string]any, error) {
	holidays := make([]map[string]any, 0, len(in.Holidays))
	for _, h := range in.Holidays {
		date, err := parseDate(h.Date)
		if err != nil {
			return nil, apperr.BadRequest("Data de feriado inválida: " + h.Date)
		}
		holidays = append(holidays, map[string]any{"date": date, "name": strings.TrimSpace(h.Name)})
	}
	shifts := make([]map[string]any, 0, len(in.Shifts))
	for _, sh := range in.Shifts {
		shifts = append(shifts, map[string]any{"entry": sh.Entry, "exit": sh.Exit})
	}

	fields := map[string]any{
		"name":        strings.TrimSpace(in.Name),
		"holidays":    holidays,
		"weekStart":   *in.WeekStart,
		"weekEnd":     *in.WeekEnd,
		"shifts":      shifts,
		fieldWeekBase: weekBaseZero,
	}
	if in.HolidayListName != nil {
		fields["holidayListName"] = *in.HolidayListName
	}
	return fields, nil
}
