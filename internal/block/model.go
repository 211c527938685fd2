package block

import (
	"time"

	"github.com/planejafacil/api/internal/docstore"
	"github.com/planejafacil/api/internal/resource"
)

// Unidades de duração das fases de um bloco.
const (
	DurationMinutes = iota
	DurationHours
	DurationDays
)

// MaxPhasesPerBlock mantém bloco e fases dentro de um único commit atômico
// na exclusão e na troca de template.
const MaxPhasesPerBlock = docstore.MaxBatchWrites - 1

// Block agrupa fases de produção dentro de um template.
type Block struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	MainUserID   string     `json:"mainUserId"`
	TemplateID   string     `json:"templateId"`
	DurationType int        `json:"durationType"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// Phase é uma etapa do bloco. Resources guarda ids de recursos e pode
// conter referências a recursos já excluídos.
type Phase struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Duration    float64    `json:"duration"`
	MainUserID  string     `json:"mainUserId"`
	BlockID     string     `json:"blockId"`
	TemplateID  string     `json:"templateId,omitempty"`
	Resources   []string   `json:"resources"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// PhaseDetails acompanha a fase com os recursos resolvidos.
type PhaseDetails struct {
	Phase
	ResourceDetails []resource.Resource `json:"resource_details"`
}

// FullBlock é o bloco com as fases e recursos resolvidos.
type FullBlock struct {
	Block
	Phases []PhaseDetails `json:"phases"`
}

type CreateInput struct {
	Name         string `json:"name" validate:"required,notblank"`
	Description  string `json:"description"`
	TemplateID   string `json:"templateId" validate:"required,notblank"`
	DurationType *int   `json:"durationType" validate:"required,min=0,max=2"`
}

type UpdateInput struct {
	Name         *string `json:"name" validate:"omitempty,notblank"`
	Description  *string `json:"description"`
	TemplateID   *string `json:"templateId" validate:"omitempty,notblank"`
	DurationType *int    `json:"durationType" validate:"omitempty,min=0,max=2"`
}

func (u UpdateInput) Empty() bool {
	return u.Name == nil && u.Description == nil && u.TemplateID == nil && u.DurationType == nil
}

type PhaseInput struct {
	Name        string   `json:"name" validate:"required,notblank"`
	Description string   `json:"description"`
	Duration    *float64 `json:"duration" validate:"required,min=0"`
	TemplateID  string   `json:"templateId"`
	Resources   []string `json:"resources" validate:"dive,required"`
}

type PhaseUpdateInput struct {
	Name        *string   `json:"name" validate:"omitempty,notblank"`
	Description *string   `json:"description"`
	Duration    *float64  `json:"duration" validate:"omitempty,min=0"`
	Resources   *[]string `json:"resources"`
}

func (u PhaseUpdateInput) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Duration == nil && u.Resources == nil
}

// AppendResourceInput adiciona um recurso à fase.
type AppendResourceInput struct {
	ResourceID string `json:"resourceId" validate:"required,notblank"`
}
