package op

import "time"

// Status de uma ordem de produção.
const (
	StatusCreate = iota
	StatusStart
	StatusPaused
	StatusEnd
)

// Prioridades aceitas.
const (
	PriorityBaixa = iota
	PriorityNormal
	PriorityMedia
	PriorityAlta
	PriorityUrgente
)

// Op é uma ordem de produção. Block, Phase e Resource são cópias tiradas
// na criação e não acompanham alterações posteriores das entidades.
type Op struct {
	ID                string         `json:"id"`
	MainUserID        string         `json:"mainUserId"`
	TemplateID        string         `json:"templateId"`
	Description       string         `json:"description"`
	Code              string         `json:"code"`
	DateCreated       *time.Time     `json:"dateCreated,omitempty"`
	DateLimit         *time.Time     `json:"dateLimit,omitempty"`
	DateStart         *time.Time     `json:"dateStart,omitempty"`
	DateEnd           *time.Time     `json:"dateEnd,omitempty"`
	Status            int            `json:"status"`
	Priority          int            `json:"priority"`
	EstimatedDuration float64        `json:"estimatedDuration"`
	Quantity          int            `json:"quantity"`
	ProgressPrc       float64        `json:"progressPrc"`
	InProducing       bool           `json:"inProducing"`
	Active            bool           `json:"active"`
	Block             map[string]any `json:"block,omitempty"`
	Phase             map[string]any `json:"phase,omitempty"`
	Resource          map[string]any `json:"resource,omitempty"`
	CustomColumn      string         `json:"customColumn"`
	OperatorName      string         `json:"operatorName"`
	UpdatedAt         *time.Time     `json:"updatedAt,omitempty"`
}

// CreateInput aceita ids (cópia feita no servidor) ou objetos já montados
// para block, phase e resource.
type CreateInput struct {
	TemplateID        string         `json:"templateId" validate:"required,notblank"`
	Description       string         `json:"description"`
	Code              string         `json:"code"`
	DateCreated       *time.Time     `json:"dateCreated"`
	DateLimit         *time.Time     `json:"dateLimit"`
	DateStart         *time.Time     `json:"dateStart"`
	DateEnd           *time.Time     `json:"dateEnd"`
	Status            *int           `json:"status" validate:"omitempty,min=0,max=3"`
	Priority          *int           `json:"priority" validate:"omitempty,min=0,max=4"`
	EstimatedDuration *float64       `json:"estimatedDuration" validate:"omitempty,min=0"`
	Quantity          *int           `json:"quantity" validate:"omitempty,min=0"`
	ProgressPrc       *float64       `json:"progressPrc" validate:"omitempty,min=0,max=100"`
	InProducing       *bool          `json:"inProducing"`
	Active            *bool          `json:"active"`
	BlockID           string         `json:"blockId"`
	PhaseID           string         `json:"phaseId"`
	ResourceID        string         `json:"resourceId"`
	Block             map[string]any `json:"block"`
	Phase             map[string]any `json:"phase"`
	Resource          map[string]any `json:"resource"`
	CustomColumn      string         `json:"customColumn"`
	OperatorName      string         `json:"operatorName"`
}

// UpdateInput carrega apenas os campos enviados.
type UpdateInput struct {
	TemplateID        *string    `json:"templateId" validate:"omitempty,notblank"`
	Description       *string    `json:"description"`
	Code              *string    `json:"code"`
	DateLimit         *time.Time `json:"dateLimit"`
	DateStart         *time.Time `json:"dateStart"`
	DateEnd           *time.Time `json:"dateEnd"`
	Status            *int       `json:"status" validate:"omitempty,min=0,max=3"`
	Priority          *int       `json:"priority" validate:"omitempty,min=0,max=4"`
	EstimatedDuration *float64   `json:"estimatedDuration" validate:"omitempty,min=0"`
	Quantity          *int       `json:"quantity" validate:"omitempty,min=0"`
	ProgressPrc       *float64   `json:"progressPrc" validate:"omitempty,min=0,max=100"`
	InProducing       *bool      `json:"inProducing"`
	Active            *bool      `json:"active"`
	BlockID           *string    `json:"blockId"`
	PhaseID           *string    `json:"phaseId"`
	ResourceID        *string    `json:"resourceId"`
	CustomColumn      *string    `json:"customColumn"`
	OperatorName      *string    `json:"operatorName"`
}

func (u UpdateInput) Empty() bool {
	return u.TemplateID == nil && u.Description == nil && u.Code == nil &&
		u.DateLimit == nil && u.DateStart == nil && u.DateEnd == nil &&
		u.Status == nil && u.Priority == nil && u.EstimatedDuration == nil &&
		u.Quantity == nil && u.ProgressPrc == nil && u.InProducing == nil &&
		u.Active == nil && u.BlockID == nil && u.PhaseID == nil &&
		u.ResourceID == nil && u.CustomColumn == nil && u.OperatorName == nil
}
