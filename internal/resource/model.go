package resource

import "time"

// Nomes dos tipos criados no cadastro do usuário principal.
var DefaultTypeNames = []string{"Humano", "Local", "Máquina", "Próprio"}

// Type classifica recursos. Tipos padrão não podem ser excluídos.
type Type struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	IsDefault bool       `json:"isDefault"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

type TypeInput struct {
	Name string `json:"name" validate:"required,notblank"`
}

// Resource é um recurso produtivo referenciado pelas fases.
type Resource struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Code        string     `json:"code"`
	Type        string     `json:"type"`
	TypeID      string     `json:"typeId,omitempty"`
	TemplateID  string     `json:"templateId"`
	MainUserID  string     `json:"mainUserId"`
	Active      bool       `json:"active"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type CreateInput struct {
	Name        string `json:"name" validate:"required,notblank"`
	Description string `json:"description"`
	Code        string `json:"code"`
	Type        string `json:"type"`
	TypeID      string `json:"typeId"`
	TemplateID  string `json:"templateId" validate:"required,notblank"`
	Active      *bool  `json:"active"`
}

// UpdateInput carrega apenas os campos enviados.
type UpdateInput struct {
	Name        *string `json:"name" validate:"omitempty,notblank"`
	Description *string `json:"description"`
	Code        *string `json:"code"`
	Type        *string `json:"type"`
	TypeID      *string `json:"typeId"`
	TemplateID  *string `json:"templateId" validate:"omitempty,notblank"`
	Active      *bool   `json:"active"`
}

// Empty informa se nenhum campo foi enviado.
func (u UpdateInput) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Code == nil && u.Type == nil &&
		u.TypeID == nil && u.TemplateID == nil && u.Active == nil
}
