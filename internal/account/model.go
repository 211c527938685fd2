package account

import "time"

// User é o documento users/{uid} do usuário principal.
type User struct {
	UID                string     `json:"uid"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	IsMain             bool       `json:"isMain"`
	SelectedTemplateID string     `json:"selectedTemplateId,omitempty"`
	CreatedAt          *time.Time `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
}

// ChildUser é o documento users/{main}/child_users/{uid}.
type ChildUser struct {
	UID        string     `json:"uid"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	MainUserID string     `json:"mainUserId"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// RoleInfo responde /user-role.
type RoleInfo struct {
	Role       string `json:"role"`
	MainUserID string `json:"mainUserId"`
	Name       string `json:"name"`
}

// RegisterInput cria usuários principais e filhos.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type RefreshInput struct {
	RefreshToken string `json:"refresh_token" validate:"required,notblank"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateInput aceita somente name, email e password. Campos desconhecidos
// são rejeitados na leitura do corpo.
type UpdateInput struct {
	Name     *string `json:"name" validate:"omitempty,notblank"`
	Email    *string `json:"email" validate:"omitempty,notblank,email"`
	Password *string `json:"password" validate:"omitempty,min=6"`
}

func (u UpdateInput) Empty() bool {
	return u.Name == nil && u.Email == nil && u.Password == nil
}

// credentialsChanged informa se a alteração exige novo login.
func (u UpdateInput) credentialsChanged() bool {
	return u.Email != nil || u.Password != nil
}
