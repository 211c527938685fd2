package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planejafacil/api/internal/access"
	"github.com/planejafacil/api/internal/http/middleware"
	"github.com/planejafacil/api/internal/http/respond"
)

// Handler expõe cadastro, sessão e usuários.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes registra as rotas sem autenticação.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/register-main", h.handleRegisterMain)
	r.Post("/refresh-token", h.handleRefresh)
	r.Post("/auth/login", h.handleLogin)
}

// RegisterRoutes registra as rotas que exigem identidade.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.handleWhoAmI)
	r.Get("/user-role", h.handleRole)
	r.Put("/users/{user_id}", h.handleUpdateMain)
	r.Delete("/users/{user_id}", h.handleDeleteSelf)

	r.Route("/child-users", func(r chi.Router) {
		r.Use(middleware.RequireMain)
		r.Get("/", h.handleListChildren)
		r.Post("/", h.handleCreateChild)
		r.Put("/{child_id}", h.handleUpdateChild)
		r.Delete("/{child_id}", h.handleDeleteChild)
	})
}

// RegisterAdminRoutes registra as rotas protegidas pela chave administrativa.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Delete("/admin/users/{user_id}", h.handleAdminDelete)
}

func (h *Handler) handleRegisterMain(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	uid, err := h.service.RegisterMain(r.Context(), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusCreated, "Main user criado", map[string]any{"uid": uid})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in RefreshInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	pair, err := h.service.Refresh(r.Context(), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Token renovado", map[string]any{
		"id_token":      pair.IDToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresIn,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	pair, err := h.service.Login(r.Context(), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Login realizado", map[string]any{
		"id_token":      pair.IDToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresIn,
	})
}

func (h *Handler) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Usuário logado: "+id.Role, map[string]any{"mainId": id.MainUserID})
}

func (h *Handler) handleRole(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	info, err := h.service.Role(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, info)
}

func (h *Handler) handleUpdateMain(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	targetUID := chi.URLParam(r, "user_id")
	if err := access.RequireSelf(id, targetUID); err != nil {
		respond.Error(w, r, err)
		return
	}
	var in UpdateInput
	if err := respond.DecodeStrict(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.service.UpdateMain(r.Context(), id, targetUID, in); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Usuário principal atualizado", nil)
}

func (h *Handler) handleDeleteSelf(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	report, err := h.service.DeleteSelf(r.Context(), id, chi.URLParam(r, "user_id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Usuário e dados associados removidos", map[string]any{"report": report})
}

func (h *Handler) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.DeleteAny(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Usuário e dados associados removidos", map[string]any{"report": report})
}

func (h *Handler) handleListChildren(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	children, err := h.service.ListChildren(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"child_users": children})
}

func (h *Handler) handleCreateChild(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	var in RegisterInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	uid, err := h.service.CreateChild(r.Context(), id, in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusCreated, "Child user criado", map[string]any{"uid": uid})
}

func (h *Handler) handleUpdateChild(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	var in UpdateInput
	if err := respond.DecodeStrict(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.service.UpdateChild(r.Context(), id, chi.URLParam(r, "child_id"), in); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Child user atualizado", nil)
}

func (h *Handler) handleDeleteChild(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.service.DeleteChild(r.Context(), id, chi.URLParam(r, "child_id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Child user deletado com sucesso", nil)
}
