package op

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planejafacil/api/internal/http/middleware"
	"github.com/planejafacil/api/internal/http/respond"
)

// Handler expõe as ordens de produção.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mantém /op para criação e exclusão, usado pelos clientes
// existentes, além do recurso /ops.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/op", h.handleCreate)
	r.Delete("/op/{op_id}", h.handleDelete)

	r.Route("/ops", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/{op_id}", h.handleGet)
		r.Put("/{op_id}", h.handleUpdate)
		r.Delete("/{op_id}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	ops, err := h.service.List(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"ops": ops})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	o, err := h.service.Get(r.Context(), id, chi.URLParam(r, "op_id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, o)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	var in CreateInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	opID, err := h.service.Create(r.Context(), id, in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusCreated, "Operação criada com sucesso", map[string]any{"id": opID})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
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
	opID := chi.URLParam(r, "op_id")
	if err := h.service.Update(r.Context(), id, opID, in); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Operação atualizada com sucesso", map[string]any{"id": opID})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), id, chi.URLParam(r, "op_id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Operação excluída com sucesso", nil)
}
