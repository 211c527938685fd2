package resource

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planejafacil/api/internal/http/middleware"
	"github.com/planejafacil/api/internal/http/respond"
)

// Handler expõe recursos e tipos de recurso.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/resources-types", func(r chi.Router) {
		r.Get("/", h.handleListTypes)
		r.Post("/", h.handleCreateType)
		r.Delete("/{type_id}", h.handleDeleteType)
	})
	r.Route("/resources", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{resource_id}", h.handleGet)
		r.Put("/{resource_id}", h.handleUpdate)
		r.Delete("/{resource_id}", h.handleDelete)
	})
}

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	types, err := h.service.ListTypes(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"resource_types": types})
}

func (h *Handler) handleCreateType(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	var in TypeInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	typeID, err := h.service.CreateType(r.Context(), id, in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusCreated, "Tipo de recurso criado com sucesso", map[string]any{"id": typeID})
}

func (h *Handler) handleDeleteType(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.service.DeleteType(r.Context(), id, chi.URLParam(r, "type_id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Tipo de recurso excluído com sucesso", nil)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	items, err := h.service.List(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"resources": items})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	res, err := h.service.Get(r.Context(), id, chi.URLParam(r, "resource_id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
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
	resourceID, err := h.service.Create(r.Context(), id, in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusCreated, "Recurso criado com sucesso", map[string]any{"id": resourceID})
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
	resourceID := chi.URLParam(r, "resource_id")
	if err := h.service.Update(r.Context(), id, resourceID, in); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Recurso atualizado com sucesso", map[string]any{"id": resourceID})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), id, chi.URLParam(r, "resource_id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Recurso excluído com sucesso", nil)
}
