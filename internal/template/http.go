package template

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planejafacil/api/internal/http/middleware"
	"github.com/planejafacil/api/internal/http/respond"
)

// Handler expõe as rotas de templates.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/templates", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{template_id}", h.handleGet)
		r.Put("/{template_id}", h.handleUpdate)
		r.Delete("/{template_id}", h.handleDelete)
	})
	r.Post("/select-template/{template_id}", h.handleSelect)
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
	respond.JSON(w, http.StatusOK, map[string]any{"templates": items})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	tpl, err := h.service.Get(r.Context(), id, chi.URLParam(r, "template_id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, tpl)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	var in Input
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	templateID, err := h.service.Create(r.Context(), id, in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusCreated, "Template criado com sucesso", map[string]any{"id": templateID})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	var in Input
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	templateID := chi.URLParam(r, "template_id")
	if err := h.service.Update(r.Context(), id, templateID, in); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Template atualizado com sucesso", map[string]any{"id": templateID})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), id, chi.URLParam(r, "template_id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Template excluído com sucesso", nil)
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	templateID := chi.URLParam(r, "template_id")
	if err := h.service.Select(r.Context(), id, templateID); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Template selecionado com sucesso", map[string]any{"selectedTemplateId": templateID})
}
