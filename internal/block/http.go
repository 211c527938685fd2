package block

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planejafacil/api/internal/http/middleware"
	"github.com/planejafacil/api/internal/http/respond"
)

// Handler expõe blocos e fases.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/blocks", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/full", h.handleListFull)

		r.Route("/{block_id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Put("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)

			r.Get("/phases", h.handleListPhases)
			r.Post("/phases", h.handleCreatePhase)
			r.Put("/phases/{phase_id}", h.handleUpdatePhase)
			r.Delete("/phases/{phase_id}", h.handleDeletePhase)
			r.Post("/phases/{phase_id}/assign-resource", h.handleAssignResource)
			r.Post("/phases/{phase_id}/resources", h.handleAppendResource)
		})
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	blocks, err := h.service.List(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"blocks": blocks})
}

func (h *Handler) handleListFull(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	blocks, err := h.service.ListFull(r.Context(), id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"blocks": blocks})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	b, err := h.service.Get(r.Context(), id, chi.URLParam(r, "block_id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, b)
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
	blockID, err := h.service.Create(r.Context(), id, in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusCreated, "Bloco criado com sucesso", map[string]any{"id": blockID})
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
	blockID := chi.URLParam(r, "block_id")
	if err := h.service.Update(r.Context(), id, blockID, in); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Bloco atualizado com sucesso", map[string]any{"id": blockID})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), id, chi.URLParam(r, "block_id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Bloco e fases excluídos com sucesso", nil)
}

func (h *Handler) handleListPhases(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	phases, err := h.service.ListPhases(r.Context(), id, chi.URLParam(r, "block_id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"phases": phases})
}

func (h *Handler) handleCreatePhase(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	var in PhaseInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	phaseID, err := h.service.CreatePhase(r.Context(), id, chi.URLParam(r, "block_id"), in)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusCreated, "Fase criada com sucesso", map[string]any{"id": phaseID})
}

func (h *Handler) handleUpdatePhase(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	var in PhaseUpdateInput
	if err := respond.DecodeStrict(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	phaseID := chi.URLParam(r, "phase_id")
	if err := h.service.UpdatePhase(r.Context(), id, chi.URLParam(r, "block_id"), phaseID, in); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Fase atualizada com sucesso", map[string]any{"id": phaseID})
}

func (h *Handler) handleDeletePhase(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.service.DeletePhase(r.Context(), id, chi.URLParam(r, "block_id"), chi.URLParam(r, "phase_id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Fase excluída com sucesso", nil)
}

func (h *Handler) handleAssignResource(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	resourceID := r.URL.Query().Get("resource_id")
	err = h.service.AssignResource(r.Context(), id, chi.URLParam(r, "block_id"), chi.URLParam(r, "phase_id"), resourceID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Recurso atribuído à fase", map[string]any{"resourceId": resourceID})
}

func (h *Handler) handleAppendResource(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.IdentityFrom(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	var in AppendResourceInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, r, err)
		return
	}
	added, err := h.service.AppendResource(r.Context(), id, chi.URLParam(r, "block_id"), chi.URLParam(r, "phase_id"), in.ResourceID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	msg := "Recurso vinculado à fase"
	if !added {
		msg = "Recurso já vinculado à fase"
	}
	respond.Message(w, http.StatusOK, msg, map[string]any{"resourceId": in.ResourceID})
}
