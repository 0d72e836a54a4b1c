package timeline

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ActionResponse acknowledges a queued timeline action
type ActionResponse struct {
	Status string `json:"status"`
}

// ActionsHandler queues fetches and reloads on the timeline
type ActionsHandler struct {
	service Service
}

// NewActionsHandler creates a new actions handler
func NewActionsHandler(service Service) *ActionsHandler {
	return &ActionsHandler{
		service: service,
	}
}

// HandleReload drops the feed and loads it again
// POST /timeline/reload
func (h *ActionsHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	h.queued(w, h.service.Reload())
}

// HandleRefresh loads entries newer than the newest one
// POST /timeline/refresh
func (h *ActionsHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.queued(w, h.service.Refresh())
}

// HandleLoadOlder loads entries older than the oldest one
// POST /timeline/older
func (h *ActionsHandler) HandleLoadOlder(w http.ResponseWriter, r *http.Request) {
	h.queued(w, h.service.LoadOlder())
}

// HandleLoadGap fills the gap at a slot index
// POST /timeline/gaps/{index}
func (h *ActionsHandler) HandleLoadGap(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "InvalidRequest", errInvalidParam("index").Error())
		return
	}
	h.queued(w, h.service.LoadGap(r.Context(), index))
}

// HandleReveal un-hides a filtered entry
// POST /timeline/entries/{key}/reveal
func (h *ActionsHandler) HandleReveal(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "key is required")
		return
	}
	if err := h.service.Reveal(r.Context(), key); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{Status: "revealed"})
}

func (h *ActionsHandler) queued(w http.ResponseWriter, err error) {
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ActionResponse{Status: "queued"})
}
