package timeline

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetViewportRequest describes what the client currently shows
type SetViewportRequest struct {
	Start    int  `json:"start"`
	End      int  `json:"end"`
	NearTail bool `json:"nearTail"`
}

// SetSleepingRequest reports the system sleep state
type SetSleepingRequest struct {
	Sleeping bool `json:"sleeping"`
}

// PinSpecialRequest places a special slot
type PinSpecialRequest struct {
	Key   string `json:"key"`
	Index int    `json:"index"`
}

// reportedViewport is a viewport fixed at the time it was reported
type reportedViewport struct {
	start, end int
	nearTail   bool
}

func (v reportedViewport) NearTail() bool                 { return v.nearTail }
func (v reportedViewport) VisibleRange() (start, end int) { return v.start, v.end }

// PresentationHandler relays presentation state from a client to the timeline
type PresentationHandler struct {
	service Service
}

// NewPresentationHandler creates a new presentation handler
func NewPresentationHandler(service Service) *PresentationHandler {
	return &PresentationHandler{
		service: service,
	}
}

// HandleSetViewport installs the visible range used for truncation and filter refresh
// POST /timeline/viewport
//
// Request body: { "start": 0, "end": 20, "nearTail": false }
func (h *PresentationHandler) HandleSetViewport(w http.ResponseWriter, r *http.Request) {
	var req SetViewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}
	if req.Start < 0 || req.End < req.Start {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "start must be non-negative and end must not precede it")
		return
	}

	h.queued(w, h.service.SetViewport(reportedViewport{start: req.Start, end: req.End, nearTail: req.NearTail}))
}

// HandleSetSleeping records sleep and wake
// POST /timeline/sleep
//
// Request body: { "sleeping": true }
func (h *PresentationHandler) HandleSetSleeping(w http.ResponseWriter, r *http.Request) {
	var req SetSleepingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	h.queued(w, h.service.SetSleeping(req.Sleeping))
}

// HandlePinSpecial inserts a special slot
// POST /timeline/specials
//
// Request body: { "key": "compose", "index": 0 }
func (h *PresentationHandler) HandlePinSpecial(w http.ResponseWriter, r *http.Request) {
	var req PinSpecialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "key is required")
		return
	}
	if req.Index < 0 {
		writeError(w, http.StatusBadRequest, "InvalidRequest", errInvalidParam("index").Error())
		return
	}

	h.queued(w, h.service.PinSpecial(req.Key, req.Index))
}

// HandleUnpinSpecial removes a special slot
// DELETE /timeline/specials/{key}
func (h *PresentationHandler) HandleUnpinSpecial(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "key is required")
		return
	}

	h.queued(w, h.service.UnpinSpecial(key))
}

func (h *PresentationHandler) queued(w http.ResponseWriter, err error) {
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ActionResponse{Status: "queued"})
}
