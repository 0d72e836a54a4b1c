package timeline

import (
	"net/http"
	"strconv"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// GetTimelineResponse is a window of the slot sequence
type GetTimelineResponse struct {
	Slots  []SlotView `json:"slots"`
	Total  int        `json:"total"`
	Offset int        `json:"offset"`
}

// GetTimelineHandler serves the current slot sequence
type GetTimelineHandler struct {
	service Service
}

// NewGetTimelineHandler creates a new timeline handler
func NewGetTimelineHandler(service Service) *GetTimelineHandler {
	return &GetTimelineHandler{
		service: service,
	}
}

// HandleGetTimeline returns a window of the feed
// GET /timeline?offset=0&limit=50
func (h *GetTimelineHandler) HandleGetTimeline(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	views, err := h.service.Snapshot(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	start := min(offset, len(views))
	end := min(start+limit, len(views))
	resp := GetTimelineResponse{
		Slots:  make([]SlotView, 0, end-start),
		Total:  len(views),
		Offset: start,
	}
	for i := start; i < end; i++ {
		resp.Slots = append(resp.Slots, SlotView{SlotView: views[i], Index: i})
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseWindow reads offset and limit (default: 50, max: 500)
func parseWindow(r *http.Request) (int, int, error) {
	offset, limit := 0, defaultLimit

	if s := r.URL.Query().Get("offset"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return 0, 0, errInvalidParam("offset")
		}
		offset = v
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return 0, 0, errInvalidParam("limit")
		}
		limit = min(v, maxLimit)
	}
	return offset, limit, nil
}
