package routes

import (
	"github.com/go-chi/chi/v5"

	"Tootline/internal/api/handlers/timeline"
)

// RegisterTimelineRoutes registers the timeline debug endpoints
func RegisterTimelineRoutes(r chi.Router, service timeline.Service) {
	// Create handlers
	getTimelineHandler := timeline.NewGetTimelineHandler(service)
	actionsHandler := timeline.NewActionsHandler(service)
	presentationHandler := timeline.NewPresentationHandler(service)

	r.Route("/timeline", func(r chi.Router) {
		// GET /timeline?offset=0&limit=50
		r.Get("/", getTimelineHandler.HandleGetTimeline)

		r.Post("/reload", actionsHandler.HandleReload)
		r.Post("/refresh", actionsHandler.HandleRefresh)
		r.Post("/older", actionsHandler.HandleLoadOlder)
		r.Post("/gaps/{index}", actionsHandler.HandleLoadGap)
		r.Post("/entries/{key}/reveal", actionsHandler.HandleReveal)

		r.Post("/viewport", presentationHandler.HandleSetViewport)
		r.Post("/sleep", presentationHandler.HandleSetSleeping)
		r.Post("/specials", presentationHandler.HandlePinSpecial)
		r.Delete("/specials/{key}", presentationHandler.HandleUnpinSpecial)
	})
}
