package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerPublicDomainRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/sports", handler.ListSports)
	mux.HandleFunc("GET /v1/leagues", handler.ListLeagues)
	mux.HandleFunc("GET /v1/matches", handler.ListMatches)
	mux.HandleFunc("GET /v1/matches/review-candidates", handler.ListReviewCandidates)
	mux.HandleFunc("GET /v1/matches/{matchID}", handler.GetMatch)
	mux.HandleFunc("GET /v1/matches/{matchID}/audit", handler.GetMatchAuditTrail)
}

func registerAdminRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/admin/matches/{matchID}/status", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.ForceMatchStatus)))
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/internal/jobs/sync-cycle", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunSyncCycleJob)))
	mux.Handle("POST /v1/internal/jobs/lifecycle/{layer}", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunLifecycleLayerJob)))
}
