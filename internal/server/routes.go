package server

import "net/http"

func NewMux(cases *CaseHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /cases", cases.HandleCreateCase)
	mux.HandleFunc("GET /cases/{id}/status", cases.HandleCaseStatus)
	mux.HandleFunc("GET /cases/{id}/bundle", cases.HandleCaseBundle)
	mux.HandleFunc("GET /cases/{id}/artifacts", cases.HandleListArtifacts)
	mux.HandleFunc("GET /cases/{id}/events", cases.HandleCaseEvents)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return cors(mux)
}
