package httpx

import (
	"net/http"
)

// VisitorCounter reports how many visitor contexts are live.
type VisitorCounter interface {
	Len() int
}

type healthResponse struct {
	Status   string `json:"status"`
	Visitors int    `json:"visitors"`
}

// healthHandler returns 200 OK for readiness/liveness checks.
func healthHandler(counter VisitorCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			return
		}
		resp := healthResponse{Status: "ok"}
		if counter != nil {
			resp.Visitors = counter.Len()
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
