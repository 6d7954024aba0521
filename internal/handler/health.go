package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks a dependency. *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves GET /health. With a nil database the check always
// passes.
type HealthHandler struct {
	db      Pinger
	clients func() int
}

// NewHealthHandler creates a HealthHandler. clients reports connected
// WebSocket clients and may be nil.
func NewHealthHandler(db Pinger, clients func() int) *HealthHandler {
	return &HealthHandler{db: db, clients: clients}
}

type healthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	WSClients int    `json:"wsClients"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "disabled"}
	if h.clients != nil {
		resp.WSClients = h.clients()
	}

	status := http.StatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			resp.Status, resp.Database = "degraded", "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	writeJSON(w, status, resp)
}
