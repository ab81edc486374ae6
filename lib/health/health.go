// Package health serves the liveness endpoint.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/icco/animeportal/lib/validation"
	"gorm.io/gorm"
)

// Component is the state of one dependency.
type Component struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health represents the health check response structure.
type Health struct {
	Status    string     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	DB        Component  `json:"db"`
	Sessions  *Component `json:"sessions,omitempty"`
}

// Pinger is implemented by session stores that sit behind a network
// connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check returns an HTTP handler that verifies the database connection and,
// when sessions implements Pinger, the session store.
func Check(db *gorm.DB, sessions any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := Health{
			Status:    "ok",
			Timestamp: time.Now(),
			DB:        Component{Status: "ok"},
		}

		sqlDB, err := db.DB()
		switch {
		case err != nil:
			health.DB = Component{Status: "error", Message: "Failed to get database connection"}
		case sqlDB.PingContext(ctx) != nil:
			health.DB = Component{Status: "error", Message: "Database ping failed"}
		}

		if p, ok := sessions.(Pinger); ok {
			health.Sessions = &Component{Status: "ok"}
			if err := p.Ping(ctx); err != nil {
				health.Sessions = &Component{Status: "error", Message: "Session store ping failed"}
			}
		}

		status := http.StatusOK
		if health.DB.Status != "ok" || (health.Sessions != nil && health.Sessions.Status != "ok") {
			health.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		validation.WriteJSON(w, status, health)
	}
}
