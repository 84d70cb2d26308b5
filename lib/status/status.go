// Package status serves a read-only view of the bridge over HTTP.
package status

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/onkernel/aibridge/lib/logger"
	"github.com/onkernel/aibridge/lib/relay"
	"github.com/onkernel/aibridge/lib/tabs"
)

type Relay interface {
	Status() relay.Status
	ConnectionID() string
}

type Tabs interface {
	Tabs() []tabs.TabStatus
}

type Sites interface {
	Len() int
}

type RelayStatus struct {
	Status       relay.Status `json:"status"`
	ConnectionID string       `json:"connectionId,omitempty"`
}

type Response struct {
	Relay RelayStatus      `json:"relay"`
	Tabs  []tabs.TabStatus `json:"tabs"`
	Sites int              `json:"sites"`
}

// Handler builds the status router. sites is called per request so reloads
// show up.
func Handler(r Relay, t Tabs, sites func() Sites, slogger *slog.Logger) http.Handler {
	mux := chi.NewRouter()
	// request lines go through the bridge's handler rather than chi's stdout logger
	requestLog := chiMiddleware.RequestLogger(&chiMiddleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(slogger.Handler(), slog.LevelInfo),
		NoColor: true,
	})
	mux.Use(
		requestLog,
		chiMiddleware.Recoverer,
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctxWithLogger := logger.AddToContext(req.Context(), slogger)
				next.ServeHTTP(w, req.WithContext(ctxWithLogger))
			})
		},
	)

	mux.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})

	mux.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		resp := Response{
			Relay: RelayStatus{Status: r.Status(), ConnectionID: r.ConnectionID()},
			Tabs:  t.Tabs(),
			Sites: sites().Len(),
		}
		if resp.Tabs == nil {
			resp.Tabs = []tabs.TabStatus{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.FromContext(req.Context()).Error("failed to write status", "err", err)
		}
	})
	return mux
}
