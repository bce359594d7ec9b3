package tracker

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/gagstock/shield"
	"github.com/hazyhaar/gagstock/stock/inventory"
)

// Version is reported by the MCP server.
var Version = "dev"

var endpoints = []string{
	"/health",
	"/api/stock",
	"/api/v1/stock",
	"/api/v1/stock/{category}",
	"/api/weather",
	"/api/v1/weather",
	"/api/raw/stock",
	"/api/raw/weather",
	"/api/status",
	"/api/test",
	"/socket",
	"/mcp",
}

type envelope struct {
	Success   bool  `json:"success"`
	Timestamp int64 `json:"timestamp"`
	Data      any   `json:"data"`
}

// Handler returns the HTTP surface: REST API, socket and MCP.
func (t *Tracker) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})

	stockHandler := func(w http.ResponseWriter, _ *http.Request) { t.wrapped(w, http.StatusOK, t.Stock()) }
	weatherHandler := func(w http.ResponseWriter, _ *http.Request) { t.wrapped(w, http.StatusOK, t.Weather()) }

	r.Get("/api/stock", stockHandler)
	r.Get("/api/weather", weatherHandler)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stock", stockHandler)
		r.Get("/stock/{category}", func(w http.ResponseWriter, r *http.Request) {
			name := chi.URLParam(r, "category")
			c, ok := inventory.ParseCategory(name)
			if !ok {
				shield.GetLogger(r.Context()).Debug("tracker: unknown stock category", "category", name)
				writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "unknown category"})
				return
			}
			t.wrapped(w, http.StatusOK, t.Stock().Bucket(c))
		})
		r.Get("/weather", weatherHandler)
	})

	r.Get("/api/raw/stock", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, t.Stock())
	})
	r.Get("/api/raw/weather", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, t.Weather())
	})
	r.Get("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, t.Status())
	})
	r.Get("/api/test", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":   "gagstock API is running",
			"timestamp": t.clock.Now().UnixMilli(),
			"endpoints": endpoints,
		})
	})

	r.Handle("/socket", t.hub.Handler())

	mcpSrv := t.NewMCPServer(Version)
	r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))

	if dir := t.cfg.StaticDir; dir != "" {
		r.Handle("/*", http.FileServer(http.Dir(dir)))
	}
	return r
}

func (t *Tracker) wrapped(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Success: true, Timestamp: t.clock.Now().UnixMilli(), Data: data})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
