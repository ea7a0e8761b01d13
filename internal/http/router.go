package http

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"voice-search-service/internal/app"
	"voice-search-service/internal/observability/logging"
	"voice-search-service/internal/service/search"
)

var page = template.Must(template.New("search").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Voice search</title>
{{if not .ShowSearchButton}}<meta http-equiv="refresh" content="1">{{end}}
</head>
<body>
<main>
{{if .ShowSearchButton}}
<form method="post" action="/v1/search/activate?redirect=1">
<button type="submit">search</button>
</form>
{{else}}
<p class="listening">listening...</p>
{{end}}
<p class="speech">{{.SpeechData}}</p>
</main>
</body>
</html>
`))

type stateResponse struct {
	search.UIState
	Listening bool `json:"listening"`
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	r := chi.NewRouter()
	logger := logging.WithComponent("http")

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := page.Execute(w, application.Search.State()); err != nil {
			logger.Error().Err(err).Msg("Failed to render search page")
		}
	})

	// API routes
	r.Route("/v1/search", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeState(w, http.StatusOK, application.Search)
		})

		r.Post("/activate", func(w http.ResponseWriter, req *http.Request) {
			// The capture loop outlives the request.
			err := application.Search.ActivateCapture(context.WithoutCancel(req.Context()))
			if errors.Is(err, search.ErrTornDown) {
				writeError(w, http.StatusServiceUnavailable, err)
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if req.URL.Query().Get("redirect") != "" {
				http.Redirect(w, req, "/", http.StatusSeeOther)
				return
			}
			writeState(w, http.StatusAccepted, application.Search)
		})
	})

	return r
}

func writeState(w http.ResponseWriter, code int, s app.Searcher) {
	writeJSON(w, code, stateResponse{UIState: s.State(), Listening: s.Running()})
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Str("requestId", middleware.GetReqID(r.Context())).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}
