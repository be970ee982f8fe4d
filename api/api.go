// Package api is the JSON surface of the planner: tasks, commitments,
// conflict verdicts, the generated plan, session states and aggregate
// stats, plus an iCalendar feed of everything scheduled.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"git.sr.ht/~mariusor/lw"
	"github.com/go-ap/errors"
	"github.com/go-chi/chi/v5"

	"git.sr.ht/~mariusor/metis/plan"
	"git.sr.ht/~mariusor/metis/storage"
)

type Config struct {
	Storage      storage.Store
	SettingsPath string
	Version      string
	BaseURL      string
	Logger       lw.Logger
}

func Routes(c Config) http.Handler {
	return newHandler(c).routes()
}

type handler struct {
	storage  storage.Store
	settings string
	version  string
	baseURL  string
	logger   lw.Logger
	now      func() time.Time
}

func newHandler(c Config) *handler {
	h := handler{
		storage:  c.Storage,
		settings: c.SettingsPath,
		version:  c.Version,
		baseURL:  c.BaseURL,
		logger:   c.Logger,
		now:      time.Now,
	}
	if h.logger == nil {
		h.logger = lw.Dev()
	}
	return &h
}

func (h *handler) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.logRequests)
	r.Post("/conflicts", h.checkConflicts)
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.listTasks)
		r.Post("/", h.createTask)
		r.Delete("/{id}", h.removeTask)
		r.Post("/{id}/done", h.completeTask)
	})
	r.Route("/commitments", func(r chi.Router) {
		r.Get("/", h.listCommitments)
		r.Post("/", h.createCommitment)
		r.Delete("/{id}", h.removeCommitment)
	})
	r.Route("/plan", func(r chi.Router) {
		r.Get("/", h.showPlan)
		r.Post("/", h.generatePlan)
	})
	r.Get("/sessions", h.listSessions)
	r.Post("/sessions/{id}/done", h.completeSession)
	r.Post("/redistribute", h.redistribute)
	r.Get("/stats", h.showStats)
	r.Get("/ical/{feed}", h.serveCalendar)
	return r
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Debugf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// loadSettings never fails the request, a broken settings file degrades
// to the defaults.
func (h *handler) loadSettings() plan.Settings {
	s, err := plan.LoadSettings(h.settings)
	if err != nil {
		h.logger.Warnf("unable to read settings: %s", err)
	}
	return s
}

// sessionWindow is the cursor covering every session the API reasons
// about: one horizon back for completed effort, one forward for the
// pending plan.
func (h *handler) sessionWindow(s plan.Settings) storage.DateCursor {
	horizon := time.Duration(s.HorizonDays) * 24 * time.Hour
	return storage.Cursor(plan.DateOf(h.now()).Add(-horizon), 2*horizon)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	errors.HandleError(err).ServeHTTP(w, r)
}

func badRequestf(format string, args ...interface{}) error {
	return errors.BadRequestf(format, args...)
}

func notFoundf(format string, args ...interface{}) error {
	return errors.NotFoundf(format, args...)
}

func parseDate(v string, fallback time.Time) (time.Time, error) {
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}, badRequestf("invalid date %q, expected YYYY-MM-DD", v)
	}
	return d, nil
}
