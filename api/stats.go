package api

import (
	"net/http"
	"time"

	"git.sr.ht/~mariusor/metis/plan"
	"git.sr.ht/~mariusor/metis/storage"
)

// showStats aggregates the window [from, to], by default the trailing
// week. Task progress always draws on the full session history, so the
// per task numbers do not jump around with the window.
func (h *handler) showStats(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	q := r.URL.Query()
	from, err := parseDate(q.Get("from"), plan.DateOf(now).AddDate(0, 0, -6))
	if err != nil {
		renderError(w, r, err)
		return
	}
	to, err := parseDate(q.Get("to"), plan.DateOf(now))
	if err != nil {
		renderError(w, r, err)
		return
	}
	if to.Before(from) {
		renderError(w, r, badRequestf("stats window ends before it starts"))
		return
	}
	s := h.loadSettings()
	tasks, err := h.storage.LoadTasks()
	if err != nil {
		renderError(w, r, err)
		return
	}
	horizon := time.Duration(s.HorizonDays) * 24 * time.Hour
	lo := plan.DateOf(now).Add(-horizon)
	if from.Before(lo) {
		lo = from
	}
	hi := plan.DateOf(now).Add(horizon)
	if to.After(hi) {
		hi = to
	}
	sessions, err := h.storage.LoadSessions(storage.Cursor(lo, hi.Sub(lo)))
	if err != nil {
		renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan.Aggregate(tasks, sessions, s, now, from, to))
}
