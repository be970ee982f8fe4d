package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"git.sr.ht/~mariusor/metis/plan"
	"git.sr.ht/~mariusor/metis/storage"
)

type planRequest struct {
	From     string          `json:"from"`
	Settings json.RawMessage `json:"settings"`
}

type planResponse struct {
	plan.Plan
	Removed int `json:"removed,omitempty"`
}

// generatePlan rebuilds the agenda from scratch: pending sessions from
// the start day onward are dropped and replaced by a fresh plan laid
// around the commitments. Completed effort stays credited. The body may
// carry a start date and inline settings in their editable shape.
func (h *handler) generatePlan(w http.ResponseWriter, r *http.Request) {
	in := planRequest{}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		renderError(w, r, badRequestf("unable to decode plan request: %s", err))
		return
	}
	now := h.now()
	// planning for today starts at the current clock, an explicit date
	// gets its whole day
	from, err := parseDate(in.From, now)
	if err != nil {
		renderError(w, r, err)
		return
	}
	s := h.loadSettings()
	if len(in.Settings) > 0 {
		if s, err = plan.DecodeSettings(bytes.NewReader(in.Settings)); err != nil {
			renderError(w, r, badRequestf("%s", err))
			return
		}
	}
	p, removed, err := h.regenerate(from, s)
	if err != nil {
		renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse{Plan: p, Removed: removed})
}

func (h *handler) regenerate(from time.Time, s plan.Settings) (plan.Plan, int, error) {
	tasks, err := h.storage.LoadTasks()
	if err != nil {
		return plan.Plan{}, 0, err
	}
	commitments, err := h.storage.LoadCommitments()
	if err != nil {
		return plan.Plan{}, 0, err
	}
	history, err := h.storage.LoadSessions(h.sessionWindow(s))
	if err != nil {
		return plan.Plan{}, 0, err
	}
	// sessions already settled on the start day keep their slots
	for _, ses := range history {
		if ses.Status != plan.StatusPending && plan.SameDay(ses.Date, from) && ses.EndAt().After(from) {
			from = ses.EndAt()
		}
	}
	removed, err := h.storage.RemovePendingSessions(from)
	if err != nil {
		return plan.Plan{}, 0, err
	}
	p := plan.BuildPlan(tasks, history.CompletedByTask(), commitments, s, from)
	for di := range p.Days {
		for si := range p.Days[di].Sessions {
			p.Days[di].Sessions[si].ID = xid.New().String()
		}
	}
	if sessions := p.Sessions(); len(sessions) > 0 {
		if err = h.storage.SaveSessions(sessions...); err != nil {
			return p, removed, err
		}
	}
	return p, removed, nil
}

// showPlan reads the stored agenda back, day by day, with the busy
// occurrences and the study time still free on each day.
func (h *handler) showPlan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDate(q.Get("from"), plan.DateOf(h.now()))
	if err != nil {
		renderError(w, r, err)
		return
	}
	days := 7
	if v := q.Get("days"); v != "" {
		if days, err = strconv.Atoi(v); err != nil || days < 1 || days > 366 {
			renderError(w, r, badRequestf("invalid days %q", v))
			return
		}
	}
	commitments, err := h.storage.LoadCommitments()
	if err != nil {
		renderError(w, r, err)
		return
	}
	sessions, err := h.storage.LoadSessions(storage.Cursor(from, time.Duration(days-1)*24*time.Hour))
	if err != nil {
		renderError(w, r, err)
		return
	}
	s := h.loadSettings()
	p := plan.Plan{From: from, Days: make([]plan.DayPlan, 0, days)}
	for i := 0; i < days; i++ {
		day := from.AddDate(0, 0, i)
		dp := plan.DayPlan{Date: day, Busy: commitments.EffectiveOn(day)}
		used := time.Duration(0)
		for _, ses := range sessions {
			if plan.SameDay(ses.Date, day) {
				dp.Sessions = append(dp.Sessions, ses)
				used += ses.Duration
			}
		}
		dp.Free = plan.FreeCapacity(s, day, dp.Busy) - used
		p.Days = append(p.Days, dp)
	}
	writeJSON(w, http.StatusOK, p)
}

type sessionView struct {
	plan.Session
	State plan.State `json:"state"`
}

// listSessions returns the sessions of a day with their live state
// derived from the stored status and the clock.
func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	date, err := parseDate(r.URL.Query().Get("date"), plan.DateOf(now))
	if err != nil {
		renderError(w, r, err)
		return
	}
	sessions, err := h.storage.LoadSessions(storage.Cursor(date, 0))
	if err != nil {
		renderError(w, r, err)
		return
	}
	views := make([]sessionView, len(sessions))
	for i, ses := range sessions {
		views[i] = sessionView{Session: ses, State: ses.State(now)}
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handler) completeSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	now := h.now()
	sessions, err := h.storage.LoadSessions(h.sessionWindow(h.loadSettings()))
	if err != nil {
		renderError(w, r, err)
		return
	}
	for _, ses := range sessions {
		if ses.ID != id {
			continue
		}
		if ses.Status != plan.StatusDone {
			ses.Status = plan.StatusDone
			ses.CompletedAt = now
			if err = h.storage.SaveSessions(ses); err != nil {
				renderError(w, r, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, sessionView{Session: ses, State: ses.State(now)})
		return
	}
	renderError(w, r, notFoundf("no session %s in the scheduling window", id))
}

type redistributeResponse struct {
	Missed  int           `json:"missed"`
	Lost    time.Duration `json:"lost"`
	Removed int           `json:"removed"`
	Plan    plan.Plan     `json:"plan"`
}

// redistribute audits the stored sessions, flags expired pending ones
// as missed, and regenerates the agenda from the current clock so the
// lost effort lands on the time still left.
func (h *handler) redistribute(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	s := h.loadSettings()
	sessions, err := h.storage.LoadSessions(h.sessionWindow(s))
	if err != nil {
		renderError(w, r, err)
		return
	}
	audited, lost := plan.Audit(sessions, now)
	changed := make(plan.Sessions, 0)
	for i, ses := range audited {
		if ses.Status != sessions[i].Status {
			changed = append(changed, ses)
		}
	}
	if len(changed) > 0 {
		if err = h.storage.SaveSessions(changed...); err != nil {
			renderError(w, r, err)
			return
		}
	}
	p, removed, err := h.regenerate(now, s)
	if err != nil {
		renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, redistributeResponse{
		Missed:  len(changed),
		Lost:    lost,
		Removed: removed,
		Plan:    p,
	})
}
