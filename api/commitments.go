package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"git.sr.ht/~mariusor/metis/plan"
	"git.sr.ht/~mariusor/metis/storage"
)

type conflictsResponse struct {
	Conflicts plan.Conflicts `json:"conflicts"`
	Blocked   bool           `json:"blocked"`
}

// checkConflicts runs the conflict rules for a proposed commitment
// without persisting anything. Sending the id of a stored commitment
// checks an edit, which never clashes with itself.
func (h *handler) checkConflicts(w http.ResponseWriter, r *http.Request) {
	in := commitmentRequest{}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		renderError(w, r, badRequestf("unable to decode commitment: %s", err))
		return
	}
	c, err := in.commitment(h.now())
	if err != nil {
		renderError(w, r, err)
		return
	}
	existing, err := h.storage.LoadCommitments()
	if err != nil {
		renderError(w, r, err)
		return
	}
	verdicts := plan.CheckConflicts(c, existing)
	writeJSON(w, http.StatusOK, conflictsResponse{Conflicts: verdicts, Blocked: verdicts.Blocking()})
}

func (h *handler) listCommitments(w http.ResponseWriter, r *http.Request) {
	commitments, err := h.storage.LoadCommitments()
	if err != nil {
		renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commitments)
}

// createCommitment stores a commitment, or updates it when the body
// carries the id of a stored one. A strict conflict blocks the write
// with a 409 carrying the verdicts, unless force=1; override verdicts
// ride along on success.
func (h *handler) createCommitment(w http.ResponseWriter, r *http.Request) {
	in := commitmentRequest{}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		renderError(w, r, badRequestf("unable to decode commitment: %s", err))
		return
	}
	c, err := in.commitment(h.now())
	if err != nil {
		renderError(w, r, err)
		return
	}
	existing, err := h.storage.LoadCommitments()
	if err != nil {
		renderError(w, r, err)
		return
	}
	verdicts := plan.CheckConflicts(c, existing)
	if verdicts.Blocking() && r.URL.Query().Get("force") != "1" {
		writeJSON(w, http.StatusConflict, conflictsResponse{Conflicts: verdicts, Blocked: true})
		return
	}
	status := http.StatusCreated
	if c.ID == "" {
		c.ID = xid.New().String()
	} else if _, stored := existing.Find(c.ID); stored {
		status = http.StatusOK
	}
	if err = h.storage.SaveCommitments(c); err != nil {
		renderError(w, r, err)
		return
	}
	writeJSON(w, status, struct {
		Commitment plan.Commitment `json:"commitment"`
		Conflicts  plan.Conflicts  `json:"conflicts,omitempty"`
	}{Commitment: c, Conflicts: verdicts})
}

func (h *handler) removeCommitment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.storage.RemoveCommitments(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			renderError(w, r, notFoundf("no commitment %s", id))
		} else {
			renderError(w, r, err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
