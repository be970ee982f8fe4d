package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"git.sr.ht/~mariusor/metis/storage"
)

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.storage.LoadTasks()
	if err != nil {
		renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *handler) createTask(w http.ResponseWriter, r *http.Request) {
	in := taskRequest{}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		renderError(w, r, badRequestf("unable to decode task: %s", err))
		return
	}
	t, err := in.task(h.now())
	if err != nil {
		renderError(w, r, err)
		return
	}
	if err = h.storage.SaveTasks(t); err != nil {
		renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *handler) removeTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.storage.RemoveTasks(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			renderError(w, r, notFoundf("no task %s", id))
		} else {
			renderError(w, r, err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) completeTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.storage.LoadTask(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			renderError(w, r, notFoundf("no task %s", id))
		} else {
			renderError(w, r, err)
		}
		return
	}
	if !t.IsDone() {
		t.DoneAt = h.now()
		if err = h.storage.SaveTasks(t); err != nil {
			renderError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, t)
}
