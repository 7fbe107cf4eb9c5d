package server

import (
	"net/http"
	"sort"
)

func (s *APIServer) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req instanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}

	task, err := s.tasks.Deploy(r.Context(), req.toInstance())
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

func (s *APIServer) handleUpdateFiles(w http.ResponseWriter, r *http.Request) {
	id, err := instanceID(r)
	if err != nil {
		writeFault(w, err)
		return
	}

	if s.supervisor.Running(id) {
		writeError(w, http.StatusConflict, "stop the instance before updating its files")
		return
	}

	task, err := s.tasks.Update(r.Context(), id)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

func (s *APIServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	list := s.tasks.Tasks()
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	writeJSON(w, http.StatusOK, list)
}

func (s *APIServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Task(r.PathValue("id"))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
