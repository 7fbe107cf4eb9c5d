package server

import (
	"net/http"
	"strconv"

	"github.com/squadops/squadops/internal/fault"
	"github.com/squadops/squadops/internal/registry"
)

// instanceRequest carries the caller-settable fields of an instance.
type instanceRequest struct {
	Name         string `json:"name"`
	InstallPath  string `json:"install_path"`
	GamePort     int    `json:"game_port"`
	QueryPort    int    `json:"query_port"`
	RCONPort     int    `json:"rcon_port"`
	BeaconPort   int    `json:"beacon_port"`
	RCONPassword string `json:"rcon_password"`
	ExtraArgs    string `json:"extra_args"`
}

func (r instanceRequest) toInstance() registry.Instance {
	return registry.Instance{
		Name:         r.Name,
		InstallPath:  r.InstallPath,
		GamePort:     r.GamePort,
		QueryPort:    r.QueryPort,
		RCONPort:     r.RCONPort,
		BeaconPort:   r.BeaconPort,
		RCONPassword: r.RCONPassword,
		ExtraArgs:    r.ExtraArgs,
	}
}

// instanceID parses the {id} path segment.
func instanceID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fault.New(fault.KindBadInput, "server: bad instance id %q", r.PathValue("id"))
	}
	return id, nil
}

func (s *APIServer) handleListInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := s.registry.Instances(r.Context())
	if err != nil {
		writeFault(w, err)
		return
	}
	if instances == nil {
		instances = []registry.Instance{}
	}
	writeJSON(w, http.StatusOK, instances)
}

func (s *APIServer) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var req instanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}

	inst, err := s.registry.CreateInstance(r.Context(), req.toInstance())
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

func (s *APIServer) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	id, err := instanceID(r)
	if err != nil {
		writeFault(w, err)
		return
	}

	inst, err := s.registry.Instance(r.Context(), id)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *APIServer) handleUpdateInstance(w http.ResponseWriter, r *http.Request) {
	id, err := instanceID(r)
	if err != nil {
		writeFault(w, err)
		return
	}

	var req instanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}

	inst := req.toInstance()
	inst.ID = id
	if err := s.registry.UpdateInstance(r.Context(), inst); err != nil {
		writeFault(w, err)
		return
	}

	updated, err := s.registry.Instance(r.Context(), id)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *APIServer) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	id, err := instanceID(r)
	if err != nil {
		writeFault(w, err)
		return
	}

	if s.supervisor.Running(id) {
		writeFault(w, fault.New(fault.KindConflict, "server: instance %d is running, stop it first", id))
		return
	}

	if err := s.registry.DeleteInstance(r.Context(), id); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleStart(w http.ResponseWriter, r *http.Request) {
	id, err := instanceID(r)
	if err != nil {
		writeFault(w, err)
		return
	}
	if err := s.supervisor.Start(r.Context(), id); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *APIServer) handleStop(w http.ResponseWriter, r *http.Request) {
	id, err := instanceID(r)
	if err != nil {
		writeFault(w, err)
		return
	}
	if err := s.supervisor.Stop(r.Context(), id); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *APIServer) handleRestart(w http.ResponseWriter, r *http.Request) {
	id, err := instanceID(r)
	if err != nil {
		writeFault(w, err)
		return
	}
	if err := s.supervisor.Restart(r.Context(), id); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type commandRequest struct {
	Command string `json:"command"`
}

type commandResponse struct {
	Response string `json:"response"`
}

func (s *APIServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	id, err := instanceID(r)
	if err != nil {
		writeFault(w, err)
		return
	}

	var req commandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}
	if req.Command == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	response, err := s.supervisor.Execute(id, req.Command)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Response: response})
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := instanceID(r)
	if err != nil {
		writeFault(w, err)
		return
	}

	st, err := s.supervisor.Status(r.Context(), id)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
