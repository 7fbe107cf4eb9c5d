package server

import (
	"net/http"

	"github.com/squadops/squadops/internal/gamefiles"
	"github.com/squadops/squadops/internal/registry"
)

// instanceForFiles resolves the registry record whose install path the
// game config file handlers operate on.
func (s *APIServer) instanceForFiles(w http.ResponseWriter, r *http.Request) (registry.Instance, bool) {
	id, err := instanceID(r)
	if err != nil {
		writeFault(w, err)
		return registry.Instance{}, false
	}
	inst, err := s.registry.Instance(r.Context(), id)
	if err != nil {
		writeFault(w, err)
		return registry.Instance{}, false
	}
	return inst, true
}

func (s *APIServer) handleGetRconConfig(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceForFiles(w, r)
	if !ok {
		return
	}

	creds, err := gamefiles.ReadRconConfig(gamefiles.RconConfigPath(inst.InstallPath))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

func (s *APIServer) handlePutRconConfig(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceForFiles(w, r)
	if !ok {
		return
	}

	var update gamefiles.RconUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeFault(w, err)
		return
	}

	path := gamefiles.RconConfigPath(inst.InstallPath)
	if err := gamefiles.UpdateRconConfig(path, update); err != nil {
		writeFault(w, err)
		return
	}

	creds, err := gamefiles.ReadRconConfig(path)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

// adminConfigResponse is the structured view of Admins.cfg.
type adminConfigResponse struct {
	Groups      []gamefiles.Group      `json:"groups"`
	Assignments []gamefiles.Assignment `json:"assignments"`
}

func (s *APIServer) handleGetAdmins(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceForFiles(w, r)
	if !ok {
		return
	}

	cfg, err := gamefiles.NewAdminStore(inst.InstallPath).Load()
	if err != nil {
		writeFault(w, err)
		return
	}

	resp := adminConfigResponse{Groups: cfg.Groups(), Assignments: cfg.Assignments()}
	if resp.Groups == nil {
		resp.Groups = []gamefiles.Group{}
	}
	if resp.Assignments == nil {
		resp.Assignments = []gamefiles.Assignment{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type groupRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func (s *APIServer) handleAddGroup(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceForFiles(w, r)
	if !ok {
		return
	}

	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}

	if err := gamefiles.NewAdminStore(inst.InstallPath).AddGroup(req.Name, req.Permissions); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *APIServer) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceForFiles(w, r)
	if !ok {
		return
	}

	if err := gamefiles.NewAdminStore(inst.InstallPath).DeleteGroup(r.PathValue("name")); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleAddAssignment(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceForFiles(w, r)
	if !ok {
		return
	}

	var req gamefiles.Assignment
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}

	if err := gamefiles.NewAdminStore(inst.InstallPath).AddAssignment(req); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *APIServer) handleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceForFiles(w, r)
	if !ok {
		return
	}

	store := gamefiles.NewAdminStore(inst.InstallPath)
	if err := store.DeleteAssignment(r.PathValue("identity"), r.PathValue("group")); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleListBans(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceForFiles(w, r)
	if !ok {
		return
	}

	file, err := gamefiles.NewBanStore(inst.InstallPath).Load()
	if err != nil {
		writeFault(w, err)
		return
	}

	entries := file.Entries()
	if entries == nil {
		entries = []gamefiles.BanEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *APIServer) handleAddBan(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceForFiles(w, r)
	if !ok {
		return
	}

	var req gamefiles.BanEntry
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}

	if err := gamefiles.NewBanStore(inst.InstallPath).Add(req); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

type banEditRequest struct {
	Expires int64  `json:"expires"`
	Comment string `json:"comment"`
}

func (s *APIServer) handleEditBan(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceForFiles(w, r)
	if !ok {
		return
	}

	var req banEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}

	store := gamefiles.NewBanStore(inst.InstallPath)
	if err := store.Edit(r.PathValue("identity"), req.Expires, req.Comment); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleRemoveBan(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceForFiles(w, r)
	if !ok {
		return
	}

	if err := gamefiles.NewBanStore(inst.InstallPath).Remove(r.PathValue("identity")); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
