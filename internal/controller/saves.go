package controller

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"example.com/colony-brain/internal/agent"
	"example.com/colony-brain/internal/db"
	mqttc "example.com/colony-brain/internal/mqtt"
	sshc "example.com/colony-brain/internal/ssh"
)

func (c *Controller) ListSaves(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	saves, err := c.DB.ListSaves(r.Context(), q.Get("agent"), q.Get("animal"))
	if err != nil {
		c.Log.Error("list saves", "err", err)
		respondError(w, http.StatusInternalServerError, "failed to list saves")
		return
	}
	respondJSON(w, http.StatusOK, saves)
}

// loadSave fetches the save named by the {id} path value, writing the error
// response itself when it fails.
func (c *Controller) loadSave(w http.ResponseWriter, r *http.Request) (db.Save, bool) {
	id, err := parseIDValue(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid save id")
		return db.Save{}, false
	}
	s, err := c.DB.GetSave(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "save not found")
			return db.Save{}, false
		}
		c.Log.Error("get save", "save_id", id, "err", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch save")
		return db.Save{}, false
	}
	return s, true
}

func (c *Controller) GetSave(w http.ResponseWriter, r *http.Request) {
	s, ok := c.loadSave(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s)
}

func (c *Controller) DeleteSave(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDValue(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid save id")
		return
	}
	if err := c.DB.DeleteSave(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "save not found")
			return
		}
		c.Log.Error("delete save", "save_id", id, "err", err)
		respondError(w, http.StatusInternalServerError, "failed to delete save")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreSave sends a stored save back to its agent as a load command.
func (c *Controller) RestoreSave(w http.ResponseWriter, r *http.Request) {
	s, ok := c.loadSave(w, r)
	if !ok {
		return
	}
	c.restore(w, r, s)
}

// RestoreLatest restores the newest save of an animal.
func (c *Controller) RestoreLatest(w http.ResponseWriter, r *http.Request) {
	agentID, animalID, err := animalPath(r)
	if err != nil || animalID == "" {
		respondError(w, http.StatusBadRequest, "invalid animal path")
		return
	}
	s, err := c.DB.LatestSave(r.Context(), agentID, animalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "no save for animal")
			return
		}
		c.Log.Error("latest save", "agent", agentID, "animal", animalID, "err", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch save")
		return
	}
	c.restore(w, r, s)
}

func (c *Controller) restore(w http.ResponseWriter, r *http.Request, s db.Save) {
	var payload agent.SavePayload
	if err := json.Unmarshal(s.Payload, &payload); err != nil {
		c.Log.Error("decode stored save", "save_id", s.ID, "err", err)
		respondError(w, http.StatusUnprocessableEntity, "stored save is unreadable")
		return
	}
	cmd, err := agent.NewCommand(agent.CommandLoad, s.AnimalID, agent.LoadData{Save: payload})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode command")
		return
	}
	rec, err := c.sendCommand(r.Context(), mqttc.CommandTopic(s.AgentID), s.AgentID, cmd)
	if err != nil {
		c.Log.Error("queue restore", "save_id", s.ID, "err", err)
		respondError(w, http.StatusInternalServerError, "failed to queue command")
		return
	}
	respondJSON(w, http.StatusAccepted, rec)
}

// exportHost loads the configured export target, writing the error response
// itself when there is none.
func (c *Controller) exportHost(w http.ResponseWriter, r *http.Request) (sshc.HostSpec, string, bool) {
	target, err := c.DB.GetExportTarget(r.Context())
	if err != nil {
		c.Log.Error("get export target", "err", err)
		respondError(w, http.StatusInternalServerError, "failed to load export target")
		return sshc.HostSpec{}, "", false
	}
	if target == nil {
		respondError(w, http.StatusConflict, "no export target configured")
		return sshc.HostSpec{}, "", false
	}
	h := sshc.HostSpec{
		Addr:       withDefaultPort(target.Address),
		User:       target.User,
		PrivateKey: []byte(target.SSHKey),
		Password:   target.Password,
	}
	return h, target.Dir, true
}

// ExportSave uploads a save to the configured SFTP target.
func (c *Controller) ExportSave(w http.ResponseWriter, r *http.Request) {
	s, ok := c.loadSave(w, r)
	if !ok {
		return
	}
	host, dir, ok := c.exportHost(w, r)
	if !ok {
		return
	}
	name := sshc.ExportFileName(s.AgentID, s.AnimalID, s.ID, s.SavedAt)
	remote, err := c.Export(host, dir, name, s.Payload)
	if err != nil {
		c.Log.Error("export save", "save_id", s.ID, "host", host.Addr, "err", err)
		respondError(w, http.StatusBadGateway, "export failed: "+err.Error())
		return
	}
	c.Log.Info("save exported", "save_id", s.ID, "host", host.Addr, "path", remote)
	respondJSON(w, http.StatusOK, map[string]string{"path": remote})
}

// ListExports lists the save files already on the export host.
func (c *Controller) ListExports(w http.ResponseWriter, r *http.Request) {
	host, dir, ok := c.exportHost(w, r)
	if !ok {
		return
	}
	files, err := c.ListRemote(host, dir)
	if err != nil {
		c.Log.Error("list exports", "host", host.Addr, "err", err)
		respondError(w, http.StatusBadGateway, "list exports failed: "+err.Error())
		return
	}
	if files == nil {
		files = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"dir": dir, "files": files})
}
