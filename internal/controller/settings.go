package controller

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"example.com/colony-brain/internal/db"
	"golang.org/x/crypto/ssh"
)

type exportTargetRequest struct {
	Address  string `json:"address"`
	User     string `json:"user"`
	SSHKey   string `json:"ssh_key"`
	Password string `json:"password"`
	Dir      string `json:"dir"`
}

func (req exportTargetRequest) validate() error {
	if strings.TrimSpace(req.Address) == "" || strings.TrimSpace(req.User) == "" {
		return errors.New("address and user required")
	}
	if strings.TrimSpace(req.SSHKey) == "" && req.Password == "" {
		return errors.New("ssh_key or password required")
	}
	if strings.TrimSpace(req.SSHKey) != "" {
		if _, err := ssh.ParsePrivateKey([]byte(req.SSHKey)); err != nil {
			return errors.New("ssh_key must be a valid private key")
		}
	}
	return nil
}

func (req exportTargetRequest) toExportTarget() db.ExportTarget {
	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		dir = "colony-saves"
	}
	return db.ExportTarget{
		Address:  strings.TrimSpace(req.Address),
		User:     strings.TrimSpace(req.User),
		SSHKey:   req.SSHKey,
		Password: req.Password,
		Dir:      dir,
	}
}

// exportTargetView never echoes secrets back, only the public half of the key.
type exportTargetView struct {
	Address      string `json:"address"`
	User         string `json:"user"`
	Dir          string `json:"dir"`
	HasPassword  bool   `json:"has_password"`
	SSHPublicKey string `json:"ssh_public_key,omitempty"`
}

func viewOf(t db.ExportTarget) exportTargetView {
	return exportTargetView{
		Address:      t.Address,
		User:         t.User,
		Dir:          t.Dir,
		HasPassword:  t.Password != "",
		SSHPublicKey: publicKey(t.SSHKey),
	}
}

func publicKey(rawKey string) string {
	if rawKey == "" {
		return ""
	}
	signer, err := ssh.ParsePrivateKey([]byte(rawKey))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey())))
}

func withDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, "22")
}

func (c *Controller) GetExportTarget(w http.ResponseWriter, r *http.Request) {
	t, err := c.DB.GetExportTarget(r.Context())
	if err != nil {
		c.Log.Error("get export target", "err", err)
		respondError(w, http.StatusInternalServerError, "failed to load export target")
		return
	}
	if t == nil {
		respondJSON(w, http.StatusOK, map[string]any{"export_target": nil})
		return
	}
	respondJSON(w, http.StatusOK, map[string]exportTargetView{"export_target": viewOf(*t)})
}

func (c *Controller) UpdateExportTarget(w http.ResponseWriter, r *http.Request) {
	var req exportTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid export target")
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	t := req.toExportTarget()
	if err := c.DB.SaveExportTarget(r.Context(), t); err != nil {
		c.Log.Error("update export target", "err", err)
		respondError(w, http.StatusInternalServerError, "failed to save export target")
		return
	}
	respondJSON(w, http.StatusOK, map[string]exportTargetView{"export_target": viewOf(t)})
}
