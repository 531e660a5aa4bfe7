package sshc

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type HostSpec struct {
	Addr       string
	User       string
	PrivateKey []byte
	Password   string
}

func authMethods(h HostSpec) ([]ssh.AuthMethod, error) {
	if h.Addr == "" || h.User == "" {
		return nil, errors.New("host addr and user required")
	}
	var methods []ssh.AuthMethod
	if len(bytes.TrimSpace(h.PrivateKey)) > 0 {
		signer, err := ssh.ParsePrivateKey(bytes.TrimSpace(h.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if h.Password != "" {
		methods = append(methods, ssh.Password(h.Password))
	}
	if len(methods) == 0 {
		return nil, errors.New("no auth methods provided")
	}
	return methods, nil
}

func dial(h HostSpec) (*ssh.Client, error) {
	methods, err := authMethods(h)
	if err != nil {
		return nil, err
	}
	sshConfig := &ssh.ClientConfig{
		User:            h.User,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}
	client, err := ssh.Dial("tcp", h.Addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", h.Addr, err)
	}
	return client, nil
}

// ExportFileName names an exported save so files sort by agent, animal and
// time.
func ExportFileName(agentID, animalID string, id int64, savedAt time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%d.json", clean(agentID), clean(animalID), savedAt.UTC().Format("20060102T150405Z"), id)
}

func clean(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '_'
	}, s)
}

// ExportSave uploads data as dir/name on the host and returns the remote path.
func ExportSave(h HostSpec, dir, name string, data []byte) (string, error) {
	client, err := dial(h)
	if err != nil {
		return "", err
	}
	defer client.Close()

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return "", fmt.Errorf("sftp client: %w", err)
	}
	defer sftpClient.Close()

	return upload(sftpClient, dir, name, data)
}

// ListExports lists the .json files in dir on the host, sorted by name.
func ListExports(h HostSpec, dir string) ([]string, error) {
	client, err := dial(h)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return nil, fmt.Errorf("sftp client: %w", err)
	}
	defer sftpClient.Close()

	return listJSON(sftpClient, dir)
}

func upload(c *sftp.Client, dir, name string, data []byte) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("invalid export file name %q", name)
	}
	if dir == "" {
		dir = "."
	}
	if err := c.MkdirAll(dir); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	dst := path.Join(dir, name)
	if err := writeRemoteFile(c, dst, data, 0o644); err != nil {
		return "", err
	}
	return dst, nil
}

func listJSON(c *sftp.Client, dir string) ([]string, error) {
	entries, err := c.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func writeRemoteFile(c *sftp.Client, path string, data []byte, perm os.FileMode) error {
	f, err := c.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("open remote file %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write remote file %s: %w", path, err)
	}
	if err := c.Chmod(path, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}
