package sshc

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"net"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	return pem.EncodeToMemory(block)
}

func TestAuthMethods(t *testing.T) {
	_, err := authMethods(HostSpec{User: "colony"})
	assert.ErrorContains(t, err, "addr and user")

	_, err = authMethods(HostSpec{Addr: "backup:22", User: "colony"})
	assert.ErrorContains(t, err, "no auth methods")

	_, err = authMethods(HostSpec{Addr: "backup:22", User: "colony", PrivateKey: []byte("not a key")})
	assert.ErrorContains(t, err, "parse private key")

	methods, err := authMethods(HostSpec{Addr: "backup:22", User: "colony", PrivateKey: testKey(t), Password: "pw"})
	require.NoError(t, err)
	assert.Len(t, methods, 2)

	_, err = ExportSave(HostSpec{}, "/tmp", "x.json", nil)
	assert.Error(t, err)
	_, err = ListExports(HostSpec{}, "/tmp")
	assert.Error(t, err)
}

func TestExportFileName(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 30, 5, 0, time.UTC)
	assert.Equal(t, "barn-1_cow_1_20260301T123005Z_42.json", ExportFileName("barn-1", "cow 1", 42, at))
	assert.Equal(t, "a_b_c_20260301T123005Z_1.json", ExportFileName("a/b", "c", 1, at))
}

func inMemorySFTP(t *testing.T) *sftp.Client {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	server := sftp.NewRequestServer(serverConn, sftp.InMemHandler())
	go func() {
		if err := server.Serve(); err != nil && err != io.EOF {
			t.Logf("sftp server: %v", err)
		}
	}()
	client, err := sftp.NewClientPipe(clientConn, clientConn)
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client
}

func TestUploadAndList(t *testing.T) {
	c := inMemorySFTP(t)

	dst, err := upload(c, "/saves/barn-1", "b.json", []byte(`{"n":1}`))
	require.NoError(t, err)
	assert.Equal(t, "/saves/barn-1/b.json", dst)
	_, err = upload(c, "/saves/barn-1", "a.json", []byte(`{"n":2}`))
	require.NoError(t, err)
	_, err = upload(c, "/saves/barn-1", "notes.txt", []byte("hi"))
	require.NoError(t, err)

	f, err := c.Open(dst)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	f.Close()
	assert.Equal(t, `{"n":1}`, string(data))

	names, err := listJSON(c, "/saves/barn-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.json"}, names)

	_, err = upload(c, "/saves", "../escape.json", nil)
	assert.Error(t, err)
	_, err = listJSON(c, "/missing")
	assert.Error(t, err)
}
