package healthapi

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/marmos91/ssnode/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthz_ReportsEntryCount(t *testing.T) {
	store := metadata.New()
	store.Insert(metadata.FileMetadata{Filename: "a.txt"})

	srv := NewServer("127.0.0.1:0", store)
	srv.SetReady(true)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.server.Serve(ln) }()
	defer func() {
		_ = srv.Stop(context.Background())
		<-done
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "entries=1")
}

func TestHealthz_WithNilStore_StillOK(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil)
	srv.SetReady(true)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.server.Serve(ln) }()
	defer func() {
		_ = srv.Stop(context.Background())
		<-done
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthz_NotReady_ReturnsServiceUnavailable(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.server.Serve(ln) }()
	defer func() {
		_ = srv.Stop(context.Background())
		<-done
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealthz_ShuttingDown_ReturnsServiceUnavailable(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil)
	srv.SetReady(true)
	srv.BeginShutdown()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.server.Serve(ln) }()
	defer func() {
		_ = srv.Stop(context.Background())
		<-done
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
