package adminhttp

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthz(t *testing.T) {
	s, err := New("127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve()
	t.Cleanup(func() { _ = s.Close() })

	resp, err := http.Get("http://" + s.Addr().String() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
}

func TestMetrics(t *testing.T) {
	s, err := New("127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve()
	t.Cleanup(func() { _ = s.Close() })

	resp, err := http.Get("http://" + s.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
