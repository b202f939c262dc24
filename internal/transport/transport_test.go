package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPCaller_Call(t *testing.T) {
	var gotMethod, gotPath, gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotType = r.Method, r.URL.EscapedPath(), r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		switch r.URL.Path {
		case "/api/sessions/gone":
			w.WriteHeader(http.StatusGone)
		default:
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte("kicked-off"))
		}
	}))
	defer srv.Close()

	c := NewHTTPCaller(srv.URL+"/api/sessions/", time.Second)
	assert.Equal(t, srv.URL+"/api/sessions/", c.BaseURL())

	resp, err := c.Call(context.Background(), http.MethodPost, "harbor/nearmap", map[string]string{"aoi": "eA=="})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "kicked-off", string(resp.Body))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/sessions/harbor/nearmap", gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.JSONEq(t, `{"aoi":"eA=="}`, gotBody)

	resp, err = c.Call(context.Background(), http.MethodGet, "gone", nil)
	require.NoError(t, err, "error statuses are not transport errors")
	assert.False(t, resp.OK)
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Empty(t, gotBody)

	_, err = c.Call(context.Background(), http.MethodGet, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "/api/sessions/", gotPath)
}

func TestHTTPCaller_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPCaller(url, time.Second).Call(context.Background(), http.MethodGet, "x", nil)
	assert.Error(t, err)
}

func TestHTTPCaller_ContextCanceled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTPCaller(srv.URL, time.Second).Call(ctx, http.MethodGet, "x", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPCaller_UnencodableBody(t *testing.T) {
	_, err := NewHTTPCaller("http://localhost", time.Second).Call(context.Background(), http.MethodPost, "x", make(chan int))
	assert.ErrorContains(t, err, "marshal request")
}
