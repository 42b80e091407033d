package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProber(timeout time.Duration) *Prober {
	return New(Config{Timeout: timeout, UserAgent: "LinkHealth/test"})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code int
		want Classification
	}{
		{0, Error},
		{199, Error},
		{200, Active},
		{204, Active},
		{301, Active},
		{399, Active},
		{400, Error},
		{403, Error},
		{404, Error},
		{410, Error},
		{500, Error},
		{503, Error},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.code), "code %d", tt.code)
	}
}

func TestProbe_HeadSuccess(t *testing.T) {
	var gets int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "LinkHealth/test", r.UserAgent())
		if r.Method == http.MethodGet {
			atomic.AddInt32(&gets, 1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := newProber(time.Second).Probe(context.Background(), srv.URL)
	require.NoError(t, res.Err)
	assert.Equal(t, 200, res.HTTPCode)
	assert.Equal(t, http.MethodHead, res.Method)
	assert.Equal(t, srv.URL, res.FinalURL)
	assert.Equal(t, int32(0), atomic.LoadInt32(&gets))
}

func TestProbe_HTTPErrorDoesNotFallBack(t *testing.T) {
	var gets int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt32(&gets, 1)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res := newProber(time.Second).Probe(context.Background(), srv.URL)
	assert.Equal(t, 404, res.HTTPCode)
	assert.False(t, res.TransportFailed())
	assert.Equal(t, Error, Classify(res.HTTPCode))
	assert.Equal(t, int32(0), atomic.LoadInt32(&gets))
}

func TestProbe_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/aff", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/landing", http.StatusFound)
	})
	mux.HandleFunc("/landing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := newProber(time.Second).Probe(context.Background(), srv.URL+"/aff")
	require.NoError(t, res.Err)
	assert.Equal(t, 200, res.HTTPCode)
	assert.Equal(t, srv.URL+"/landing", res.FinalURL)
}

func TestProbe_GetFallbackAfterHeadTransportFailure(t *testing.T) {
	var heads, gets int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			atomic.AddInt32(&heads, 1)
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		atomic.AddInt32(&gets, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := newProber(2*time.Second).Probe(context.Background(), srv.URL)
	require.NoError(t, res.Err)
	assert.Equal(t, 200, res.HTTPCode)
	assert.Equal(t, http.MethodGet, res.Method)
	assert.Equal(t, int32(1), atomic.LoadInt32(&heads))
	assert.Equal(t, int32(1), atomic.LoadInt32(&gets))
}

func TestProbe_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	res := newProber(100*time.Millisecond).Probe(context.Background(), srv.URL)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, res.HTTPCode)
	assert.True(t, res.TransportFailed())
	require.Error(t, res.Err)
	assert.Equal(t, srv.URL, res.FinalURL)
}

func TestProbe_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	res := newProber(time.Second).Probe(context.Background(), "http://"+addr)
	assert.Equal(t, 0, res.HTTPCode)
	assert.Error(t, res.Err)
	assert.Equal(t, http.MethodGet, res.Method)
	assert.Equal(t, Error, Classify(res.HTTPCode))
}

func TestParseTarget(t *testing.T) {
	got, err := ParseTarget("  https://example.com/aff?x=1 ")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/aff?x=1", got)

	for _, raw := range []string{"", "not a url", "ftp://example.com", "https://", "example.com/path"} {
		_, err := ParseTarget(raw)
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}
