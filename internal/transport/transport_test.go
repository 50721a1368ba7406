package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	prefetch "github.com/bragbook2/brag-book-gallery-sub005"
)

func TestDirect_FetchDetail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/cases/42", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"html":"<div>case 42</div>","title":"Case 42","description":"Before and after"}`))
	}))
	defer srv.Close()

	d, err := NewDirect(srv.URL+"/api/", nil, time.Second)
	require.NoError(t, err)

	p, err := d.FetchDetail(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, prefetch.Payload{
		HTML:        "<div>case 42</div>",
		Title:       "Case 42",
		Description: "Before and after",
	}, p)
}

func TestDirect_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewDirect(" ", nil, time.Second)
	require.ErrorIs(t, err, ErrEmptyBaseURL)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", http.StatusBadGateway)
			},
			wantErr: ErrUnexpectedStatus,
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`<html>login</html>`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			d, err := NewDirect(srv.URL, nil, time.Second)
			require.NoError(t, err)

			_, err = d.FetchDetail(context.Background(), "1")
			require.Error(t, err)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestProxy_FetchDetail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, DefaultProxyAction, r.PostForm.Get("action"))
		assert.Equal(t, "nonce-1", r.PostForm.Get("nonce"))

		if r.PostForm.Get("case_id") != "7" {
			_, _ = w.Write([]byte(`{"success":false,"data":{"message":"Case not found"}}`))
			return
		}

		_, _ = w.Write([]byte(`{"success":true,"data":{"html":"<div>7</div>","seoData":{"title":"Case 7","description":"d"}}}`))
	}))
	defer srv.Close()

	p, err := NewProxy(srv.URL, "", "nonce-1", srv.Client(), 0)
	require.NoError(t, err)

	payload, err := p.FetchDetail(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, prefetch.Payload{HTML: "<div>7</div>", Title: "Case 7", Description: "d"}, payload)

	_, err = p.FetchDetail(context.Background(), "8")
	require.ErrorIs(t, err, ErrRejected)
	require.Contains(t, err.Error(), "Case not found")
}

func TestLoader_FallsBackToProxy(t *testing.T) {
	t.Parallel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer backend.Close()

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"html":"<div>via proxy</div>"}}`))
	}))
	defer proxy.Close()

	direct, err := NewDirect(backend.URL, nil, time.Second)
	require.NoError(t, err)

	fallback, err := NewProxy(proxy.URL, "", "n", nil, time.Second)
	require.NoError(t, err)

	loader, err := prefetch.NewLoader[string](direct, fallback)
	require.NoError(t, err)

	p, err := loader.Load(context.Background(), "3")
	require.NoError(t, err)
	require.Equal(t, "<div>via proxy</div>", p.HTML)
}
