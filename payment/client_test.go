package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]Status{
		"succeeded":  StatusSucceeded,
		"FINISHED":   StatusSucceeded,
		" paid ":     StatusSucceeded,
		"captured":   StatusSucceeded,
		"pending":    StatusPending,
		"confirming": StatusPending,
		"failed":     StatusFailed,
		"expired":    StatusFailed,
		"":           StatusFailed,
	}
	for raw, want := range cases {
		require.Equal(t, want, Normalize(raw), "raw=%q", raw)
	}
}

func TestSettled(t *testing.T) {
	require.True(t, StatusSucceeded.Settled())
	require.False(t, StatusPending.Settled())
	require.False(t, StatusFailed.Settled())
}

func TestHTTPClientConfirm(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		switch r.URL.Path {
		case "/payments/ref-1":
			fmt.Fprint(w, `{"reference":"ref-1","status":"finished"}`)
		case "/payments/ref-2":
			fmt.Fprint(w, `{"reference":"ref-2","status":"waiting"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	client := NewHTTPClient(ts.URL, "test-key")

	status, err := client.Confirm(context.Background(), "ref-1")
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, status)

	status, err = client.Confirm(context.Background(), "ref-2")
	require.NoError(t, err)
	require.Equal(t, StatusPending, status)

	status, err = client.Confirm(context.Background(), "missing")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, status)
}
