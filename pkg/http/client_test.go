package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "tok", r.Header.Get("X-App-Token"))
		assert.Equal(t, []string{"a", "b"}, r.URL.Query()["k"])
		_, _ = w.Write([]byte(`[{"market":"ES"}]`))
	}))
	defer srv.Close()

	var got []map[string]string
	err := NewClient().GetJSON(context.Background(), &RequestOptions{
		URL:         srv.URL,
		Headers:     map[string]string{"X-App-Token": "tok"},
		QueryParams: map[string][]string{"k": {"a", "b"}},
	}, &got)
	require.NoError(t, err)
	assert.Equal(t, []map[string]string{{"market": "ES"}}, got)
}

func TestGetJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewClient().GetJSON(context.Background(), &RequestOptions{URL: srv.URL}, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, "slow down", se.Body)
	assert.True(t, se.Temporary())
	assert.False(t, (&StatusError{Code: http.StatusBadRequest}).Temporary())
}

func TestGetJSONDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	var got []map[string]string
	err := NewClient().GetJSON(context.Background(), &RequestOptions{URL: srv.URL}, &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode json")
}
