package indexerclient

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByResource_ParsesConfirmedAttestations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/attestations", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("chainId"))
		assert.Equal(t, "plot-9", r.URL.Query().Get("resource"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"txId":"0xabc","clientOpId":"op-1","resource":"plot-9","submittedAt":"2026-01-01T00:00:00Z"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithRateLimit(1000))
	items, err := c.ByResource(t.Context(), 7, "plot-9")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "0xabc", items[0].TxID)
	assert.Equal(t, "op-1", items[0].ClientOpID)
}

func TestByClientOpID_ReturnsNilWhenNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithRateLimit(1000))
	item, err := c.ByClientOpID(t.Context(), 1, "op-missing")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestByClientOpID_ReturnsMatchingItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "op-1", r.URL.Query().Get("clientOpId"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"txId":"0xnew","clientOpId":"op-1","resource":"plot-9","submittedAt":"2026-01-01T00:00:00Z"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithRateLimit(1000))
	item, err := c.ByClientOpID(t.Context(), 1, "op-1")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "0xnew", item.TxID)
}

func TestGet_NonOKStatusIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, WithRateLimit(1000))
	_, err := c.ByResource(t.Context(), 1, "plot-9")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}
