package paygate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pubdesk-api/pkg/config"
)

func TestLookupCompleted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PAY-ABC", r.URL.Query().Get("reference"))
		assert.Equal(t, "ORD-7", r.URL.Query().Get("order_no"))
		_ = json.NewEncoder(w).Encode(StatusResult{Reference: "PAY-ABC", OrderNo: "ORD-7", Status: "COMPLETED"})
	}))
	defer srv.Close()

	client := New(config.PaymentsConfig{GatewayURL: srv.URL, GatewayAPIKey: "key"})
	result, err := client.Lookup(context.Background(), "PAY-ABC", "ORD-7")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
}

func TestLookupUnknownReferenceIsPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := New(config.PaymentsConfig{GatewayURL: srv.URL})
	result, err := client.Lookup(context.Background(), "PAY-MISSING", "")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, result.Status)
}

func TestLookupGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(config.PaymentsConfig{GatewayURL: srv.URL})
	_, err := client.Lookup(context.Background(), "PAY-ABC", "")
	require.Error(t, err)
}
