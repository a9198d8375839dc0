package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloramarket/velora-backend/pkg/config"
	pkgerrors "github.com/veloramarket/velora-backend/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.WalletConfig{
		BaseURL: server.URL,
		APIKey:  "wallet-test-key",
		Timeout: time.Second,
	}, nil)
	require.NoError(t, err)
	return client, server
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(config.WalletConfig{APIKey: "k"}, nil)
	assert.ErrorIs(t, err, errBaseURLRequired)

	_, err = NewClient(config.WalletConfig{BaseURL: "http://wallet.internal"}, nil)
	assert.ErrorIs(t, err, errAPIKeyRequired)
}

func TestCreditSendsSignedRequest(t *testing.T) {
	userID := uuid.New()
	var got creditRequest
	var gotKey string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, creditPath, r.URL.Path)
		gotKey = r.Header.Get(apiKeyHeader)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	err := client.Credit(context.Background(), userID, 15)
	require.NoError(t, err)
	assert.Equal(t, "wallet-test-key", gotKey)
	assert.Equal(t, userID.String(), got.UserID)
	assert.Equal(t, 15, got.Amount)
	assert.Equal(t, "coin_redemption", got.Source)
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	err := client.Credit(context.Background(), uuid.New(), 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = client.Credit(context.Background(), uuid.Nil, 5)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreditMapsUpstreamFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := client.Credit(context.Background(), uuid.New(), 5)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
