package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veloramarket/velora-backend/pkg/config"
	pkgerrors "github.com/veloramarket/velora-backend/pkg/errors"
	"github.com/veloramarket/velora-backend/pkg/logger"
)

const (
	creditPath     = "/internal/v1/wallet/credits"
	apiKeyHeader   = "X-Velora-Wallet-Key"
	defaultTimeout = 10 * time.Second
)

var (
	errBaseURLRequired = errors.New("wallet base url is required")
	errAPIKeyRequired  = errors.New("wallet api key is required")
)

// Client issues wallet credits for redeemed coins. Coins convert to wallet
// units at a fixed 1:1 rate.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logg    *logger.Logger
}

type creditRequest struct {
	UserID string `json:"user_id"`
	Amount int    `json:"amount"`
	Source string `json:"source"`
}

// NewClient validates the wallet configuration and builds the HTTP client.
func NewClient(cfg config.WalletConfig, logg *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logg:    logg,
	}, nil
}

// Credit pushes amount wallet units to the user's wallet.
func (c *Client) Credit(ctx context.Context, userID uuid.UUID, amount int) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "wallet client unavailable")
	}
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}

	body, err := json.Marshal(creditRequest{
		UserID: userID.String(),
		Amount: amount,
		Source: "coin_redemption",
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode wallet credit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+creditPath, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build wallet request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "wallet credit call")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("wallet credit rejected with status %d", resp.StatusCode)).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	if c.logg != nil {
		fields := map[string]any{
			"user_id": userID.String(),
			"amount":  amount,
		}
		c.logg.Info(c.logg.WithFields(ctx, fields), "wallet credited")
	}
	return nil
}
