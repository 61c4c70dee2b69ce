// Package worldcoin talks to the Worldcoin developer portal: MiniKit
// transaction lookups for payment confirmation and cloud verification of
// World ID proofs.
package worldcoin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public developer portal.
const DefaultBaseURL = "https://developer.worldcoin.org"

var (
	// ErrNotConfigured is returned when the credentials a call needs are
	// missing.
	ErrNotConfigured = errors.New("worldcoin: credentials not configured")
	// ErrUnavailable wraps transport failures, timeouts and 5xx answers.
	ErrUnavailable = errors.New("worldcoin: service unavailable")
)

// StatusError is returned for a non-2xx answer from the transaction API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("worldcoin: unexpected status %d", e.Code)
}

// Client calls the developer portal with a bounded timeout.
type Client struct {
	baseURL    string
	appID      string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a portal client. An empty baseURL selects
// DefaultBaseURL.
func NewClient(baseURL, appID, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		appID:      appID,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.With("adapter", "worldcoin"),
	}
}

// TransactionConfigured reports whether transaction lookups can be made.
func (c *Client) TransactionConfigured() bool { return c.appID != "" && c.apiKey != "" }

// ProofConfigured reports whether proofs can be sent for cloud
// verification. The verify endpoint needs the app id only.
func (c *Client) ProofConfigured() bool { return c.appID != "" }

// Transaction is the portal's view of a MiniKit payment.
type Transaction struct {
	TransactionID     string `json:"transaction_id"`
	Reference         string `json:"reference"`
	TransactionStatus string `json:"transaction_status"`
	LegacyStatus      string `json:"status"`
	TransactionHash   string `json:"transaction_hash"`
	From              string `json:"from"`
	To                string `json:"to"`
	Chain             string `json:"chain"`
}

// Status returns the reported transaction status, whichever field carried it.
func (t Transaction) Status() string {
	if t.TransactionStatus != "" {
		return t.TransactionStatus
	}
	return t.LegacyStatus
}

// GetTransaction fetches a MiniKit transaction by its id.
func (c *Client) GetTransaction(ctx context.Context, transactionID string) (Transaction, error) {
	if !c.TransactionConfigured() {
		return Transaction{}, ErrNotConfigured
	}
	endpoint := fmt.Sprintf("%s/api/v2/minikit/transaction/%s?app_id=%s",
		c.baseURL, url.PathEscape(transactionID), url.QueryEscape(c.appID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Transaction{}, fmt.Errorf("build transaction request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.ErrorContext(ctx, "transaction lookup failed", slog.String("error", err.Error()))
		return Transaction{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.ErrorContext(ctx, "transaction lookup rejected", slog.Int("status", resp.StatusCode))
		return Transaction{}, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var tx Transaction
	if err := json.Unmarshal(body, &tx); err != nil {
		return Transaction{}, fmt.Errorf("decode transaction: %w", err)
	}
	return tx, nil
}

// Proof is the World ID proof produced by the client SDK.
type Proof struct {
	Proof             string `json:"proof"`
	MerkleRoot        string `json:"merkle_root"`
	NullifierHash     string `json:"nullifier_hash"`
	VerificationLevel string `json:"verification_level,omitempty"`
}

// VerifyResult is the portal's answer, kept verbatim so it can be echoed to
// the caller. Success is true only for a 2xx answer.
type VerifyResult struct {
	Success bool
	Body    map[string]any
}

type verifyRequest struct {
	NullifierHash     string `json:"nullifier_hash"`
	MerkleRoot        string `json:"merkle_root"`
	Proof             string `json:"proof"`
	VerificationLevel string `json:"verification_level,omitempty"`
	Action            string `json:"action"`
	SignalHash        string `json:"signal_hash"`
}

// VerifyProof submits a proof for cloud verification. A 4xx answer is a
// rejection and is returned as a result with Success false; transport
// failures and 5xx answers return ErrUnavailable.
func (c *Client) VerifyProof(ctx context.Context, p Proof, action, signal string) (VerifyResult, error) {
	if !c.ProofConfigured() {
		return VerifyResult{}, ErrNotConfigured
	}
	payload, err := json.Marshal(verifyRequest{
		NullifierHash:     p.NullifierHash,
		MerkleRoot:        p.MerkleRoot,
		Proof:             p.Proof,
		VerificationLevel: p.VerificationLevel,
		Action:            action,
		SignalHash:        HashToField(signal),
	})
	if err != nil {
		return VerifyResult{}, err
	}
	endpoint := fmt.Sprintf("%s/api/v2/verify/%s", c.baseURL, url.PathEscape(c.appID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return VerifyResult{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.ErrorContext(ctx, "proof verification unavailable", slog.String("error", err.Error()))
		return VerifyResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.log.ErrorContext(ctx, "proof verification unavailable", slog.Int("status", resp.StatusCode))
		return VerifyResult{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body := map[string]any{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return VerifyResult{}, fmt.Errorf("decode verify response: %w", err)
	}
	ok := resp.StatusCode >= 200 && resp.StatusCode <= 299
	body["success"] = ok
	if !ok {
		c.log.InfoContext(ctx, "proof rejected", slog.Int("status", resp.StatusCode), slog.String("action", action))
	}
	return VerifyResult{Success: ok, Body: body}, nil
}
