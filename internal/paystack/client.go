package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/vendhub/marketplace/internal/config"
)

// ErrGateway marks failures reported by the payment gateway itself, as
// opposed to transport errors. Callers surface both as upstream failures.
var ErrGateway = errors.New("payment gateway error")

type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	currency   string
}

func NewClient(cfg config.PaystackConfig, currency string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		secretKey:  cfg.SecretKey,
		currency:   currency,
	}
}

// minorUnits converts a major-unit amount to the gateway's integer
// minor-currency units.
func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (c *Client) do(ctx context.Context, method, path string, body any, data any) error {
	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("paystack: failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("paystack: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paystack: request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		apiEnvelope
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("paystack: failed to decode response: %w", err)
	}

	if resp.StatusCode >= 400 || !envelope.Status {
		return fmt.Errorf("%w: %s (http %d)", ErrGateway, envelope.Message, resp.StatusCode)
	}

	if data != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, data); err != nil {
			return fmt.Errorf("paystack: failed to decode response data: %w", err)
		}
	}
	return nil
}

func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	payload := map[string]any{
		"amount":       minorUnits(req.Amount),
		"email":        req.Email,
		"currency":     c.currency,
		"reference":    req.Reference,
		"callback_url": req.CallbackURL,
		"metadata":     req.Metadata,
	}

	var data initializeData
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", payload, &data); err != nil {
		return nil, err
	}

	return &InitializeResponse{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	var data transactionData
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		return nil, err
	}

	return &Transaction{
		Reference: data.Reference,
		Status:    data.Status,
		Amount:    float64(data.Amount) / 100,
	}, nil
}

func (c *Client) CreateTransferRecipient(ctx context.Context, req RecipientRequest) (string, error) {
	payload := map[string]any{
		"type":           "nuban",
		"name":           req.Name,
		"account_number": req.AccountNumber,
		"bank_code":      req.BankCode,
		"currency":       c.currency,
	}

	var data recipientData
	if err := c.do(ctx, http.MethodPost, "/transferrecipient", payload, &data); err != nil {
		return "", err
	}
	return data.RecipientCode, nil
}

func (c *Client) InitiateTransfer(ctx context.Context, req TransferRequest) (string, error) {
	payload := map[string]any{
		"source":    "balance",
		"amount":    minorUnits(req.Amount),
		"recipient": req.Recipient,
		"currency":  c.currency,
		"reason":    req.Reason,
		"reference": req.Reference,
	}

	var data transferData
	if err := c.do(ctx, http.MethodPost, "/transfer", payload, &data); err != nil {
		return "", err
	}
	return data.Reference, nil
}

func (c *Client) CreateRefund(ctx context.Context, req RefundRequest) (string, error) {
	payload := map[string]any{
		"transaction": req.TransactionReference,
		"amount":      minorUnits(req.Amount),
		"currency":    c.currency,
	}

	var data refundData
	if err := c.do(ctx, http.MethodPost, "/refund", payload, &data); err != nil {
		return "", err
	}
	return data.Reference, nil
}

func (c *Client) ListBanks(ctx context.Context, country string) ([]Bank, error) {
	var banks []Bank
	if err := c.do(ctx, http.MethodGet, "/bank?country="+url.QueryEscape(country), nil, &banks); err != nil {
		return nil, err
	}
	return banks, nil
}
