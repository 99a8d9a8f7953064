package pagbank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/domain/provider"
)

const defaultAPIBaseURL = "https://api.pagseguro.com"

// Client calls the PagBank API for out-of-band notification
// verification and checkout creation.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewClient(token, baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type authenticityResponse struct {
	Authentic bool `json:"authentic"`
}

// VerifyAuthenticity asks the provider whether a received notification
// body is genuine. The result is recorded for audit; it never gates
// admission.
// POST /notifications/authenticity
func (c *Client) VerifyAuthenticity(ctx context.Context, body []byte) (bool, error) {
	url := fmt.Sprintf("%s/notifications/authenticity", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, &provider.ProviderError{
			Code:    "REQUEST_ERROR",
			Message: "failed to create request",
			Details: err.Error(),
		}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Warn("PagBank authenticity request failed", zap.Error(err))
		return false, &provider.ProviderError{
			Code:    "API_ERROR",
			Message: "PagBank API request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &provider.ProviderError{
			Code:    "RESPONSE_ERROR",
			Message: "failed to read response",
			Details: err.Error(),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return false, &provider.ProviderError{
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: "authenticity check rejected",
			Details: string(respBody),
		}
	}

	var result authenticityResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return false, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "failed to parse response",
			Details: err.Error(),
		}
	}

	return result.Authentic, nil
}

type checkoutResponse struct {
	ID    string `json:"id"`
	Links []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

// CreatePreference opens a PagBank checkout and returns its id and
// payment link.
// POST /checkouts
func (c *Client) CreatePreference(ctx context.Context, req *provider.CheckoutRequest) (*provider.CheckoutSession, error) {
	body := map[string]interface{}{
		"reference_id": req.ReferenceID,
		"items": []map[string]interface{}{
			{
				"name":        req.Title,
				"quantity":    1,
				"unit_amount": req.AmountCents,
			},
		},
	}
	if req.CustomerEmail != "" {
		body["customer"] = map[string]interface{}{
			"name":  req.CustomerName,
			"email": req.CustomerEmail,
		}
	}
	if req.ReturnURL != "" {
		body["redirect_url"] = req.ReturnURL
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "MARSHAL_ERROR",
			Message: "failed to prepare request",
			Details: err.Error(),
		}
	}

	url := fmt.Sprintf("%s/checkouts", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "REQUEST_ERROR",
			Message: "failed to create request",
			Details: err.Error(),
		}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Error("PagBank checkout request failed", zap.Error(err))
		return nil, &provider.ProviderError{
			Code:    "API_ERROR",
			Message: "PagBank API request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "RESPONSE_ERROR",
			Message: "failed to read response",
			Details: err.Error(),
		}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var errResp map[string]interface{}
		json.Unmarshal(respBody, &errResp)
		message, _ := errResp["error_messages"].(string)

		c.logger.Error("PagBank checkout creation failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(respBody)))

		return nil, &provider.ProviderError{
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: message,
			Details: string(respBody),
		}
	}

	var result checkoutResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "failed to parse response",
			Details: err.Error(),
		}
	}

	session := &provider.CheckoutSession{CheckoutID: result.ID}
	for _, link := range result.Links {
		if link.Rel == "PAY" {
			session.PaymentLink = link.Href
			break
		}
	}

	return session, nil
}
