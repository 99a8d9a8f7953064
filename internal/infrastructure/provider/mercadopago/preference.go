package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/domain/provider"
)

const defaultAPIBaseURL = "https://api.mercadopago.com"

// PreferenceClient creates checkout preferences against the Mercado
// Pago API.
type PreferenceClient struct {
	accessToken string
	baseURL     string
	client      *http.Client
	logger      *zap.Logger
}

func NewPreferenceClient(accessToken, baseURL string, logger *zap.Logger) *PreferenceClient {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return &PreferenceClient{
		accessToken: accessToken,
		baseURL:     baseURL,
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
	}
}

type preferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

// CreatePreference opens a checkout preference and returns its id and
// payment link.
// POST /checkout/preferences
func (p *PreferenceClient) CreatePreference(ctx context.Context, req *provider.CheckoutRequest) (*provider.CheckoutSession, error) {
	unitPrice, _ := decimal.NewFromInt(req.AmountCents).Shift(-2).Float64()

	body := map[string]interface{}{
		"external_reference": req.ReferenceID,
		"items": []map[string]interface{}{
			{
				"title":       req.Title,
				"quantity":    1,
				"unit_price":  unitPrice,
				"currency_id": req.Currency,
			},
		},
	}
	if req.CustomerEmail != "" {
		body["payer"] = map[string]interface{}{
			"name":  req.CustomerName,
			"email": req.CustomerEmail,
		}
	}
	if req.ReturnURL != "" {
		body["back_urls"] = map[string]interface{}{"success": req.ReturnURL}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "MARSHAL_ERROR",
			Message: "failed to prepare request",
			Details: err.Error(),
		}
	}

	url := fmt.Sprintf("%s/checkout/preferences", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    "REQUEST_ERROR",
			Message: "failed to create request",
			Details: err.Error(),
		}
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.Error("Mercado Pago preference request failed", zap.Error(err))
		return nil, &provider.ProviderError{
			Code:    "API_ERROR",
			Message: "Mercado Pago API request failed",
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
		message, _ := errResp["message"].(string)

		p.logger.Error("Mercado Pago preference creation failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(respBody)))

		return nil, &provider.ProviderError{
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: message,
			Details: string(respBody),
		}
	}

	var result preferenceResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &provider.ProviderError{
			Code:    "PARSE_ERROR",
			Message: "failed to parse response",
			Details: err.Error(),
		}
	}

	return &provider.CheckoutSession{
		CheckoutID:  result.ID,
		PaymentLink: result.InitPoint,
	}, nil
}
