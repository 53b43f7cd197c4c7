// Package mercadopago reads payments from the MercadoPago REST API.
package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"

	"github.com/target/esg-pipeline/internal/domain/model"
	apperrors "github.com/target/esg-pipeline/internal/errors"
)

const (
	DefaultBaseURL    = "https://api.mercadopago.com"
	DefaultUserIDExpr = "metadata.user_id"
	DefaultOrgIDExpr  = "additional_info.items[0].id"

	maxPaymentBytes = 1 << 20
	// healthProbeID is a payment that never exists; a 404 proves the API answers.
	healthProbeID = "0"
)

// Config configures the gateway client.
type Config struct {
	BaseURL     string
	AccessToken string
	// WebhookSecret is only inspected by Health.
	WebhookSecret string
	// JMESPath expressions locating the user and organization ids in the
	// payment document.
	UserIDExpr string
	OrgIDExpr  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is a MercadoPago payments client.
type Client struct {
	baseURL    string
	tokenLen   int
	secretLen  int
	userIDPath jmespath.JMESPath
	orgIDPath  jmespath.JMESPath
	hc         *http.Client
}

// New builds a Client. The access token is sent as a static bearer token.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}

	userIDPath, err := compilePath(fallback(cfg.UserIDExpr, DefaultUserIDExpr))
	if err != nil {
		return nil, err
	}
	orgIDPath, err := compilePath(fallback(cfg.OrgIDExpr, DefaultOrgIDExpr))
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	transport := cfg.HTTPClient
	if transport == nil {
		transport = &http.Client{Timeout: timeout}
	}

	token := strings.TrimSpace(cfg.AccessToken)
	hc := transport
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, transport)
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
		hc.Timeout = timeout
	}

	return &Client{
		baseURL:    base,
		tokenLen:   len(token),
		secretLen:  len(strings.TrimSpace(cfg.WebhookSecret)),
		userIDPath: userIDPath,
		orgIDPath:  orgIDPath,
		hc:         hc,
	}, nil
}

type paymentDoc struct {
	ID                json.RawMessage `json:"id"`
	Status            string          `json:"status"`
	TransactionAmount float64         `json:"transaction_amount"`
	Description       string          `json:"description"`
}

// GetPayment fetches a payment. An unknown payment is a NotFound AppError.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*model.PaymentDetails, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, apperrors.Validation("payment id is required")
	}

	status, raw, err := c.fetch(ctx, paymentID)
	if err != nil {
		return nil, apperrors.External(err, "payment gateway request failed")
	}
	switch {
	case status == http.StatusNotFound:
		return nil, apperrors.NotFoundf("payment %s not found at gateway", paymentID)
	case status < 200 || status > 299:
		return nil, apperrors.External(fmt.Errorf("status %d", status), "payment gateway request failed")
	}

	var doc paymentDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.External(err, "decode gateway payment")
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, apperrors.External(err, "decode gateway payment")
	}

	id := scalarID(doc.ID)
	if id == "" {
		id = paymentID
	}
	return &model.PaymentDetails{
		ID:                id,
		Status:            doc.Status,
		UserID:            extractString(c.userIDPath, generic),
		OrganizationID:    extractString(c.orgIDPath, generic),
		TransactionAmount: doc.TransactionAmount,
		Description:       doc.Description,
		Raw:               json.RawMessage(raw),
	}, nil
}

// Health reports configuration presence and whether the API answers.
func (c *Client) Health(ctx context.Context) model.GatewayHealth {
	h := model.GatewayHealth{
		AccessTokenConfigured:   c.tokenLen > 0,
		AccessTokenLength:       c.tokenLen,
		WebhookSecretConfigured: c.secretLen > 0,
		WebhookSecretLength:     c.secretLen,
	}
	status, _, err := c.fetch(ctx, healthProbeID)
	if err != nil {
		h.Error = err.Error()
		return h
	}
	h.APIStatus = status
	h.APIReachable = status == http.StatusNotFound || (status >= 200 && status < 300)
	return h
}

func (c *Client) fetch(ctx context.Context, paymentID string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPaymentBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}

func compilePath(expr string) (jmespath.JMESPath, error) {
	path, err := jmespath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jmespath %q: %w", expr, err)
	}
	return path, nil
}

// extractString evaluates path and renders scalar results as strings.
func extractString(path jmespath.JMESPath, data any) string {
	v, err := path.Search(data)
	if err != nil || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// scalarID renders a JSON string or number id as text.
func scalarID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func fallback(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}
