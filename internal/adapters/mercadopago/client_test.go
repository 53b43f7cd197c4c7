package mercadopago

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/esg-pipeline/internal/errors"
)

const approvedPayment = `{
	"id": 123456789,
	"status": "approved",
	"transaction_amount": 400,
	"description": "Plan Adaptia",
	"metadata": {"user_id": "u-1"},
	"additional_info": {"items": [{"id": "org-1", "title": "Plan Adaptia - Acme"}]},
	"external_reference": "org-ext"
}`

func newGateway(t *testing.T, cfg Config, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	cfg.HTTPClient = srv.Client()
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestClient_GetPayment(t *testing.T) {
	t.Run("approved payment with bearer token", func(t *testing.T) {
		c := newGateway(t, Config{AccessToken: " APP_USR-1 "}, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/payments/123456789", r.URL.Path)
			assert.Equal(t, "Bearer APP_USR-1", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(approvedPayment))
		})

		p, err := c.GetPayment(context.Background(), "123456789")
		require.NoError(t, err)
		assert.Equal(t, "123456789", p.ID)
		assert.True(t, p.Approved())
		assert.Equal(t, "u-1", p.UserID)
		assert.Equal(t, "org-1", p.OrganizationID)
		assert.InDelta(t, 400.0, p.TransactionAmount, 0.001)
		assert.Equal(t, "Plan Adaptia", p.Description)
		assert.JSONEq(t, approvedPayment, string(p.Raw))
	})

	t.Run("custom extraction expressions", func(t *testing.T) {
		c := newGateway(t, Config{OrgIDExpr: "external_reference"}, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(approvedPayment))
		})

		p, err := c.GetPayment(context.Background(), "123456789")
		require.NoError(t, err)
		assert.Equal(t, "org-ext", p.OrganizationID)
	})

	t.Run("string id", func(t *testing.T) {
		c := newGateway(t, Config{}, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"id":"pay_123","status":"pending"}`))
		})

		p, err := c.GetPayment(context.Background(), "pay_123")
		require.NoError(t, err)
		assert.Equal(t, "pay_123", p.ID)
		assert.False(t, p.Approved())
		assert.Empty(t, p.OrganizationID)
	})

	t.Run("unknown payment is not found", func(t *testing.T) {
		c := newGateway(t, Config{}, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := c.GetPayment(context.Background(), "404")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("gateway error is external", func(t *testing.T) {
		c := newGateway(t, Config{}, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := c.GetPayment(context.Background(), "1")
		assert.True(t, apperrors.IsExternal(err))
	})

	t.Run("empty id", func(t *testing.T) {
		c := newGateway(t, Config{}, func(http.ResponseWriter, *http.Request) {})
		_, err := c.GetPayment(context.Background(), " ")
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestClient_Health(t *testing.T) {
	c := newGateway(t, Config{AccessToken: "tok", WebhookSecret: "secret"}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/0", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	})

	h := c.Health(context.Background())
	assert.True(t, h.AccessTokenConfigured)
	assert.Equal(t, 3, h.AccessTokenLength)
	assert.True(t, h.WebhookSecretConfigured)
	assert.Equal(t, 6, h.WebhookSecretLength)
	assert.True(t, h.APIReachable)
	assert.Equal(t, http.StatusNotFound, h.APIStatus)
}

func TestNew_RejectsBadExpression(t *testing.T) {
	_, err := New(Config{UserIDExpr: "metadata.[["})
	assert.Error(t, err)
}

func TestNew_CompilesExpressionsOnce(t *testing.T) {
	c, err := New(Config{OrgIDExpr: "external_reference"})
	require.NoError(t, err)
	require.NotNil(t, c.userIDPath)
	require.NotNil(t, c.orgIDPath)

	data := map[string]any{
		"metadata":           map[string]any{"user_id": 42.0},
		"external_reference": "org-9",
	}
	// Compiled paths are reused across payments.
	for range 3 {
		assert.Equal(t, "42", extractString(c.userIDPath, data))
		assert.Equal(t, "org-9", extractString(c.orgIDPath, data))
	}
	assert.Empty(t, extractString(c.userIDPath, map[string]any{}))
}
