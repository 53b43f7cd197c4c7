package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/esg-pipeline/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestFormatMessageIncludesFields(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
		Channel:    "#alerts",
		Username:   "bot",
	})
	require.NoError(t, err)

	msg := client.formatMessage(notify.JobFailurePayload{
		JobID:            "123",
		JobType:          "esg_analysis",
		AnalysisID:       "a-1",
		OrganizationID:   "org-1",
		OrganizationName: "Acme & Co",
		Error:            "deadline <exceeded>",
		ErrorClass:       "timeout",
		Metadata:         map[string]string{"retry_count": "1"},
	})

	assert.Equal(t, "bot", msg.Username)
	assert.Equal(t, "#alerts", msg.Channel)
	for _, want := range []string{
		"ESG analysis failed", "`123`", "(esg_analysis)", "Acme &amp; Co (org-1)",
		"a-1", "deadline &lt;exceeded&gt;", "timeout", "retry_count: 1", "Timestamp",
	} {
		assert.Contains(t, msg.Text, want)
	}
}

func TestFormatMessageAnalysisLink(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{"with prefix", "https://ops.example/analyses", "<https://ops.example/analyses/a-1|a-1>"},
		{"relative prefix ignored", "/analyses", "• Analysis: a-1\n"},
		{"no prefix", "", "• Analysis: a-1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(Config{WebhookURL: "https://hooks.slack.com/x", AnalysisURLPrefix: tt.prefix})
			require.NoError(t, err)
			msg := client.formatMessage(notify.JobFailurePayload{AnalysisID: "a-1"})
			assert.Contains(t, msg.Text, tt.want)
		})
	}
}

func TestSendJobFailure(t *testing.T) {
	got := make(chan message, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m message
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		got <- m
	}))
	defer srv.Close()

	client, err := NewClient(Config{WebhookURL: srv.URL, Client: srv.Client(), Timeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "j-1"}))

	m := <-got
	assert.Equal(t, "esg-pipeline", m.Username)
	assert.Contains(t, m.Text, "j-1")
}
