package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/target/esg-pipeline/config"
	"github.com/target/esg-pipeline/internal/domain/model"
	"github.com/target/esg-pipeline/internal/domain/webhook"
)

func testApp(cfg config.AppConfig) (*app, *bytes.Buffer) {
	var out bytes.Buffer
	a := newApp(&out)
	a.logger = slog.New(slog.DiscardHandler)
	a.loadConfig = func() (config.AppConfig, error) { return cfg, nil }
	a.openDB = func(config.DBConfig, *slog.Logger) (*sql.DB, error) {
		return nil, errors.New("no database in tests")
	}
	return a, &out
}

func execute(a *app, args ...string) error {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.out)
	root.SetErr(a.out)
	return root.ExecuteContext(context.Background())
}

func TestSign_JSONMatchesVerifier(t *testing.T) {
	a, out := testApp(config.AppConfig{})

	err := execute(a, "sign", "-o", "json", "--secret", "s3cret", "--id", "123", "--request-id", "req-1", "--ts", "1700000000")
	require.NoError(t, err)

	var got signature
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "123", got.PaymentID)
	assert.Equal(t, "1700000000", got.Timestamp)
	assert.Equal(t, webhook.NewVerifier("s3cret").SignatureHeader("123", "req-1", "1700000000"), got.Header)

	v := webhook.NewVerifier("s3cret")
	require.NoError(t, v.Verify(webhook.Input{PaymentID: "123", RequestID: "req-1", SignatureHeader: got.Header}))
}

func TestSign_UsesConfiguredSecret(t *testing.T) {
	var cfg config.AppConfig
	cfg.Webhook.Secret = "from-env"
	a, out := testApp(cfg)

	require.NoError(t, execute(a, "sign", "-o", "yaml", "--id", "9", "--request-id", "r", "--ts", "1"))

	var got signature
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, webhook.NewVerifier("from-env").SignatureHeader("9", "r", "1"), got.Header)
}

func TestSign_Errors(t *testing.T) {
	t.Run("no secret", func(t *testing.T) {
		a, _ := testApp(config.AppConfig{})
		err := execute(a, "sign", "--id", "1", "--request-id", "r")
		require.ErrorContains(t, err, "no webhook secret")
	})

	t.Run("missing id", func(t *testing.T) {
		a, _ := testApp(config.AppConfig{})
		err := execute(a, "sign", "--secret", "s", "--request-id", "r")
		require.Error(t, err)
	})

	t.Run("bad output format", func(t *testing.T) {
		a, _ := testApp(config.AppConfig{})
		err := execute(a, "sign", "-o", "xml", "--secret", "s", "--id", "1", "--request-id", "r")
		require.ErrorContains(t, err, "unknown output format")
	})
}

func TestSign_TableOutput(t *testing.T) {
	a, out := testApp(config.AppConfig{})
	require.NoError(t, execute(a, "sign", "--secret", "s", "--id", "1", "--request-id", "r", "--ts", "5"))
	assert.Contains(t, out.String(), "X-SIGNATURE")
	assert.Contains(t, out.String(), "ts=5,v1=")
}

func TestDatabaseCommands_ReportConnectionFailure(t *testing.T) {
	for _, args := range [][]string{
		{"migrate"},
		{"jobs", "list"},
		{"jobs", "stats"},
		{"jobs", "status", "j1"},
		{"jobs", "retry", "j1"},
		{"analysis", "show", "a1"},
		{"analysis", "latest", "org-1"},
		{"seed"},
	} {
		a, _ := testApp(config.AppConfig{})
		err := execute(a, args...)
		require.ErrorContains(t, err, "connect db", "args %v", args)
	}
}

func TestJobsList_RejectsUnknownStatus(t *testing.T) {
	a, _ := testApp(config.AppConfig{})
	err := execute(a, "jobs", "list", "--status", "sleeping")
	require.ErrorContains(t, err, `invalid status "sleeping"`)
}

func TestRootCmd_Wiring(t *testing.T) {
	a, _ := testApp(config.AppConfig{})
	root := a.rootCmd()
	for _, path := range [][]string{
		{"migrate"},
		{"jobs", "list"},
		{"jobs", "status"},
		{"jobs", "retry"},
		{"jobs", "stats"},
		{"analysis", "show"},
		{"analyses", "latest"},
		{"seed"},
		{"sign"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, "path %v", path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

type fakeStatuses map[string]*model.JobStatusView

func (f fakeStatuses) GetJobStatus(_ context.Context, id string) (*model.JobStatusView, error) {
	v, ok := f[id]
	if !ok {
		return nil, errors.New("job not found")
	}
	return v, nil
}

func TestFetchStatuses(t *testing.T) {
	reason := "boom"
	src := fakeStatuses{
		"a": {Status: model.QueueStateWaiting},
		"b": {Status: model.QueueStateActive, Progress: 40},
		"c": {Status: model.QueueStateFailed, FailedReason: &reason},
	}

	rows, err := fetchStatuses(context.Background(), src, []string{"c", "a", "b"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})
	assert.Equal(t, 40, rows[2].Progress)
	assert.Equal(t, &reason, rows[0].FailedReason)

	_, err = fetchStatuses(context.Background(), src, []string{"a", "missing"})
	require.ErrorContains(t, err, "job not found")
}

func TestRender_JobStatusRowJSONIsFlat(t *testing.T) {
	a, out := testApp(config.AppConfig{})
	a.output = formatJSON
	rows := []jobStatusRow{{ID: "j1", JobStatusView: model.JobStatusView{Status: model.QueueStateActive, Progress: 10}}}

	require.NoError(t, a.render(rows, nil))
	assert.JSONEq(t, `[{"id":"j1","status":"active","progress":10}]`, out.String())
}
