package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/esg-pipeline/config"
	"github.com/target/esg-pipeline/internal/adapters/analysisclient"
	"github.com/target/esg-pipeline/internal/adapters/artifact"
	"github.com/target/esg-pipeline/internal/adapters/mailer"
	"github.com/target/esg-pipeline/internal/adapters/mercadopago"
	redisadapter "github.com/target/esg-pipeline/internal/adapters/redis"
	"github.com/target/esg-pipeline/internal/core"
	"github.com/target/esg-pipeline/internal/data"
	domainjob "github.com/target/esg-pipeline/internal/domain/job"
	"github.com/target/esg-pipeline/internal/domain/webhook"
	"github.com/target/esg-pipeline/internal/observability/notify/pagerduty"
	"github.com/target/esg-pipeline/internal/observability/notify/slack"
	"github.com/target/esg-pipeline/internal/observability/statsd"
	"github.com/target/esg-pipeline/internal/realtime"
	"github.com/target/esg-pipeline/internal/service"
	"github.com/target/esg-pipeline/internal/service/failurenotifier"
)

const webhookLockPrefix = "esg:webhook:payment:"

// ServiceContainer holds all application services. Webhook and Gateway are
// only built with the http service; Worker only with the esg-runner.
type ServiceContainer struct {
	Jobs     *service.JobService
	Analyses *service.AnalysisService
	Producer *service.AnalysisProducer
	Webhook  *service.PaymentWebhookService
	Gateway  *mercadopago.Client
	Worker   *service.AnalysisWorker

	// Hub serves the local stream subscribers. Broadcaster is what services
	// publish to: the redis relay when enabled, otherwise the hub itself.
	Hub         *realtime.Hub
	Relay       *redisadapter.StatusRelay
	Broadcaster core.StatusBroadcaster

	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// Metrics is nil when metrics are disabled.
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient // Optional
	Logger      *slog.Logger
}

type serviceRepositories struct {
	Tx            *data.Transactor
	Jobs          *data.JobRepo
	Analyses      *data.AnalysisRepo
	Results       *data.EsgResultRepo
	Organizations *data.OrganizationRepo
	Payments      *data.PaymentRepo
}

func buildRepositories(db *sql.DB) *serviceRepositories {
	return &serviceRepositories{
		Tx:            data.NewTransactor(db),
		Jobs:          data.NewJobRepo(db, data.RepoConfig{}),
		Analyses:      data.NewAnalysisRepo(db),
		Results:       data.NewEsgResultRepo(db),
		Organizations: data.NewOrganizationRepo(db),
		Payments:      data.NewPaymentRepo(db),
	}
}

// NewServices wires repositories, adapters and services for the enabled modes.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service config is required")
	}
	if deps.DB == nil {
		return ServiceContainer{}, errors.New("database connection is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	repos := buildRepositories(deps.DB)
	obs := buildObservability(logger, cfg.Observability)

	c := ServiceContainer{
		Hub:           realtime.NewHub(realtime.HubOptions{Buffer: cfg.Broadcast.SubscriberBuffer, Logger: logger}),
		Observability: obs,
	}
	c.Broadcaster = c.Hub
	if cfg.Broadcast.UseRedis && deps.RedisClient != nil {
		c.Relay = redisadapter.NewStatusRelay(deps.RedisClient, cfg.Broadcast.Channel, logger)
		c.Broadcaster = c.Relay
	}

	jobs, err := newJobService(repos, cfg, obs, logger)
	if err != nil {
		return ServiceContainer{}, err
	}
	c.Jobs = jobs

	if c.Analyses, err = service.NewAnalysisService(service.AnalysisServiceOptions{
		Analyses:    repos.Analyses,
		Results:     repos.Results,
		Broadcaster: c.Broadcaster,
		Logger:      logger,
	}); err != nil {
		return ServiceContainer{}, fmt.Errorf("create analysis service: %w", err)
	}

	if c.Producer, err = service.NewAnalysisProducer(service.AnalysisProducerOptions{
		Tx:            repos.Tx,
		Analyses:      repos.Analyses,
		Organizations: repos.Organizations,
		Jobs:          repos.Jobs,
		Broadcaster:   c.Broadcaster,
		Kicker:        jobs,
		Priority:      cfg.EsgRunner.Priority,
		Logger:        logger,
	}); err != nil {
		return ServiceContainer{}, fmt.Errorf("create analysis producer: %w", err)
	}

	if cfg.IsHTTPServerEnabled() {
		if err := buildPaymentServices(&c, repos, deps, logger); err != nil {
			return ServiceContainer{}, err
		}
	}
	if cfg.IsEsgRunnerEnabled() {
		if c.Worker, err = newAnalysisWorker(&c, repos, cfg, logger); err != nil {
			return ServiceContainer{}, err
		}
	}
	return c, nil
}

func newJobService(
	repos *serviceRepositories,
	cfg *config.AppConfig,
	obs ObservabilityContainer,
	logger *slog.Logger,
) (*service.JobService, error) {
	policy, err := domainjob.NewLeasePolicy(cfg.EsgRunner.QueueTimeout, cfg.AnalysisClient.CallBudget())
	if err != nil {
		return nil, fmt.Errorf("create lease policy: %w", err)
	}
	svc, err := service.NewJobService(service.JobServiceOptions{
		Repo:            repos.Jobs,
		LeasePolicy:     policy,
		Logger:          logger,
		FailureNotifier: obs.FailureNotifier,
	})
	if err != nil {
		return nil, fmt.Errorf("create job service: %w", err)
	}
	return svc, nil
}

func buildPaymentServices(c *ServiceContainer, repos *serviceRepositories, deps *ServiceDeps, logger *slog.Logger) error {
	cfg := deps.Config
	gateway, err := mercadopago.New(mercadopago.Config{
		BaseURL:       cfg.PaymentGateway.BaseURL,
		AccessToken:   cfg.PaymentGateway.AccessToken,
		WebhookSecret: cfg.Webhook.Secret,
		UserIDExpr:    cfg.PaymentGateway.UserIDExpr,
		OrgIDExpr:     cfg.PaymentGateway.OrgIDExpr,
		Timeout:       cfg.PaymentGateway.Timeout,
	})
	if err != nil {
		return fmt.Errorf("create payment gateway client: %w", err)
	}
	c.Gateway = gateway

	mail, err := mailer.New(mailer.Config{
		APIKey:       cfg.Mail.APIKey,
		BaseURL:      cfg.Mail.BaseURL,
		From:         cfg.Mail.From,
		CopyTo:       cfg.Mail.CopyTo,
		DashboardURL: cfg.Mail.DashboardURL,
		Timeout:      cfg.Mail.Timeout,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("create mailer: %w", err)
	}

	opts := service.PaymentWebhookServiceOptions{
		Verifier:      webhook.NewVerifier(cfg.Webhook.Secret),
		Tx:            repos.Tx,
		Payments:      repos.Payments,
		Analyses:      repos.Analyses,
		Organizations: repos.Organizations,
		Gateway:       gateway,
		Producer:      c.Producer,
		Mailer:        mail,
		Broadcaster:   c.Broadcaster,
		Metrics:       c.Observability.Metrics,
		Logger:        logger,
	}
	if deps.RedisClient != nil && cfg.Webhook.InFlightTTL > 0 {
		opts.Lock = redisadapter.NewLock(deps.RedisClient, webhookLockPrefix)
		opts.InFlightTTL = cfg.Webhook.InFlightTTL
	}

	if c.Webhook, err = service.NewPaymentWebhookService(opts); err != nil {
		return fmt.Errorf("create payment webhook service: %w", err)
	}
	return nil
}

func newAnalysisWorker(
	c *ServiceContainer,
	repos *serviceRepositories,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*service.AnalysisWorker, error) {
	client, err := analysisclient.New(analysisclient.Config{
		BaseURL:          cfg.AnalysisClient.URL,
		MaxResponseBytes: cfg.AnalysisClient.MaxResponseBytes,
		TokenURL:         cfg.AnalysisClient.OAuthTokenURL,
		ClientID:         cfg.AnalysisClient.OAuthClientID,
		ClientSecret:     cfg.AnalysisClient.OAuthClientSecret,
		Scopes:           cfg.AnalysisClient.OAuthScopes,
	})
	if err != nil {
		return nil, fmt.Errorf("create analysis client: %w", err)
	}

	store, err := artifact.NewFileStore(cfg.Artifacts.Dir)
	if err != nil {
		return nil, fmt.Errorf("create artifact store: %w", err)
	}

	worker, err := service.NewAnalysisWorker(service.AnalysisWorkerOptions{
		Client:         client,
		Analyses:       repos.Analyses,
		Results:        repos.Results,
		Broadcaster:    c.Broadcaster,
		Progress:       c.Jobs,
		Artifacts:      store,
		DecodeArtifact: artifact.DecodeBase64,
		CallTimeout:    cfg.AnalysisClient.Timeout,
		MaxAttempts:    cfg.AnalysisClient.MaxAttempts,
		RetryDelay:     cfg.AnalysisClient.RetryDelay,
		PersistTimeout: cfg.EsgRunner.PersistTimeout,
		Metrics:        c.Observability.Metrics,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create analysis worker: %w", err)
	}
	return worker, nil
}

// buildObservability configures the metrics sink and failure notifier. A
// statsd setup error disables metrics instead of failing startup.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	out := ObservabilityContainer{
		FailureNotifier: buildFailureNotifier(logger, cfg.Notifications),
	}
	if !cfg.Metrics.IsEnabled() {
		return out
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  cfg.Metrics.Namespace,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return out
	}
	out.Metrics = client
	return out
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	logger = logger.With("component", "failure_notifier")
	opts := failurenotifier.Options{Logger: logger, Timeout: cfg.Timeout}
	if !cfg.Enabled {
		return failurenotifier.NewService(opts)
	}

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:        cfg.Slack.WebhookURL,
			Channel:           cfg.Slack.Channel,
			Username:          cfg.Slack.Username,
			Timeout:           cfg.Timeout,
			RetryLimit:        cfg.RetryLimit,
			AnalysisURLPrefix: cfg.Slack.AnalysisURLPrefix,
		})
		if err != nil {
			logger.Error("failed to initialise slack notifier", "error", err)
		} else {
			opts.Sinks = append(opts.Sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			opts.Sinks = append(opts.Sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	return failurenotifier.NewService(opts)
}
