// cmd/insight-manager/app.go
package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"audit-insights/internal/api"
	"audit-insights/internal/common/aws"
	"audit-insights/internal/common/config"
	"audit-insights/internal/common/database"
	"audit-insights/internal/common/logger"
	"audit-insights/internal/common/observability"
	"audit-insights/internal/common/validation"
	"audit-insights/internal/insights/cache"
	"audit-insights/internal/insights/history"
	"audit-insights/internal/insights/impact"
	"audit-insights/internal/insights/knowledge"
	"audit-insights/internal/insights/narrative"
	"audit-insights/internal/insights/notify"
	"audit-insights/internal/insights/orchestrator"
	"audit-insights/internal/insights/pipeline"
	"audit-insights/internal/insights/service"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// app holds every wired component for one process.
type app struct {
	cfg     *config.Config
	zapLog  *zap.Logger
	log     logger.Logger
	obs     *observability.Observability
	service *service.Service
	checks  map[string]api.ReadinessCheck
	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	zapLog := logger.NewWithRotation(logger.RotationConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.LogFile(),
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	log := logger.NewZapAdapter(zapLog)

	a := &app{
		cfg:    cfg,
		zapLog: zapLog,
		log:    log,
		checks: make(map[string]api.ReadinessCheck),
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdownTracing)

	a.obs = observability.New(cfg.App.Name, log)
	a.closers = append(a.closers, a.obs.Shutdown)

	source, err := a.catalogSource()
	if err != nil {
		a.close()
		return nil, err
	}
	provider := knowledge.NewProvider(source, config.GetSeconds(cfg.Insights.CatalogRefresh), log)

	store, err := a.cacheStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	seen, err := a.historyStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	publisher, err := a.publisher(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	coordinator := pipeline.NewCoordinator(pipelineConfig(cfg.Insights), provider, store, a.narrator(), log)
	a.service = service.New(coordinator, orchestrator.New(log), seen, publisher, log)

	zapLog.Info("Insight service initialized",
		zap.String("catalogSource", cfg.Insights.CatalogSource),
		zap.String("cacheBackend", cfg.Insights.CacheBackend),
		zap.String("historyBackend", cfg.Insights.HistoryBackend),
		zap.String("narrator", cfg.Insights.Narrator),
	)
	return a, nil
}

func pipelineConfig(c config.InsightsConfig) pipeline.Config {
	return pipeline.Config{
		MinMeaningfulResponses: c.MinMeaningfulResponses,
		MaxTotal:               c.MaxTotal,
		MaxPerSection:          c.MaxPerSection,
		RemoteTimeout:          config.GetDuration(c.RemoteTimeout),
		RemoteMaxAttempts:      c.RemoteMaxAttempts,
		RemoteBackoff:          config.GetDuration(c.RemoteBackoff),
		CacheTTL:               config.GetSeconds(c.CacheTTL),
		EmptyCacheTTL:          config.GetSeconds(c.EmptyCacheTTL),
		RecoveryRates:          impact.DefaultRecoveryRates().Merge(c.RecoveryRates),
	}
}

func (a *app) defaults() validation.Defaults {
	return validation.Defaults{
		Currency: a.cfg.Insights.DefaultCurrency,
		Locale:   a.cfg.Insights.DefaultLocale,
	}
}

func (a *app) catalogSource() (knowledge.Source, error) {
	switch a.cfg.Insights.CatalogSource {
	case config.SourceFile:
		return knowledge.FileSource{Path: a.cfg.Insights.CatalogPath}, nil

	case config.SourceElasticsearch:
		var es *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(a.cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return es.Ping(ctx)
		}, 15, 2*time.Second, a.zapLog, "Elasticsearch connection")
		if err != nil {
			return nil, err
		}
		a.checks["elasticsearch"] = es.Ping
		a.zapLog.Info("Elasticsearch connected successfully")
		return knowledge.NewElasticsearchSource(es.Client, a.cfg.Insights.CatalogIndex), nil

	default:
		return knowledge.EmbeddedSource{}, nil
	}
}

func (a *app) cacheStore(ctx context.Context) (cache.Store, error) {
	if a.cfg.Insights.CacheBackend != config.BackendRedis {
		return cache.NewMemoryStore(a.cfg.Insights.CacheMaxEntries), nil
	}

	redis := database.NewRedis(a.cfg.Database.Redis)
	err := retryWithBackoff(func() error {
		return redis.Ping(ctx)
	}, 10, 2*time.Second, a.zapLog, "Redis connection")
	if err != nil {
		_ = redis.Close()
		return nil, err
	}

	a.checks["redis"] = redis.Ping
	a.closers = append(a.closers, func(context.Context) error { return redis.Close() })
	a.zapLog.Info("Redis connected successfully")
	return cache.NewRedisStore(redis.Client), nil
}

func (a *app) historyStore(ctx context.Context) (history.Store, error) {
	if a.cfg.Insights.HistoryBackend != config.BackendPostgres {
		return history.NewMemoryStore(), nil
	}

	var pg *database.PostgresClient
	err := retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(a.cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, a.zapLog, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	a.checks["postgres"] = pg.Ping
	a.closers = append(a.closers, func(context.Context) error { return pg.Close() })

	store := history.NewPostgresStore(pg.DB)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	a.zapLog.Info("PostgreSQL connected successfully")
	return store, nil
}

func (a *app) publisher(ctx context.Context) (notify.Publisher, error) {
	sns := a.cfg.Notifications.SNS
	if !sns.Enabled || sns.TopicARN == "" {
		return notify.NoopPublisher{}, nil
	}

	client, err := aws.NewSNSClient(ctx, sns.Region, sns.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("create sns client: %w", err)
	}
	a.zapLog.Info("SNS publisher configured", zap.String("topicArn", sns.TopicARN))
	return notify.NewSNSPublisher(client, sns.TopicARN, a.log), nil
}

func (a *app) narrator() narrative.Narrator {
	limiter := narrative.NewLimiter(a.cfg.Insights.NarratorRatePerSecond)

	switch a.cfg.Insights.Narrator {
	case config.NarratorGenAI:
		genai := a.cfg.APIs.GenAI
		return narrative.NewGenAINarrator(narrative.GenAIConfig{
			BaseURL:     genai.BaseURL,
			APIKey:      genai.APIKey,
			Timeout:     config.GetDuration(genai.Timeout),
			MaxTokens:   genai.MaxTokens,
			Temperature: genai.Temperature,
		}, limiter, a.log)

	case config.NarratorOpenAI:
		openai := a.cfg.APIs.OpenAI
		return narrative.NewOpenAINarrator(narrative.OpenAIConfig{
			APIKey:      openai.APIKey,
			Model:       openai.Model,
			BaseURL:     openai.BaseURL,
			MaxTokens:   openai.MaxTokens,
			Temperature: float32(openai.Temperature),
		}, limiter, a.log)

	default:
		return narrative.TemplateNarrator{}
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.zapLog.Warn("shutdown step failed", zap.Error(err))
		}
	}
	_ = a.zapLog.Sync()
}
