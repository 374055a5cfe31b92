// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"agent-compute-platform/internal/config"
	"agent-compute-platform/internal/domain/ports/adapter"
	aiAdapters "agent-compute-platform/internal/infra/adapters/ai"
	"agent-compute-platform/internal/infra/adapters/billing"
	"agent-compute-platform/internal/infra/adapters/compute"
	storeAdapters "agent-compute-platform/internal/infra/adapters/storage"
	tele "agent-compute-platform/internal/infra/adapters/telegram"
	pg "agent-compute-platform/internal/infra/db/postgres"
	"agent-compute-platform/internal/infra/logging"
	"agent-compute-platform/internal/infra/metrics"
	red "agent-compute-platform/internal/infra/redis"
	"agent-compute-platform/internal/infra/security"
	"agent-compute-platform/internal/infra/web"
	"agent-compute-platform/internal/infra/worker"
	"agent-compute-platform/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop backends where keys are missing)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	auditRepo := pg.NewJobAuditRepo(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	sessionRepo := red.NewSessionRepo(redisClient, cfg.Redis.TTL)

	// ---- Worker pool ----
	workPool := worker.NewPool(cfg.Worker.FanOut, logger)
	workPool.Start(ctx)
	defer workPool.Stop()

	// ---- Storage + archive expansion ----
	store, err := storeAdapters.NewHTTPStorage(cfg.Storage.BaseURL, cfg.Storage.Root)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	expander := storeAdapters.NewExpander(store, workPool, logger)

	// ---- Billing + tickets ----
	estimator := billing.NewEstimator(nil)
	billingAdapter, err := billing.NewHTTPBilling(cfg.Billing.BaseURL, cfg.Billing.APIKey, estimator)
	if err != nil {
		log.Fatalf("billing: %v", err)
	}
	tickets, err := security.NewTicketIssuer(cfg.Security.TicketSecret, cfg.Security.TicketTTL)
	if err != nil {
		log.Fatalf("tickets: %v", err)
	}

	// ---- Compute backend ----
	var backend adapter.ComputeBackend
	if cfg.Runtime.Dev {
		backend = compute.NewNoopBackend()
		logger.Info().Msg("compute backend: noop")
	} else {
		backend, err = compute.NewHTTPBackend(cfg.Compute.BaseURL, cfg.Compute.Timeout)
		if err != nil {
			log.Fatalf("compute backend: %v", err)
		}
		logger.Info().Str("base", cfg.Compute.BaseURL).Msg("compute backend: http")
	}

	// ---- Completion adapter (OpenAI -> Gemini -> noop) ----
	var completion adapter.CompletionAdapter
	if cfg.AI.OpenAIKey != "" {
		completion, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel)
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("completion adapter: openai")
	} else if cfg.AI.GeminiKey != "" {
		completion, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel)
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("completion adapter: gemini")
	} else {
		completion = aiAdapters.NewNoopAdapter()
		logger.Warn().Msg("completion adapter: noop (no AI key configured)")
	}

	// ---- UI sink ----
	var sink adapter.UISink
	var botSink *tele.BotSink
	if cfg.Bot.Token != "" {
		botSink, err = tele.NewBotSink(cfg.Bot.Token, logger)
		if err != nil {
			log.Fatalf("telegram sink: %v", err)
		}
		sink = botSink
	} else {
		sink = tele.NoopSink{}
		logger.Warn().Msg("ui sink: noop (no bot token configured)")
	}

	// ---- Core use cases ----
	registry := usecase.NewToolRegistry(defaultToolSpecs()...)
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Backend:     backend,
		Billing:     billingAdapter,
		Tickets:     tickets,
		Expander:    expander,
		Registry:    registry,
		Executor:    cfg.Compute.Executor,
		StoragePath: cfg.Compute.StoragePath,
		Environment: cfg.Security.Environment,
	}, logger)
	events := usecase.NewEventRouter(sink, logger)
	tracker := usecase.NewTracker(
		backend, expander, events, auditRepo,
		usecase.PollingScope(cfg.Tracker.PollingScope),
		cfg.Compute.Executor, cfg.Compute.StoragePath, logger,
	)
	supervisor := usecase.NewSupervisor(
		&usecase.PipelineRunner{Pipeline: pipeline},
		tracker, events, completion, cfg.AI.DefaultModel, logger,
	)
	turnUC := usecase.NewTurnUseCase(sessionRepo, locker, supervisor, logger)

	// ---- Ops server ----
	ops := web.NewServer(cfg.Admin.Port, cfg.Admin.APIKey, auditRepo, logger)
	go func() {
		if err := ops.Start(); err != nil {
			logger.Error().Err(err).Msg("ops server failed")
			cancel()
		}
	}()

	// ---- Turn loop ----
	if botSink != nil {
		go botSink.Listen(ctx, func(ctx context.Context, conversationID, text string) {
			requested := ""
			if rest, ok := strings.CutPrefix(strings.TrimSpace(text), "job:"); ok {
				requested = strings.TrimSpace(rest)
			}
			if _, err := turnUC.RunTurn(ctx, conversationID, requested, nil); err != nil {
				logger.Error().Err(err).Str("conversation_id", conversationID).Msg("turn failed")
			}
		})
	}

	logger.Info().Msg("agent compute platform started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")
	_ = ops.Shutdown(context.Background())
	cancel()
}

// defaultToolSpecs declares the compute tools this deployment exposes.
func defaultToolSpecs() []usecase.ToolSpec {
	return []usecase.ToolSpec{
		{
			Name:        "structure_optimization",
			LongRunning: true,
			Fields: []usecase.FieldSpec{
				{Name: "structure_url", Type: usecase.FieldString, Required: true},
				{Name: "max_steps", Type: usecase.FieldNumber, Default: float64(500)},
			},
		},
		{
			Name:        "molecular_dynamics",
			LongRunning: true,
			Fields: []usecase.FieldSpec{
				{Name: "structure_url", Type: usecase.FieldString, Required: true},
				{Name: "temperature", Type: usecase.FieldNumber, Required: true},
				{Name: "steps", Type: usecase.FieldNumber, Default: float64(10000)},
			},
		},
		{
			Name: "property_lookup",
			Fields: []usecase.FieldSpec{
				{Name: "formula", Type: usecase.FieldString, Required: true},
				{Name: "properties", Type: usecase.FieldList},
			},
		},
		{
			Name: "literature_search",
			Fields: []usecase.FieldSpec{
				{Name: "query", Type: usecase.FieldString, Required: true},
				{Name: "limit", Type: usecase.FieldNumber, Default: float64(10)},
			},
		},
	}
}
