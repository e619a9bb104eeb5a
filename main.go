package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Ordering-Agent/agent/agents/orchestrator"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/business"
	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/inventory"
	qdrantx "github.com/tanpawarit/Chative-Ordering-Agent/agent/inventory/qdrant"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/llm"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/order"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/prompt"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/sheet"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/speech"
	statex "github.com/tanpawarit/Chative-Ordering-Agent/agent/state"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/tool"
	"github.com/tanpawarit/Chative-Ordering-Agent/api"
	configx "github.com/tanpawarit/Chative-Ordering-Agent/pkg/config"
	_ "github.com/tanpawarit/Chative-Ordering-Agent/pkg/logger/autoload"
	metricsx "github.com/tanpawarit/Chative-Ordering-Agent/pkg/metrics"
	openrouterx "github.com/tanpawarit/Chative-Ordering-Agent/pkg/openrouter"
	qstashx "github.com/tanpawarit/Chative-Ordering-Agent/pkg/qstash"
)

type AppConfig struct {
	Addr              string `envconfig:"ADDR" default:":8000"`
	DefaultBusinessID string `envconfig:"DEFAULT_BUSINESS_ID" default:"electronics_default"`

	RegistryBackend    string `envconfig:"REGISTRY_BACKEND" default:"file"`
	BusinessConfigPath string `envconfig:"BUSINESS_CONFIG_PATH" default:"business_config.json"`
	WatchRegistry      bool   `envconfig:"WATCH_REGISTRY" default:"true"`

	SessionStore string        `envconfig:"SESSION_STORE" default:"memory"`
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"0s"`

	SheetDriver string `envconfig:"SHEET_DRIVER" default:"memory"`
	WorkbookDir string `envconfig:"WORKBOOK_DIR" default:"data"`

	VectorIndex      string        `envconfig:"VECTOR_INDEX" default:"none"`
	IndexScheduler   string        `envconfig:"INDEX_SCHEDULER" default:"async"`
	IndexCallbackURL string        `envconfig:"INDEX_CALLBACK_URL"`
	IndexTimeout     time.Duration `envconfig:"INDEX_TIMEOUT" default:"2m"`
	SearchTopK       int           `envconfig:"SEARCH_TOP_K" default:"5"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

func (c *AppConfig) Validate() error {
	if strings.EqualFold(c.IndexScheduler, "qstash") && strings.TrimSpace(c.IndexCallbackURL) == "" {
		return errors.New("index callback url is required for the qstash scheduler")
	}
	return nil
}

// lookupFunc lets the sheet provider resolve tenants through a registry
// that is built after it.
type lookupFunc func(ctx context.Context, id string) (contractx.Business, error)

func (f lookupFunc) Get(ctx context.Context, id string) (contractx.Business, error) {
	return f(ctx, id)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llm.Config]("LLM")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := metricsx.New(reg)

	openaiClient := openrouterx.NewClient(llmCfg.OpenAI())
	if openaiClient == nil {
		log.Fatal().Msg("failed to initialize openai client")
	}

	// Tenant registry and per-tenant sheets.
	var registry *business.Registry
	lookup := lookupFunc(func(ctx context.Context, id string) (contractx.Business, error) {
		return registry.Get(ctx, id)
	})

	var opener sheet.Opener
	switch sheet.Driver(strings.ToLower(appCfg.SheetDriver)) {
	case sheet.DriverWorkbook:
		opener = sheet.WorkbookOpener(appCfg.WorkbookDir)
	case sheet.DriverPostgres:
		db := sheet.OpenPostgres(*configx.MustNew[sheet.PostgresConfig]("POSTGRES"))
		defer db.Close()
		if err := sheet.EnsureSchema(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare postgres schema")
		}
		opener = sheet.PostgresOpener(db)
	default:
		opener = sheet.MemoryOpener()
	}
	sheets := sheet.NewProvider(lookup, sheet.WithMockFallback(opener), sheet.WithFallbackTenant(appCfg.DefaultBusinessID))

	// Inventory retrieval and indexing.
	var index inventory.Index
	if strings.EqualFold(appCfg.VectorIndex, "qdrant") {
		qdrantCfg := configx.MustNew[qdrantx.Config]("QDRANT")
		client, err := qdrantx.Dial(*qdrantCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to qdrant")
		}
		defer client.Close()
		index = qdrantx.New(client, qdrantx.NewOpenAIEmbedder(openaiClient, qdrantCfg.EmbeddingModel), qdrantCfg.Collection)
	}
	indexer := inventory.NewIndexer(sheets, index, metrics)

	var (
		scheduler contractx.IndexScheduler
		verifier  api.SignatureVerifier
	)
	switch {
	case index == nil || strings.EqualFold(appCfg.IndexScheduler, "none"):
		scheduler = inventory.NopScheduler{}
	case strings.EqualFold(appCfg.IndexScheduler, "qstash"):
		qstashClient := qstashx.MustNew(*configx.MustNew[qstashx.Config]("QSTASH"))
		scheduler = inventory.NewQStashScheduler(qstashClient, appCfg.IndexCallbackURL, inventory.WithPublishTimeout(appCfg.IndexTimeout))
		verifier = qstashClient
	default:
		scheduler = inventory.NewAsyncScheduler(indexer, inventory.WithTimeout(appCfg.IndexTimeout))
	}

	var backend business.Backend
	if strings.EqualFold(appCfg.RegistryBackend, "supabase") {
		sb, err := business.NewSupabaseBackend(*configx.MustNew[business.SupabaseConfig]("SUPABASE"))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create supabase backend")
		}
		backend = sb
	} else {
		backend = business.NewFileBackend(appCfg.BusinessConfigPath)
	}
	registry = business.NewRegistry(backend, business.WithIndexScheduler(scheduler))
	if err := registry.Reload(ctx); err != nil {
		log.Warn().Err(err).Msg("initial business registry load failed")
	}
	if appCfg.WatchRegistry {
		if err := registry.Watch(ctx); err != nil {
			log.Warn().Err(err).Msg("business registry watch disabled")
		}
	}

	// Sessions.
	var store statex.Store
	switch strings.ToLower(appCfg.SessionStore) {
	case "redis":
		redisCfg := configx.MustNew[statex.RedisConfig]("REDIS")
		if appCfg.SessionTTL > 0 {
			redisCfg.TTL = appCfg.SessionTTL
		}
		rs := statex.NewRedisStore(*redisCfg)
		defer rs.Close()
		store = rs
	case "upstash":
		us, err := statex.NewUpstashRedisStore(
			*configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS"),
			statex.WithTTL(appCfg.SessionTTL),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create upstash session store")
		}
		store = us
	default:
		store = statex.NewMemoryStore(statex.WithMemoryTTL(appCfg.SessionTTL))
	}

	// Language models.
	toolCfg := llmCfg.OpenRouterFor(llm.RoleTools)
	chatModel, err := toolCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create chat model")
	}
	var replyModel einomodel.BaseChatModel
	if !llmCfg.SameModel() {
		replyCfg := llmCfg.OpenRouterFor(llm.RoleReply)
		replyModel, err = replyCfg.New(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create reply model")
		}
	}

	searcher := inventory.NewSearcher(index, sheets,
		inventory.WithTopK(appCfg.SearchTopK),
		inventory.WithMetrics(metrics),
	)
	orders := order.NewStore(sheets)

	agent, err := orchestrator.New(orchestrator.Deps{
		Store:      store,
		Tenants:    registry,
		Prompts:    prompt.MustLoad(),
		Executor:   tool.NewExecutor(searcher, orders, metrics),
		Model:      chatModel,
		ReplyModel: replyModel,
		Locker:     statex.NewKeyedLocker(),
		Metrics:    metrics,
	}, orchestrator.Config{DefaultTenantID: appCfg.DefaultBusinessID})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build orchestrator")
	}

	// Speech.
	speechCfg := configx.MustNew[speech.Config]("SPEECH")
	synth := &speech.FallbackSynthesizer{
		Secondary: speech.NewOpenAISynthesizer(openaiClient, speechCfg.TTSModel, speechCfg.TTSVoice),
	}
	if speechCfg.GoogleAPIKey != "" {
		google, err := speech.NewGoogleSynthesizer(speechCfg.GoogleBaseURL, speechCfg.GoogleAPIKey, speechCfg.Timeout)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create google synthesizer")
		}
		synth.Primary = google
	}

	server, err := api.New(api.Deps{
		Turns:           agent,
		Businesses:      registry,
		Orders:          orders,
		Transcriber:     speech.NewOpenAITranscriber(openaiClient, speechCfg.TranscribeModel),
		Synthesizer:     synth,
		Scheduler:       scheduler,
		Reindexer:       indexer,
		Verifier:        verifier,
		CallbackURL:     appCfg.IndexCallbackURL,
		Metrics:         promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		DefaultTenantID: appCfg.DefaultBusinessID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build http server")
	}

	httpServer := &http.Server{
		Addr:              appCfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", appCfg.Addr).Msg("ordering agent listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
