// Package api wires the HTTP surface: routing, middleware, and
// handler construction.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/promptforge/promptforge/internal/analysis"
	"github.com/promptforge/promptforge/internal/api/handlers"
	"github.com/promptforge/promptforge/internal/api/middleware"
	"github.com/promptforge/promptforge/internal/auth"
	"github.com/promptforge/promptforge/internal/cache"
	"github.com/promptforge/promptforge/internal/config"
	"github.com/promptforge/promptforge/internal/embedding"
	"github.com/promptforge/promptforge/internal/harness"
	"github.com/promptforge/promptforge/internal/llm"
	"github.com/promptforge/promptforge/internal/queue"
	"github.com/promptforge/promptforge/internal/store"
	"github.com/promptforge/promptforge/internal/variant"
	"github.com/promptforge/promptforge/internal/vectorstore"
	"github.com/promptforge/promptforge/internal/version"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	jwt   *auth.JWTMiddleware
	llmGW llm.Gateway
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		jwt:   auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
		llmGW: llm.NewGateway(cfg.LLM),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Services
	pg := store.New(rt.db)
	var rc *cache.Cache
	if rt.redis != nil {
		rc = cache.NewCache(rt.redis)
	}
	var versionSvc *version.Service
	if rc != nil {
		versionSvc = version.NewService(pg, rc)
	} else {
		versionSvc = version.NewService(pg, nil)
	}

	engine := analysis.NewEngine(rt.llmGW, pg, rt.cfg.LLM.AnalysisModel, rt.cfg.Eval.Workers)
	generator := variant.NewGenerator(rt.llmGW, rt.cfg.LLM.DefaultModel)
	h := harness.New(rt.llmGW, pg, harness.Config{
		Model:         rt.cfg.LLM.DefaultModel,
		JudgeModel:    rt.cfg.LLM.JudgeModel,
		PassThreshold: rt.cfg.Eval.PassThreshold,
		Workers:       rt.cfg.Eval.Workers,
		CompareMargin: rt.cfg.Eval.CompareMargin,
	})

	vs := vectorstore.NewPgVectorStore(rt.db)
	embedSvc := embedding.NewService(rt.llmGW, rt.cfg.LLM.EmbeddingModel)

	var queueClient *queue.Client
	if rt.redis != nil {
		queueClient = queue.NewClient(rt.cfg.Redis)
	}
	// Untyped nil must not hide behind the interface.
	var enqueuer handlers.Enqueuer
	var batchEnqueuer handlers.BatchEnqueuer
	if queueClient != nil {
		enqueuer = queueClient
		batchEnqueuer = queueClient
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		promptH := handlers.NewPromptHandler(versionSvc, enqueuer)
		searchH := handlers.NewSearchHandler(embedSvc, vs)
		r.Route("/prompts", func(r chi.Router) {
			r.Post("/", promptH.Create)
			r.Get("/", promptH.List)
			r.Get("/{id}", promptH.Get)
			r.Delete("/{id}", promptH.Delete)
			r.Post("/{id}/versions", promptH.CreateVersion)
			r.Get("/{id}/versions", promptH.History)
			r.Post("/{id}/rollback", promptH.Rollback)
			r.Get("/{id}/search", searchH.Search)

			testCaseH := handlers.NewTestCaseHandler(pg)
			r.Post("/{id}/testcases", testCaseH.Create)
			r.Get("/{id}/testcases", testCaseH.List)
		})
		r.Get("/search", searchH.Search)

		versionH := handlers.NewVersionHandler(versionSvc, engine, generator)
		testH := handlers.NewTestHandler(versionSvc, pg, h, batchEnqueuer)
		r.Route("/versions", func(r chi.Router) {
			r.Get("/{id}/diff/{other}", versionH.Diff)
			r.Post("/{id}/analyze", versionH.Analyze)
			r.Post("/{id}/analyze/comprehensive", versionH.AnalyzeComprehensive)
			r.Get("/{id}/analyses", versionH.Analyses)
			r.Post("/{id}/variants", versionH.Variants)
			r.Post("/{id}/test", testH.RunTest)
			r.Post("/{id}/test/batch", testH.RunBatch)
			r.Post("/{id}/test/batch/async", testH.RunBatchAsync)
			r.Get("/{id}/results", testH.Results)
		})
		r.Post("/test/compare", testH.Compare)

		testCaseH := handlers.NewTestCaseHandler(pg)
		r.Delete("/testcases/{id}", testCaseH.Delete)
	})

	return r
}
