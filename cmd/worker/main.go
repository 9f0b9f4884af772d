package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/promptforge/promptforge/internal/config"
	"github.com/promptforge/promptforge/internal/database"
	"github.com/promptforge/promptforge/internal/embedding"
	"github.com/promptforge/promptforge/internal/harness"
	"github.com/promptforge/promptforge/internal/llm"
	"github.com/promptforge/promptforge/internal/queue"
	"github.com/promptforge/promptforge/internal/queue/workers"
	"github.com/promptforge/promptforge/internal/store"
	"github.com/promptforge/promptforge/internal/vectorstore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	db, err := database.NewPool(context.Background(), cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	pg := store.New(db)
	gw := llm.NewGateway(cfg.LLM)

	h := harness.New(gw, pg, harness.Config{
		Model:         cfg.LLM.DefaultModel,
		JudgeModel:    cfg.LLM.JudgeModel,
		PassThreshold: cfg.Eval.PassThreshold,
		Workers:       cfg.Eval.Workers,
		CompareMargin: cfg.Eval.CompareMargin,
	})
	embedSvc := embedding.NewService(gw, cfg.LLM.EmbeddingModel)
	vs := vectorstore.NewPgVectorStore(db)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()

	testRunWorker := workers.NewTestRunWorker(pg, h)
	embedWorker := workers.NewEmbedWorker(pg, embedSvc, vs)

	registry.Register(queue.TypeTestRunExecute, asynq.HandlerFunc(testRunWorker.ProcessTask))
	registry.Register(queue.TypeVersionEmbed, asynq.HandlerFunc(embedWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
