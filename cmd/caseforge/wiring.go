package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"caseforge/internal/casectx"
	"caseforge/internal/config"
	"caseforge/internal/llm"
	"caseforge/internal/llmclient"
	"caseforge/internal/orchestrator"
	"caseforge/internal/packager"
	"caseforge/internal/profile"
	"caseforge/internal/redteam"
)

const analysisCacheSize = 256

func buildStore(cfg *config.Config) (*casectx.Store, func(), error) {
	switch cfg.ContextBackend {
	case "memory":
		return casectx.NewStore(casectx.NewMemoryBackend()), func() {}, nil
	case "disk":
		b, err := casectx.NewDiskBackend(cfg.ContextDir)
		if err != nil {
			return nil, nil, err
		}
		return casectx.NewStore(b), func() {}, nil
	case "postgres":
		b, err := casectx.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return casectx.NewStore(b), func() { _ = b.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown context backend %q", cfg.ContextBackend)
}

func buildLLM(ctx context.Context, cfg *config.Config) (llmclient.Client, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	base, err := llmclient.NewGeminiClient(ctx, cfg.GeminiModel)
	if err != nil {
		return nil, err
	}
	return llm.Wrap(base,
		llm.WithTimeout(2*time.Minute),
		llm.RateLimit(1, 4),
		llm.WithLogging(log.Default()),
	), nil
}

func buildStorage(cfg *config.Config) (packager.Storage, error) {
	if cfg.Artifact.Enabled {
		return packager.NewS3Storage(packager.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		})
	}
	return packager.NewLocalStorage(cfg.OutputDir)
}

func buildProfiles(cfg *config.Config) (*profile.Table, error) {
	if cfg.ProfilesPath != "" {
		return profile.LoadTable(cfg.ProfilesPath)
	}
	return profile.DefaultTable(), nil
}

// buildOrchestrator assembles the full pipeline from config. The returned
// cleanup closes the LLM client and any store connection.
func buildOrchestrator(ctx context.Context, cfg *config.Config) (*orchestrator.Orchestrator, *casectx.Store, func(), error) {
	store, closeStore, err := buildStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := buildLLM(ctx, cfg)
	if err != nil {
		closeStore()
		return nil, nil, nil, err
	}
	storage, err := buildStorage(cfg)
	if err != nil {
		_ = client.Close()
		closeStore()
		return nil, nil, nil, err
	}
	profiles, err := buildProfiles(cfg)
	if err != nil {
		_ = client.Close()
		closeStore()
		return nil, nil, nil, err
	}
	cache, err := redteam.NewCache(analysisCacheSize)
	if err != nil {
		_ = client.Close()
		closeStore()
		return nil, nil, nil, err
	}

	o := &orchestrator.Orchestrator{
		Store:            store,
		LLM:              client,
		Profiles:         profiles,
		Analyzer:         redteam.New(client, cache),
		Packager:         packager.New(storage),
		Renderer:         packager.StubRenderer{},
		Concurrency:      cfg.Concurrency,
		MaxFixIterations: cfg.MaxFixIterations,
	}
	cleanup := func() {
		_ = client.Close()
		closeStore()
	}
	return o, store, cleanup, nil
}
