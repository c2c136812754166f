package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"

	"chatconnect/internal/api"
	"chatconnect/internal/config"
	"chatconnect/internal/conversation"
	"chatconnect/internal/gateway"
	"chatconnect/internal/logger"
	"chatconnect/internal/metrics"
	"chatconnect/internal/storage"
)

func main() {
	log := logger.New(logger.Config{})

	cfgPath := os.Getenv("CHATCONNECT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	log = logger.New(logger.Config{
		Level:  cfg.BasicConfig.LogLevel,
		Pretty: cfg.BasicConfig.LogPretty,
	})

	db, err := storage.Open(cfg.BasicConfig.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := storage.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	ctx := context.Background()
	store, err := conversation.NewStore(ctx, db, cfg.BasicConfig.SystemPrompt)
	if err != nil {
		log.Fatal().Err(err).Msg("init conversation store")
	}

	provider := cfg.BasicConfig.DefaultProvider
	provCfg, err := cfg.Provider(provider)
	if err != nil {
		log.Fatal().Err(err).Msg("resolve provider")
	}
	if provCfg.APIKey == "" {
		log.Warn().Str("provider", provider).Msg("api key not configured; chat requests will fail")
	}
	gw, err := gateway.New(ctx, provider, provCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init completion gateway")
	}

	handler := api.NewHandler(store, gw, cfg, log, metrics.New())
	router := gin.Default()
	handler.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8000"
	}
	log.Info().Str("addr", addr).Str("provider", provider).Str("model", provCfg.Model).Msg("chat connector server starting")
	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
