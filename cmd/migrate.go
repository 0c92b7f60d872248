package main

import (
	"github.com/bellapacxx/bingo-coach/config"
	"github.com/bellapacxx/bingo-coach/utils/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("[FATAL] %v", err)
	}
	if cfg.Store != config.StorePostgres {
		logger.Fatalf("[FATAL] migrations need STORE=postgres, got %q", cfg.Store)
	}
	if _, err := config.SetupDatabase(cfg.DatabaseURL); err != nil { // connects + migrates
		logger.Fatalf("[FATAL] %v", err)
	}
	logger.Info("✅ Database migration completed successfully")
}
