package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/JasonCorp84/rate-limiter/internal/config"
	"github.com/JasonCorp84/rate-limiter/internal/domain"
	"github.com/JasonCorp84/rate-limiter/internal/logger"
	"github.com/JasonCorp84/rate-limiter/internal/resolver"
	"github.com/JasonCorp84/rate-limiter/internal/storage"
)

// seedFile representa a estrutura do arquivo de seed: um mapa de
// applicationId (incluindo "default") para o seu conjunto de regras
type seedFile struct {
	Configs map[string]domain.ConfigRecord `json:"configs"`
}

// main popula as chaves rateLimitConfig no Redis a partir de um arquivo JSON.
// Identificadores são normalizados para minúsculas antes da escrita
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	file := flag.String("file", cfg.SeedFile, "path to the seed JSON file")
	flag.Parse()

	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)

	data, err := os.ReadFile(*file)
	if err != nil {
		appLogger.Error("Failed to read seed file", err, map[string]interface{}{"file": *file})
		os.Exit(1)
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		appLogger.Error("Failed to parse seed file", err, map[string]interface{}{"file": *file})
		os.Exit(1)
	}

	if len(seed.Configs) == 0 {
		appLogger.Error("Seed file contains no configs", nil, map[string]interface{}{"file": *file})
		os.Exit(1)
	}

	store, err := storage.NewRedisStore(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword, cfg.RedisDB, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to storage", err, nil)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for identifier, record := range seed.Configs {
		if err := record.Rules.Validate(); err != nil {
			appLogger.Error("Invalid rule set in seed file", err, map[string]interface{}{
				"application_id": identifier,
			})
			os.Exit(1)
		}

		value, err := json.Marshal(record)
		if err != nil {
			appLogger.Error("Failed to serialize config record", err, map[string]interface{}{
				"application_id": identifier,
			})
			os.Exit(1)
		}

		key := resolver.ConfigKey(identifier)
		if err := store.Set(ctx, key, string(value), 0); err != nil {
			appLogger.Error("Failed to write config record", err, map[string]interface{}{
				"key": key,
			})
			os.Exit(1)
		}

		appLogger.Info("Seeded rate limit config", map[string]interface{}{
			"key":   key,
			"rules": len(record.Rules),
		})
	}

	appLogger.Info("Seeding completed", map[string]interface{}{
		"configs": len(seed.Configs),
	})
}
