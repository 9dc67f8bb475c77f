package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JasonCorp84/rate-limiter/internal/accountant"
	"github.com/JasonCorp84/rate-limiter/internal/config"
	"github.com/JasonCorp84/rate-limiter/internal/handler"
	"github.com/JasonCorp84/rate-limiter/internal/logger"
	"github.com/JasonCorp84/rate-limiter/internal/resolver"
	"github.com/JasonCorp84/rate-limiter/internal/service"
	"github.com/JasonCorp84/rate-limiter/internal/storage"
)

func main() {
	// Carregar configurações
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Inicializar logger
	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)
	appLogger.Info("Starting Rate Limiter API", map[string]interface{}{
		"log_level": cfg.LogLevel,
		"port":      cfg.ServerPort,
	})

	// Inicializar storage
	store, err := storage.NewRedisStore(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword, cfg.RedisDB, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to storage", err, nil)
		os.Exit(1)
	}
	defer store.Close()

	// Inicializar resolver, accountant e service
	ruleResolver := resolver.New(store, appLogger)
	windowAccountant := accountant.New(store, appLogger)
	admissionService := service.New(ruleResolver, windowAccountant, appLogger, time.Now)

	// Inicializar handlers
	handlers := handler.NewHandlers(admissionService, store, appLogger)

	// Configurar Gin
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Middleware de logging customizado
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.TimeStamp.Format("2006/01/02 - 15:04:05"),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))

	// Configurar rotas
	handlers.SetupRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Iniciar servidor em goroutine
	go func() {
		appLogger.Info("Starting HTTP server", map[string]interface{}{
			"addr": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Failed to start server", err, nil)
			os.Exit(1)
		}
	}()

	// Aguardar sinais de interrupção
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	appLogger.Info("🚀 Rate Limiter API is running!", map[string]interface{}{
		"port": cfg.ServerPort,
		"endpoints": []string{
			"GET /health",
			"GET /metrics",
			"GET /test/:applicationId (rate limited)",
		},
	})

	<-quit
	appLogger.Info("Shutting down server...", nil)

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", err, nil)
		os.Exit(1)
	}

	appLogger.Info("Server stopped gracefully", nil)
}
