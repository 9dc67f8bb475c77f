package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/JasonCorp84/rate-limiter/internal/domain"
)

// RedisStore implementa a interface domain.Store usando Redis
type RedisStore struct {
	client redis.Cmdable
	logger domain.Logger
}

// NewRedisStore cria uma nova instância do RedisStore e testa a conexão
func NewRedisStore(host, port, password string, db int, logger domain.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       db,

		// Configurações de performance
		PoolSize:     20,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(domain.ErrStore, "failed to connect to Redis at %s:%s: %v", host, port, err)
	}

	logger.Info("Redis connection established", map[string]interface{}{
		"host": host,
		"port": port,
		"db":   db,
	})

	return &RedisStore{
		client: rdb,
		logger: logger,
	}, nil
}

// Get recupera um valor string; found indica se a chave existe
func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()

	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			r.logOperation("GET", key, true, time.Since(start).Seconds()*1000, nil)
			return "", false, nil
		}
		r.logOperation("GET", key, false, time.Since(start).Seconds()*1000, err)
		return "", false, errors.Wrapf(domain.ErrStore, "failed to get key %s: %v", key, err)
	}

	r.logOperation("GET", key, true, time.Since(start).Seconds()*1000, nil)
	return result, true, nil
}

// Set grava um valor string com TTL opcional (0 = sem expiração). Usado pelo
// seeder; o caminho de decisão nunca escreve configuração
func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	start := time.Now()

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logOperation("SET", key, false, time.Since(start).Seconds()*1000, err)
		return errors.Wrapf(domain.ErrStore, "failed to set key %s: %v", key, err)
	}

	r.logOperation("SET", key, true, time.Since(start).Seconds()*1000, nil)
	return nil
}

// EvalScript avalia um script Lua de forma atômica no Redis
func (r *RedisStore) EvalScript(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	start := time.Now()

	result, err := r.client.Eval(ctx, script, keys, args...).Result()
	if err != nil {
		r.logOperation("EVAL", fmt.Sprint(keys), false, time.Since(start).Seconds()*1000, err)
		return nil, errors.Wrapf(domain.ErrStore, "failed to evaluate script for keys %v: %v", keys, err)
	}

	r.logOperation("EVAL", fmt.Sprint(keys), true, time.Since(start).Seconds()*1000, nil)
	return result, nil
}

// Ping verifica se o Redis está acessível
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.Wrapf(domain.ErrStore, "Redis health check failed: %v", err)
	}
	return nil
}

// Close fecha a conexão com o Redis
func (r *RedisStore) Close() error {
	if client, ok := r.client.(*redis.Client); ok {
		if err := client.Close(); err != nil {
			r.logger.Error("Failed to close Redis connection", err, nil)
			return errors.Wrapf(domain.ErrStore, "failed to close Redis connection: %v", err)
		}
		r.logger.Info("Redis connection closed", nil)
	}
	return nil
}

// logOperation registra operações de storage
func (r *RedisStore) logOperation(operation, key string, success bool, latency float64, err error) {
	if r.logger == nil {
		return
	}
	if success {
		r.logger.Debug("Storage operation completed", map[string]interface{}{
			"operation": operation,
			"key":       key,
			"latency":   latency,
		})
	} else {
		r.logger.Error("Storage operation failed", err, map[string]interface{}{
			"operation": operation,
			"key":       key,
			"latency":   latency,
		})
	}
}
