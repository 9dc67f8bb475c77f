package accountant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/JasonCorp84/rate-limiter/internal/domain"
)

// WindowKeyPrefix é o prefixo das chaves de log de janela no storage
const WindowKeyPrefix = "swl:"

// slidingWindowScript executa poda, contagem, inserção condicional e expiração
// como uma unidade atômica no Redis. A cardinalidade retornada é a de ANTES da
// inserção do candidato; oldest é o menor score retido após a execução, ou o
// próprio now se o conjunto ficou vazio.
//
// Decompor em comandos independentes quebraria a correção com múltiplas
// réplicas: admissões concorrentes poderiam exceder points.
const slidingWindowScript = `
local key = KEYS[1]
local now = ARGV[1]
local windowStart = ARGV[2]
local points = tonumber(ARGV[3])
local member = ARGV[4]
local expireSec = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < points then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, expireSec)
end

local oldest = tonumber(now)
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
    oldest = tonumber(first[2])
end

return {count, oldest}
`

// WindowKey constrói a chave do log de janela para um par (índice de regra,
// chave de cliente). A troca a quente de uma configuração que reordena regras
// deixa os logs antigos órfãos sob os índices anteriores até expirarem no TTL
func WindowKey(ruleIndex int, clientKey string) string {
	return fmt.Sprintf("%s%d:%s", WindowKeyPrefix, ruleIndex, clientKey)
}

// SlidingWindowAccountant implementa a interface domain.WindowAccountant
type SlidingWindowAccountant struct {
	store  domain.Store
	logger domain.Logger
}

// New cria uma nova instância do SlidingWindowAccountant
func New(store domain.Store, logger domain.Logger) *SlidingWindowAccountant {
	return &SlidingWindowAccountant{
		store:  store,
		logger: logger,
	}
}

// Evaluate executa o script de janela deslizante para um par (índice de
// regra, chave de cliente) com o timestamp now em milissegundos
func (a *SlidingWindowAccountant) Evaluate(ctx context.Context, ruleIndex int, clientKey string, rule domain.RateLimitRule, now int64) (int64, int64, error) {
	key := WindowKey(ruleIndex, clientKey)

	// o member precisa ser único entre inserções concorrentes que compartilham
	// o mesmo now
	member := fmt.Sprintf("%d:%s", now, uuid.New().String())

	// aritmética de timestamps fica no cliente: scores em milissegundos não
	// sobrevivem à formatação de números do Lua dentro do script
	windowStart := now - int64(rule.Duration)*1000
	expireSec := rule.Duration + 1

	result, err := a.store.EvalScript(ctx, slidingWindowScript, []string{key},
		now, windowStart, rule.Points, member, expireSec)
	if err != nil {
		return 0, 0, err
	}

	count, oldest, err := parseScriptResult(result)
	if err != nil {
		return 0, 0, errors.Wrapf(domain.ErrStore, "window script for key %s: %v", key, err)
	}

	a.logger.Debug("Window evaluated", map[string]interface{}{
		"key":    key,
		"count":  count,
		"oldest": oldest,
		"points": rule.Points,
	})

	return count, oldest, nil
}

// parseScriptResult decodifica o par {count, oldest} retornado pelo script
func parseScriptResult(result interface{}) (int64, int64, error) {
	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected script result %v", result)
	}

	count, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected count in script result %v", result)
	}

	oldest, ok := values[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected oldest timestamp in script result %v", result)
	}

	return count, oldest, nil
}
