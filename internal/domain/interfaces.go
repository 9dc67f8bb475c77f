package domain

import "context"

// Store define o contrato mínimo que o rate limiter consome do storage
// compartilhado. É o único componente que conhece o dialeto do Redis
type Store interface {
	// Get recupera um valor string; found indica se a chave existe
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// EvalScript avalia um script server-side de forma atômica e retorna o
	// resultado nativo do script
	EvalScript(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)

	// Ping verifica se o storage está acessível
	Ping(ctx context.Context) error

	// Close fecha a conexão com o storage
	Close() error
}

// RuleResolver produz o conjunto ordenado de regras a aplicar para um
// applicationId, consultando a chave do identificador com fallback na default
type RuleResolver interface {
	Resolve(ctx context.Context, identifier string) (RuleSet, error)
}

// WindowAccountant executa a contabilidade de janela deslizante para um par
// (índice de regra, chave de cliente). Retorna a cardinalidade observada
// ANTES da admissão do candidato e o timestamp mais antigo retido no log
type WindowAccountant interface {
	Evaluate(ctx context.Context, ruleIndex int, clientKey string, rule RateLimitRule, now int64) (count int64, oldest int64, err error)
}

// AdmissionService avalia todas as regras configuradas para uma requisição e
// agrega o resultado sob a regra mais restritiva
type AdmissionService interface {
	CheckLimit(ctx context.Context, remoteAddr, identifier string) (*Decision, error)
}

// Logger define a interface para logging estruturado
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
	WithContext(ctx context.Context) Logger
}
