package domain

import "github.com/pkg/errors"

// Erros sentinela do rate limiter. O middleware discrimina cada um com
// errors.Is para mapear o status HTTP correto.
var (
	// ErrConfigMissing indica que nem a configuração do identificador nem a
	// default existem no storage. Erro de implantação do operador (HTTP 500)
	ErrConfigMissing = errors.New("rate limit config not found")

	// ErrConfigMalformed indica que a configuração existe mas não pôde ser
	// desserializada (HTTP 503)
	ErrConfigMalformed = errors.New("rate limit config malformed")

	// ErrConfigInvalid indica que a configuração foi desserializada mas viola
	// as regras de validade (HTTP 503)
	ErrConfigInvalid = errors.New("rate limit config invalid")

	// ErrConfigStore indica falha do storage durante a resolução de
	// configuração (HTTP 503, corpo de erro de configuração)
	ErrConfigStore = errors.New("rate limit config store failure")

	// ErrStore indica falha de transporte, timeout ou protocolo do storage
	// durante a contabilidade (HTTP 503, corpo de erro de backend)
	ErrStore = errors.New("rate limit store failure")
)
