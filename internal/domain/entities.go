package domain

import (
	"fmt"
	"strings"
)

// UnknownIdentifier é o identificador usado quando a rota não informa um
// applicationId
const UnknownIdentifier = "unknown"

// RateLimitRule define uma regra de janela deslizante: no máximo Points
// admissões dentro de uma janela de Duration segundos
type RateLimitRule struct {
	Points   int `json:"points"`
	Duration int `json:"duration"` // janela em segundos
}

// Validate verifica se a regra possui valores válidos
func (r RateLimitRule) Validate() error {
	if r.Points <= 0 {
		return fmt.Errorf("points must be greater than 0, got %d", r.Points)
	}
	if r.Duration <= 0 {
		return fmt.Errorf("duration must be greater than 0, got %d", r.Duration)
	}
	return nil
}

// RuleSet é a sequência ordenada de regras aplicadas conjuntamente a cada
// requisição. A posição de cada regra é o índice da sua chave de log de
// janela (ver accountant.WindowKey) e a ordem em que ela entra na seleção da
// regra mais restritiva, inclusive nos desempates
type RuleSet []RateLimitRule

// Validate verifica se o conjunto de regras é válido
func (rs RuleSet) Validate() error {
	if len(rs) == 0 {
		return fmt.Errorf("rule set must contain at least one rule")
	}
	for i, rule := range rs {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}

// ConfigRecord representa o valor serializado armazenado nas chaves
// rateLimitConfig:<id>
type ConfigRecord struct {
	Rules RuleSet `json:"rules"`
}

// Decision representa o resultado da avaliação de todas as regras para uma
// requisição, já agregado sob a regra mais restritiva
type Decision struct {
	Allowed       bool
	RuleIndex     int
	Limit         int
	Remaining     int
	ResetAt       int64 // epoch em milissegundos
	RetryAfterSec int
}

// NormalizeIdentifier normaliza o applicationId extraído da rota: minúsculas,
// sem espaços ao redor, vazio vira "unknown"
func NormalizeIdentifier(identifier string) string {
	normalized := strings.ToLower(strings.TrimSpace(identifier))
	if normalized == "" {
		return UnknownIdentifier
	}
	return normalized
}

// BuildClientKey constrói a chave que particiona a contabilidade: endereço
// remoto observado, dois pontos e o identificador normalizado
func BuildClientKey(remoteAddr, identifier string) string {
	return remoteAddr + ":" + NormalizeIdentifier(identifier)
}
