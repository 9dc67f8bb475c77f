package resolver

import (
	"context"
	"encoding/json"
	"math"

	"github.com/pkg/errors"

	"github.com/JasonCorp84/rate-limiter/internal/domain"
)

// ConfigKeyPrefix é o prefixo das chaves de configuração no storage
const ConfigKeyPrefix = "rateLimitConfig:"

// DefaultIdentifier é o identificador sentinela da configuração de fallback
const DefaultIdentifier = "default"

// ConfigKey constrói a chave de configuração para um identificador
func ConfigKey(identifier string) string {
	return ConfigKeyPrefix + domain.NormalizeIdentifier(identifier)
}

// rawRule decodifica points e duration como números antes da checagem de
// integralidade, para rejeitar valores fracionários em vez de truncá-los
type rawRule struct {
	Points   float64 `json:"points"`
	Duration float64 `json:"duration"`
}

type rawRecord struct {
	Rules []rawRule `json:"rules"`
}

// Resolver implementa a interface domain.RuleResolver
type Resolver struct {
	store  domain.Store
	logger domain.Logger
}

// New cria uma nova instância do Resolver
func New(store domain.Store, logger domain.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger,
	}
}

// Resolve produz o conjunto de regras para um applicationId: lê a chave do
// identificador, cai na default se não existir e valida o resultado. Não há
// cache entre chamadas, cada decisão relê a configuração do storage
func (r *Resolver) Resolve(ctx context.Context, identifier string) (domain.RuleSet, error) {
	normalized := domain.NormalizeIdentifier(identifier)

	value, found, err := r.store.Get(ctx, ConfigKey(normalized))
	if err != nil {
		return nil, errors.Wrapf(domain.ErrConfigStore, "resolving config for %q: %v", normalized, err)
	}

	if !found {
		value, found, err = r.store.Get(ctx, ConfigKey(DefaultIdentifier))
		if err != nil {
			return nil, errors.Wrapf(domain.ErrConfigStore, "resolving default config: %v", err)
		}
		if !found {
			return nil, errors.Wrapf(domain.ErrConfigMissing, "no config for %q and no default config", normalized)
		}
	}

	rules, err := parseRules(value)
	if err != nil {
		r.logger.Warn("Rejected rate limit config", map[string]interface{}{
			"application_id": normalized,
			"reason":         err.Error(),
		})
		return nil, err
	}

	return rules, nil
}

// parseRules desserializa e valida um ConfigRecord
func parseRules(value string) (domain.RuleSet, error) {
	var record rawRecord
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		return nil, errors.Wrapf(domain.ErrConfigMalformed, "parsing config record: %v", err)
	}

	if len(record.Rules) == 0 {
		return nil, errors.Wrap(domain.ErrConfigInvalid, "rule set must contain at least one rule")
	}

	rules := make(domain.RuleSet, 0, len(record.Rules))
	for i, raw := range record.Rules {
		if raw.Points != math.Trunc(raw.Points) || raw.Duration != math.Trunc(raw.Duration) {
			return nil, errors.Wrapf(domain.ErrConfigInvalid, "rule %d: points and duration must be integers", i)
		}
		rules = append(rules, domain.RateLimitRule{
			Points:   int(raw.Points),
			Duration: int(raw.Duration),
		})
	}

	if err := rules.Validate(); err != nil {
		return nil, errors.Wrapf(domain.ErrConfigInvalid, "%v", err)
	}

	return rules, nil
}
