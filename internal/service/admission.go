package service

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/JasonCorp84/rate-limiter/internal/domain"
)

// AdmissionService implementa a avaliação multi-regra e a agregação sob a
// regra mais restritiva. Separado do middleware para manter a lógica de
// negócio testável sem HTTP
type AdmissionService struct {
	resolver   domain.RuleResolver
	accountant domain.WindowAccountant
	logger     domain.Logger
	now        func() time.Time
}

// New cria uma nova instância do AdmissionService
func New(resolver domain.RuleResolver, accountant domain.WindowAccountant, logger domain.Logger, now func() time.Time) *AdmissionService {
	if now == nil {
		now = time.Now
	}
	return &AdmissionService{
		resolver:   resolver,
		accountant: accountant,
		logger:     logger,
		now:        now,
	}
}

// CheckLimit avalia todas as regras configuradas para o applicationId contra
// a chave de cliente derivada do endereço remoto. O timestamp é capturado uma
// única vez e reutilizado por todas as regras.
//
// Seleção da regra mais restritiva: as regras são comparadas em ordem contra
// a escolha corrente. Uma regra que rejeita assume quando seu tempo até
// liberar capacidade é maior que o resetSec corrente, que para uma regra que
// admitiu é a duração inteira dela; uma regra que admite assume quando sua
// cota restante é menor que a corrente, o que não acontece depois de uma
// rejeição (a cota corrente passa a 0). Empates ficam com o menor índice.
// Assim uma requisição bloqueada pode levar os headers de uma regra anterior
// que admitiu, se a duração dela superar o reset da regra que rejeitou
func (s *AdmissionService) CheckLimit(ctx context.Context, remoteAddr, identifier string) (*domain.Decision, error) {
	now := s.now().UnixMilli()
	clientKey := domain.BuildClientKey(remoteAddr, identifier)

	rules, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	blocked := false
	strictestIndex := 0
	strictestRemaining := math.MaxInt
	strictestResetSec := 0

	for i, rule := range rules {
		count, oldest, err := s.accountant.Evaluate(ctx, i, clientKey, rule, now)
		if err != nil {
			return nil, errors.WithMessagef(err, "evaluating rule %d for %s", i, clientKey)
		}

		if count >= int64(rule.Points) {
			// regra rejeita: count é a cardinalidade retida, o candidato não
			// foi inserido
			blocked = true

			resetSec := resetSeconds(oldest, rule.Duration, now)
			if resetSec > strictestResetSec {
				strictestResetSec = resetSec
				strictestIndex = i
			}
			strictestRemaining = 0
			continue
		}

		// regra admite: count é a cardinalidade anterior à inserção
		remaining := rule.Points - int(count) - 1
		if remaining < strictestRemaining {
			strictestRemaining = remaining
			strictestIndex = i
			strictestResetSec = rule.Duration
		}
	}

	remaining := strictestRemaining
	if remaining < 0 {
		remaining = 0
	}

	decision := &domain.Decision{
		Allowed:       !blocked,
		RuleIndex:     strictestIndex,
		Limit:         rules[strictestIndex].Points,
		Remaining:     remaining,
		ResetAt:       now + int64(strictestResetSec)*1000,
		RetryAfterSec: strictestResetSec,
	}

	if blocked {
		s.logger.Info("Request rate limited", map[string]interface{}{
			"client_key":  clientKey,
			"rule_index":  strictestIndex,
			"limit":       decision.Limit,
			"retry_after": decision.RetryAfterSec,
		})
	} else {
		s.logger.Debug("Request admitted", map[string]interface{}{
			"client_key": clientKey,
			"rule_index": strictestIndex,
			"limit":      decision.Limit,
			"remaining":  decision.Remaining,
		})
	}

	return decision, nil
}

// resetSeconds calcula em quantos segundos a entrada mais antiga retida sai
// da janela, arredondando para cima
func resetSeconds(oldest int64, durationSec int, now int64) int {
	delta := oldest + int64(durationSec)*1000 - now
	if delta <= 0 {
		return 0
	}
	return int((delta + 999) / 1000)
}
