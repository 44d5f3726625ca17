package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/coopfin/credito-engine/internal/domain"
	"github.com/coopfin/credito-engine/internal/repository"
	apperrors "github.com/coopfin/credito-engine/pkg/errors"
	"github.com/coopfin/credito-engine/pkg/money"
)

// allocatePayment walks the schedule oldest installment first and splits the
// amount in the fixed order mora -> interes -> capital. The installments are
// mutated in place; whatever survives the last installment comes back as the
// credit-balance leftover, so the abonos plus the leftover always equal the
// amount exactly.
func allocatePayment(creditoID, pagoID uuid.UUID, cuotas []*domain.Cuota, monto money.Money, fechaPago time.Time) ([]*domain.Abono, money.Money, error) {
	remaining := monto
	var abonos []*domain.Abono

	apply := func(numero int, componente string, valor money.Money) {
		abonos = append(abonos, &domain.Abono{
			ID:          uuid.New(),
			PagoID:      pagoID,
			CreditoID:   creditoID,
			NumeroCuota: numero,
			Componente:  componente,
			Valor:       valor,
		})
		remaining = remaining.SubNonNeg(valor)
	}

	for _, q := range cuotas {
		if remaining.IsZero() {
			break
		}
		if q.Saldada() && q.MoraPendiente().IsZero() {
			continue
		}

		var err error
		if v := money.Min(remaining, q.MoraPendiente()); v.IsPositive() {
			if q.MoraPagada, err = q.MoraPagada.Add(v); err != nil {
				return nil, money.Money{}, apperrors.WrapOverflow(err)
			}
			apply(q.NumeroCuota, domain.ComponenteMora, v)
		}
		if v := money.Min(remaining, q.InteresPendiente()); v.IsPositive() {
			if q.InteresPagado, err = q.InteresPagado.Add(v); err != nil {
				return nil, money.Money{}, apperrors.WrapOverflow(err)
			}
			apply(q.NumeroCuota, domain.ComponenteInteres, v)
		}
		if v := money.Min(remaining, q.CapitalPendiente()); v.IsPositive() {
			if q.CapitalPagado, err = q.CapitalPagado.Add(v); err != nil {
				return nil, money.Money{}, apperrors.WrapOverflow(err)
			}
			apply(q.NumeroCuota, domain.ComponenteCapital, v)
		}

		q.RefreshEstado(fechaPago)
		if q.Estado == domain.EstadoCuotaPagada && q.FechaPago == nil {
			fp := fechaPago
			q.FechaPago = &fp
		}
	}

	return abonos, remaining, nil
}

// recomputeBalances folds the installments back into the credit's
// materialized balance sheet. Saldo a favor is not derivable from the
// schedule and is managed by the caller.
func recomputeBalances(c *domain.Credito, cuotas []*domain.Cuota, asOf time.Time) {
	var capital, interes, mora int64
	for _, q := range cuotas {
		capital += q.CapitalPendiente().Minor()
		interes += q.InteresPendiente().Minor()
		mora += q.MoraPendiente().Minor()
	}
	c.SaldoCapital = money.FromMinor(capital)
	c.SaldoInteres = money.FromMinor(interes)
	c.SaldoMora = money.FromMinor(mora)
	c.DiasMora = domain.DiasMora(cuotas, asOf)
}

// maybeActivate moves a disbursed credit to activo once its first installment
// comes due.
func maybeActivate(c *domain.Credito, cuotas []*domain.Cuota, asOf time.Time) {
	if c.Estado != domain.EstadoDesembolsado || len(cuotas) == 0 {
		return
	}
	if !cuotas[0].FechaVencimiento.After(asOf) {
		c.Estado = domain.EstadoActivo
	}
}

// settleIfPaidOff closes the credit once nothing is owed.
func settleIfPaidOff(c *domain.Credito) {
	if c.SaldoCapital.IsZero() && c.SaldoInteres.IsZero() && c.SaldoMora.IsZero() &&
		domain.CanTransition(c.Estado, domain.EstadoCancelado) {
		c.Estado = domain.EstadoCancelado
	}
}

// replayHistory rebuilds the installment accumulators and the credit's
// balance sheet from the non-reversed payment history. skip excludes one
// payment, for a reversal whose flag has not been committed yet; pass
// uuid.Nil to replay everything. Accrued mora charges (valor_mora) are
// history and survive the replay untouched.
func replayHistory(ctx context.Context, pagoRepo repository.PagoRepository, credito *domain.Credito, cuotas []*domain.Cuota, skip uuid.UUID, asOf time.Time) error {
	byNumero := make(map[int]*domain.Cuota, len(cuotas))
	for _, q := range cuotas {
		q.CapitalPagado = money.Money{}
		q.InteresPagado = money.Money{}
		q.MoraPagada = money.Money{}
		q.FechaPago = nil
		byNumero[q.NumeroCuota] = q
	}

	pagos, err := pagoRepo.ListByCredito(ctx, credito.ID)
	if err != nil {
		return apperrors.WrapDatabaseError(err)
	}

	var saldoFavor int64
	var fechaUltimo *time.Time
	for _, pago := range pagos {
		if pago.Reversado || pago.ID == skip {
			continue
		}
		abonos, err := pagoRepo.ListAbonosByPago(ctx, pago.ID)
		if err != nil {
			return apperrors.WrapDatabaseError(err)
		}
		for _, a := range abonos {
			if a.Componente == domain.ComponenteCredito {
				saldoFavor += a.Valor.Minor()
				continue
			}
			q := byNumero[a.NumeroCuota]
			if q == nil {
				continue // superseded schedule version
			}
			switch a.Componente {
			case domain.ComponenteMora:
				q.MoraPagada, err = q.MoraPagada.Add(a.Valor)
			case domain.ComponenteInteres:
				q.InteresPagado, err = q.InteresPagado.Add(a.Valor)
			case domain.ComponenteCapital:
				q.CapitalPagado, err = q.CapitalPagado.Add(a.Valor)
			}
			if err != nil {
				return apperrors.WrapOverflow(err)
			}
		}
		if pago.MetodoPago == domain.MetodoSaldoFavor {
			saldoFavor -= pago.Monto.Minor()
		}
		for _, a := range abonos {
			if q := byNumero[a.NumeroCuota]; q != nil && q.Saldada() && q.FechaPago == nil {
				fp := pago.FechaPago
				q.FechaPago = &fp
			}
		}
		fp := pago.FechaPago
		fechaUltimo = &fp
	}
	if saldoFavor < 0 {
		saldoFavor = 0
	}

	for _, q := range cuotas {
		q.RefreshEstado(asOf)
	}
	recomputeBalances(credito, cuotas, asOf)
	credito.SaldoFavor = money.FromMinor(saldoFavor)
	credito.FechaUltimoPago = fechaUltimo
	return nil
}

// fetchCredito loads a credit, translating the missing row into the business
// not-found error.
func fetchCredito(ctx context.Context, repo repository.CreditoRepository, id uuid.UUID) (*domain.Credito, error) {
	credito, err := repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.WrapCreditNotFound(id.String())
	}
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	return credito, nil
}

// wrapDB classifies repository errors, leaving already-classified business
// errors alone.
func wrapDB(err error) error {
	var be *apperrors.BusinessError
	if errors.As(err, &be) {
		return be
	}
	return apperrors.WrapDatabaseError(err)
}

// isIdempotencyConflict reports whether a write lost the race on the pagos
// idempotency key unique index: another process committed the same key first,
// so the prior receipt is the answer.
func isIdempotencyConflict(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) &&
		pqErr.Code == "23505" &&
		pqErr.Constraint == "idx_pagos_idempotency"
}

// invalidateCredito drops the cached read projection. Cache errors are logged
// and swallowed; the database stays authoritative.
func invalidateCredito(ctx context.Context, rdb *redis.Client, id uuid.UUID) {
	if rdb == nil {
		return
	}
	if err := rdb.Del(ctx, creditoCacheKey(id)).Err(); err != nil {
		log.Printf("cache: invalidate credito %s: %v", id, err)
	}
}

func creditoCacheKey(id uuid.UUID) string {
	return "credito:" + id.String()
}

func idempotencyCacheKey(key string) string {
	return "pago:idem:" + key
}
