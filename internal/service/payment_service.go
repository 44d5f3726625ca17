package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/coopfin/credito-engine/internal/config"
	"github.com/coopfin/credito-engine/internal/domain"
	"github.com/coopfin/credito-engine/internal/repository"
	apperrors "github.com/coopfin/credito-engine/pkg/errors"
	"github.com/coopfin/credito-engine/pkg/money"
	"github.com/coopfin/credito-engine/pkg/utils"
)

const idempotencyCacheTTL = 24 * time.Hour

// PaymentService applies payments to credits. Payments are immutable events:
// a correction adds a reversal and replays the history, it never edits rows.
type PaymentService struct {
	CreditoRepo repository.CreditoRepository
	PagoRepo    repository.PagoRepository
	redis       *redis.Client
	config      *config.Config
	locks       *CreditLocks
}

func NewPaymentService(
	creditoRepo repository.CreditoRepository,
	pagoRepo repository.PagoRepository,
	redis *redis.Client,
	config *config.Config,
	locks *CreditLocks,
) *PaymentService {
	return &PaymentService{
		CreditoRepo: creditoRepo,
		PagoRepo:    pagoRepo,
		redis:       redis,
		config:      config,
		locks:       locks,
	}
}

// RegistrarPago records a payment and allocates it across the schedule in the
// fixed order mora -> interes -> capital, oldest installment first. A repeated
// idempotency key returns the original receipt instead of double-applying.
func (s *PaymentService) RegistrarPago(ctx context.Context, creditoID uuid.UUID, req *domain.PagoRequest, actor, idempotencyKey string) (*domain.PagoResponse, error) {
	unlock := s.locks.Lock(creditoID.String())
	defer unlock()

	if idempotencyKey != "" {
		if prior, err := s.findPrior(ctx, idempotencyKey); prior != nil || err != nil {
			return prior, err
		}
	}

	fecha, err := utils.ParseDate(req.FechaPago)
	if err != nil {
		return nil, apperrors.WrapInvalidLoanTerms("fecha_pago", "must be a date in format "+utils.DateLayout)
	}

	scale := s.config.Business.CurrencyScale
	monto, err := money.FromDecimal(req.Monto, scale)
	if err != nil {
		return nil, apperrors.WrapInvalidLoanTerms("monto", err.Error())
	}
	if !monto.IsPositive() {
		return nil, apperrors.WrapInvalidLoanTerms("monto", "must be greater than zero")
	}

	credito, err := fetchCredito(ctx, s.CreditoRepo, creditoID)
	if err != nil {
		return nil, err
	}
	if !domain.EstadoAceptaPagos(credito.Estado) {
		return nil, apperrors.WrapInvalidStateTransition(credito.Estado, "registrar_pago")
	}
	cuotas, err := s.CreditoRepo.GetSchedule(ctx, creditoID, credito.ScheduleVersion)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}

	// Bring arrears up to date before splitting the money, so the mora the
	// member pays is the mora owed on the payment date.
	for _, q := range cuotas {
		if err := domain.AccrueMora(q, s.config.Business.MoraDailyRateBp, fecha); err != nil {
			return nil, err
		}
	}
	maybeActivate(credito, cuotas, fecha)

	pagoID := uuid.New()
	abonos, sobrante, err := allocatePayment(creditoID, pagoID, cuotas, monto, fecha)
	if err != nil {
		return nil, err
	}
	if sobrante.IsPositive() {
		abonos = append(abonos, &domain.Abono{
			ID:         uuid.New(),
			PagoID:     pagoID,
			CreditoID:  creditoID,
			Componente: domain.ComponenteCredito,
			Valor:      sobrante,
		})
		if credito.SaldoFavor, err = credito.SaldoFavor.Add(sobrante); err != nil {
			return nil, apperrors.WrapOverflow(err)
		}
	}

	numeroRecibo := req.NumeroRecibo
	if numeroRecibo == "" {
		seq, err := s.PagoRepo.NextNumeroRecibo(ctx, fecha)
		if err != nil {
			return nil, apperrors.WrapDatabaseError(err)
		}
		numeroRecibo = utils.ConsecutiveNumber("REC", fecha, seq)
	}

	pago := &domain.Pago{
		ID:             pagoID,
		CreditoID:      creditoID,
		NumeroRecibo:   numeroRecibo,
		Monto:          monto,
		FechaPago:      fecha,
		MetodoPago:     req.MetodoPago,
		IdempotencyKey: idempotencyKey,
		Observaciones:  req.Observaciones,
		RegistradoPor:  actor,
	}

	recomputeBalances(credito, cuotas, fecha)
	credito.FechaUltimoPago = &fecha
	settleIfPaidOff(credito)

	if err := s.PagoRepo.ApplyPago(ctx, pago, abonos, cuotas, credito); err != nil {
		// Another process committed the same idempotency key between our
		// lookup and this write; hand back its receipt.
		if isIdempotencyConflict(err) {
			return s.findPrior(ctx, idempotencyKey)
		}
		return nil, wrapDB(err)
	}
	s.cacheIdempotency(ctx, idempotencyKey, pagoID)
	invalidateCredito(ctx, s.redis, creditoID)

	return domain.NewPagoResponse(pago, abonos, scale), nil
}

// Reversar undoes a payment by recording the reversal event and replaying the
// remaining history. Reversing the payoff payment reopens the credit.
func (s *PaymentService) Reversar(ctx context.Context, creditoID, pagoID uuid.UUID, req *domain.ReversarRequest, actor string) (*domain.PagoResponse, error) {
	unlock := s.locks.Lock(creditoID.String())
	defer unlock()

	pago, err := s.PagoRepo.GetByID(ctx, pagoID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.WrapPaymentNotFound(pagoID.String())
	}
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	if pago.CreditoID != creditoID {
		return nil, apperrors.WrapPaymentNotFound(pagoID.String())
	}
	if pago.Reversado {
		return nil, apperrors.WrapPaymentReversed(pagoID.String())
	}

	credito, err := fetchCredito(ctx, s.CreditoRepo, creditoID)
	if err != nil {
		return nil, err
	}
	cuotas, err := s.CreditoRepo.GetSchedule(ctx, creditoID, credito.ScheduleVersion)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}

	if err := replayHistory(ctx, s.PagoRepo, credito, cuotas, pago.ID, utils.Truncate(time.Now())); err != nil {
		return nil, err
	}
	if credito.Estado == domain.EstadoCancelado && credito.SaldoCapital.IsPositive() {
		credito.Estado = domain.EstadoActivo
	}

	reversion := &domain.Reversion{
		ID:            uuid.New(),
		PagoID:        pago.ID,
		Motivo:        req.Motivo,
		RegistradoPor: actor,
	}
	if err := s.PagoRepo.Reverse(ctx, reversion, pago, cuotas, credito); err != nil {
		return nil, wrapDB(err)
	}
	pago.Reversado = true
	invalidateCredito(ctx, s.redis, creditoID)

	abonos, err := s.PagoRepo.ListAbonosByPago(ctx, pago.ID)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	return domain.NewPagoResponse(pago, abonos, s.config.Business.CurrencyScale), nil
}

// ListPagos returns a credit's payment history with allocation breakdowns.
func (s *PaymentService) ListPagos(ctx context.Context, creditoID uuid.UUID) ([]*domain.PagoResponse, error) {
	if _, err := fetchCredito(ctx, s.CreditoRepo, creditoID); err != nil {
		return nil, err
	}
	pagos, err := s.PagoRepo.ListByCredito(ctx, creditoID)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	scale := s.config.Business.CurrencyScale
	out := make([]*domain.PagoResponse, 0, len(pagos))
	for _, pago := range pagos {
		abonos, err := s.PagoRepo.ListAbonosByPago(ctx, pago.ID)
		if err != nil {
			return nil, apperrors.WrapDatabaseError(err)
		}
		out = append(out, domain.NewPagoResponse(pago, abonos, scale))
	}
	return out, nil
}

// AplicarSaldoFavor drains an account's credit balance into installments that
// have come due, as a system payment that is auditable and reversible like
// any other. Returns nil without error when there is nothing to apply.
func (s *PaymentService) AplicarSaldoFavor(ctx context.Context, creditoID uuid.UUID, asOf time.Time) (*domain.PagoResponse, error) {
	unlock := s.locks.Lock(creditoID.String())
	defer unlock()

	credito, err := fetchCredito(ctx, s.CreditoRepo, creditoID)
	if err != nil {
		return nil, err
	}
	if !domain.EstadoAceptaPagos(credito.Estado) || !credito.SaldoFavor.IsPositive() {
		return nil, nil
	}
	cuotas, err := s.CreditoRepo.GetSchedule(ctx, creditoID, credito.ScheduleVersion)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	for _, q := range cuotas {
		if err := domain.AccrueMora(q, s.config.Business.MoraDailyRateBp, asOf); err != nil {
			return nil, err
		}
	}

	var due int64
	for _, q := range cuotas {
		if q.FechaVencimiento.After(asOf) {
			continue
		}
		due += q.MoraPendiente().Minor() + q.InteresPendiente().Minor() + q.CapitalPendiente().Minor()
	}
	monto := money.Min(credito.SaldoFavor, money.FromMinor(due))
	if !monto.IsPositive() {
		return nil, nil
	}

	// One application per credit per day; reruns of the job are no-ops.
	idempotencyKey := fmt.Sprintf("saldo_favor:%s:%s", creditoID, utils.FormatDate(asOf))
	if prior, err := s.findPrior(ctx, idempotencyKey); prior != nil || err != nil {
		return prior, err
	}

	pagoID := uuid.New()
	abonos, sobrante, err := allocatePayment(creditoID, pagoID, cuotas, monto, asOf)
	if err != nil {
		return nil, err
	}
	if sobrante.IsPositive() {
		// Cannot happen while monto is capped by what is due; reconcile
		// rather than lose money if it ever does.
		abonos = append(abonos, &domain.Abono{
			ID:         uuid.New(),
			PagoID:     pagoID,
			CreditoID:  creditoID,
			Componente: domain.ComponenteCredito,
			Valor:      sobrante,
		})
	}
	credito.SaldoFavor = credito.SaldoFavor.SubNonNeg(monto.SubNonNeg(sobrante))

	seq, err := s.PagoRepo.NextNumeroRecibo(ctx, asOf)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	pago := &domain.Pago{
		ID:             pagoID,
		CreditoID:      creditoID,
		NumeroRecibo:   utils.ConsecutiveNumber("REC", asOf, seq),
		Monto:          monto,
		FechaPago:      asOf,
		MetodoPago:     domain.MetodoSaldoFavor,
		IdempotencyKey: idempotencyKey,
		RegistradoPor:  "sistema",
	}

	maybeActivate(credito, cuotas, asOf)
	recomputeBalances(credito, cuotas, asOf)
	credito.FechaUltimoPago = &pago.FechaPago
	settleIfPaidOff(credito)

	if err := s.PagoRepo.ApplyPago(ctx, pago, abonos, cuotas, credito); err != nil {
		if isIdempotencyConflict(err) {
			return s.findPrior(ctx, idempotencyKey)
		}
		return nil, wrapDB(err)
	}
	s.cacheIdempotency(ctx, idempotencyKey, pagoID)
	invalidateCredito(ctx, s.redis, creditoID)

	return domain.NewPagoResponse(pago, abonos, s.config.Business.CurrencyScale), nil
}

// findPrior looks up a previously recorded payment under the idempotency key,
// first in cache, then in storage. Returns (nil, nil) when the key is new.
func (s *PaymentService) findPrior(ctx context.Context, key string) (*domain.PagoResponse, error) {
	if s.redis != nil {
		if raw, err := s.redis.Get(ctx, idempotencyCacheKey(key)).Result(); err == nil {
			if pagoID, perr := uuid.Parse(raw); perr == nil {
				if resp, err := s.loadPago(ctx, pagoID); err == nil {
					return resp, nil
				}
			}
		}
	}

	pago, err := s.PagoRepo.GetByIdempotencyKey(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	return s.loadPago(ctx, pago.ID)
}

func (s *PaymentService) loadPago(ctx context.Context, pagoID uuid.UUID) (*domain.PagoResponse, error) {
	pago, err := s.PagoRepo.GetByID(ctx, pagoID)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	abonos, err := s.PagoRepo.ListAbonosByPago(ctx, pagoID)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	return domain.NewPagoResponse(pago, abonos, s.config.Business.CurrencyScale), nil
}

func (s *PaymentService) cacheIdempotency(ctx context.Context, key string, pagoID uuid.UUID) {
	if key == "" || s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, idempotencyCacheKey(key), pagoID.String(), idempotencyCacheTTL).Err(); err != nil {
		log.Printf("cache: store idempotency key: %v", err)
	}
}
