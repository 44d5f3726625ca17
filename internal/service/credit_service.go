package service

import (
	"context"
	"encoding/json"
	"log"
	"strings"
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

const creditoCacheTTL = 5 * time.Minute

// CreditService owns the credit lifecycle: request, study, approval,
// rejection, disbursement, write-off, and the audit replay that rebuilds
// balances from the payment history.
type CreditService struct {
	CreditoRepo repository.CreditoRepository
	PagoRepo    repository.PagoRepository
	redis       *redis.Client
	config      *config.Config
	locks       *CreditLocks
}

func NewCreditService(
	creditoRepo repository.CreditoRepository,
	pagoRepo repository.PagoRepository,
	redis *redis.Client,
	config *config.Config,
	locks *CreditLocks,
) *CreditService {
	return &CreditService{
		CreditoRepo: creditoRepo,
		PagoRepo:    pagoRepo,
		redis:       redis,
		config:      config,
		locks:       locks,
	}
}

// Solicitar registers a new credit request in state solicitado.
func (s *CreditService) Solicitar(ctx context.Context, req *domain.SolicitarRequest, actor string) (*domain.CreditoResponse, error) {
	fecha, err := utils.ParseDate(req.FechaSolicitud)
	if err != nil {
		return nil, apperrors.WrapInvalidLoanTerms("fecha_solicitud", "must be a date in format "+utils.DateLayout)
	}

	scale := s.config.Business.CurrencyScale
	monto, err := money.FromDecimal(req.MontoSolicitado, scale)
	if err != nil {
		return nil, apperrors.WrapInvalidLoanTerms("monto_solicitado", err.Error())
	}
	if !monto.IsPositive() {
		return nil, apperrors.WrapInvalidLoanTerms("monto_solicitado", "must be greater than zero")
	}

	bp, err := domain.TasaToBp(req.TasaInteres)
	if err != nil {
		return nil, err
	}
	if bp < 0 {
		return nil, apperrors.WrapInvalidLoanTerms("tasa_interes", "must not be negative")
	}

	modalidad := req.ModalidadPago
	if modalidad == "" {
		modalidad = domain.ModalidadMensual
	}
	tipoCuota := req.TipoCuota
	if tipoCuota == "" {
		tipoCuota = domain.CuotaFija
	}

	seq, err := s.CreditoRepo.NextConsecutivo(ctx, fecha)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}

	credito := &domain.Credito{
		ID:              uuid.New(),
		NumeroCredito:   utils.ConsecutiveNumber("CR", fecha, seq),
		AsociadoID:      req.AsociadoID,
		TipoCredito:     req.TipoCredito,
		MontoSolicitado: monto,
		TasaMensualBp:   bp,
		PlazoMeses:      req.PlazoMeses,
		ModalidadPago:   modalidad,
		TipoCuota:       tipoCuota,
		Destino:         req.Destino,
		Garantia:        req.Garantia,
		Estado:          domain.EstadoSolicitado,
		Observaciones:   req.Observaciones,
		FechaSolicitud:  fecha,
		SolicitadoPor:   actor,
		Version:         1,
	}

	if err := s.CreditoRepo.Create(ctx, credito); err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	return domain.NewCreditoResponse(credito, scale), nil
}

// Estudiar moves a request into analysis.
func (s *CreditService) Estudiar(ctx context.Context, id uuid.UUID, actor string) (*domain.CreditoResponse, error) {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	credito, err := fetchCredito(ctx, s.CreditoRepo, id)
	if err != nil {
		return nil, err
	}
	if err := credito.Transition(domain.EstadoEnEstudio, "estudiar"); err != nil {
		return nil, err
	}
	if err := s.CreditoRepo.Update(ctx, credito); err != nil {
		return nil, wrapDB(err)
	}
	invalidateCredito(ctx, s.redis, id)
	return domain.NewCreditoResponse(credito, s.config.Business.CurrencyScale), nil
}

// Aprobar approves a credit and freezes its financial terms: the installment
// value and the interest totals are computed here, from the approved amount,
// and never recomputed behind the member's back.
func (s *CreditService) Aprobar(ctx context.Context, id uuid.UUID, req *domain.AprobarRequest, actor string) (*domain.CreditoResponse, error) {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	credito, err := fetchCredito(ctx, s.CreditoRepo, id)
	if err != nil {
		return nil, err
	}

	scale := s.config.Business.CurrencyScale
	monto, err := money.FromDecimal(req.MontoAprobado, scale)
	if err != nil {
		return nil, apperrors.WrapInvalidLoanTerms("monto_aprobado", err.Error())
	}
	if !monto.IsPositive() {
		return nil, apperrors.WrapInvalidLoanTerms("monto_aprobado", "must be greater than zero")
	}
	ceiling, err := credito.MontoSolicitado.MulRate(s.config.Business.ApprovalCeilingBp, 10000)
	if err != nil {
		return nil, apperrors.WrapOverflow(err)
	}
	if ceiling.LessThan(monto) {
		return nil, apperrors.WrapInvalidLoanTerms("monto_aprobado", "exceeds the approval ceiling over monto_solicitado")
	}

	if err := credito.Transition(domain.EstadoAprobado, "aprobar"); err != nil {
		return nil, err
	}

	hoy := utils.Truncate(time.Now())
	preview, err := domain.GenerateSchedule(domain.ScheduleParams{
		CreditoID:       credito.ID,
		Principal:       monto,
		TasaMensualBp:   credito.TasaMensualBp,
		PlazoMeses:      credito.PlazoMeses,
		Modalidad:       credito.ModalidadPago,
		TipoCuota:       credito.TipoCuota,
		FechaDesembolso: hoy,
	})
	if err != nil {
		return nil, err
	}
	interes, total, err := domain.ScheduleTotals(preview)
	if err != nil {
		return nil, err
	}

	credito.MontoAprobado = monto
	credito.ValorCuota = preview[0].ValorCuota
	credito.TotalIntereses = interes
	credito.TotalAPagar = total
	credito.FechaAprobacion = &hoy
	credito.AprobadoPor = actor
	if req.Observaciones != "" {
		credito.Observaciones = req.Observaciones
	}

	if err := s.CreditoRepo.Update(ctx, credito); err != nil {
		return nil, wrapDB(err)
	}
	invalidateCredito(ctx, s.redis, id)
	return domain.NewCreditoResponse(credito, scale), nil
}

// Rechazar rejects a credit request. The reason is mandatory; a rejection
// without one is not auditable.
func (s *CreditService) Rechazar(ctx context.Context, id uuid.UUID, req *domain.RechazarRequest, actor string) (*domain.CreditoResponse, error) {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	motivo := strings.TrimSpace(req.MotivoRechazo)
	if motivo == "" {
		return nil, apperrors.WrapMissingRejectionReason()
	}

	credito, err := fetchCredito(ctx, s.CreditoRepo, id)
	if err != nil {
		return nil, err
	}
	if err := credito.Transition(domain.EstadoRechazado, "rechazar"); err != nil {
		return nil, err
	}
	credito.MotivoRechazo = motivo

	if err := s.CreditoRepo.Update(ctx, credito); err != nil {
		return nil, wrapDB(err)
	}
	invalidateCredito(ctx, s.redis, id)
	return domain.NewCreditoResponse(credito, s.config.Business.CurrencyScale), nil
}

// Desembolsar disburses an approved credit: the amortization schedule is
// generated, verified against the principal and committed atomically with the
// state transition. A schedule that does not reconcile blocks the whole
// operation.
func (s *CreditService) Desembolsar(ctx context.Context, id uuid.UUID, req *domain.DesembolsarRequest, actor string) (*domain.CreditoResponse, error) {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	credito, err := fetchCredito(ctx, s.CreditoRepo, id)
	if err != nil {
		return nil, err
	}

	fecha, err := utils.ParseDate(req.FechaDesembolso)
	if err != nil {
		return nil, apperrors.WrapInvalidLoanTerms("fecha_desembolso", "must be a date in format "+utils.DateLayout)
	}
	if fecha.After(utils.Truncate(time.Now())) {
		return nil, apperrors.WrapInvalidLoanTerms("fecha_desembolso", "must not be in the future")
	}

	scale := s.config.Business.CurrencyScale
	monto, err := money.FromDecimal(req.MontoDesembolsado, scale)
	if err != nil {
		return nil, apperrors.WrapInvalidLoanTerms("monto_desembolsado", err.Error())
	}
	if !monto.IsPositive() {
		return nil, apperrors.WrapInvalidLoanTerms("monto_desembolsado", "must be greater than zero")
	}
	if credito.MontoAprobado.LessThan(monto) {
		return nil, apperrors.WrapInvalidLoanTerms("monto_desembolsado", "must not exceed monto_aprobado")
	}

	if err := credito.Transition(domain.EstadoDesembolsado, "desembolsar"); err != nil {
		return nil, err
	}

	cuotas, err := domain.GenerateSchedule(domain.ScheduleParams{
		CreditoID:       credito.ID,
		ScheduleVersion: 1,
		Principal:       monto,
		TasaMensualBp:   credito.TasaMensualBp,
		PlazoMeses:      credito.PlazoMeses,
		Modalidad:       credito.ModalidadPago,
		TipoCuota:       credito.TipoCuota,
		FechaDesembolso: fecha,
	})
	if err != nil {
		return nil, err
	}
	interes, total, err := domain.ScheduleTotals(cuotas)
	if err != nil {
		return nil, err
	}

	credito.MontoDesembolsado = monto
	credito.NumeroCuentaDesembolso = req.NumeroCuentaDesembolso
	credito.FechaDesembolso = &fecha
	credito.DesembolsadoPor = actor
	credito.ScheduleVersion = 1
	credito.ValorCuota = cuotas[0].ValorCuota
	credito.TotalIntereses = interes
	credito.TotalAPagar = total
	credito.SaldoCapital = monto
	credito.SaldoInteres = interes
	credito.SaldoMora = money.Money{}
	credito.DiasMora = 0
	if req.Observaciones != "" {
		credito.Observaciones = req.Observaciones
	}

	if err := s.CreditoRepo.Disburse(ctx, credito, cuotas); err != nil {
		return nil, wrapDB(err)
	}
	invalidateCredito(ctx, s.redis, id)
	return domain.NewCreditoResponse(credito, scale), nil
}

// Castigar writes off a delinquent credit. Balances are kept as-is for
// recovery tracking; only the state changes.
func (s *CreditService) Castigar(ctx context.Context, id uuid.UUID, req *domain.CastigarRequest, actor string) (*domain.CreditoResponse, error) {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	credito, err := fetchCredito(ctx, s.CreditoRepo, id)
	if err != nil {
		return nil, err
	}
	if err := credito.Transition(domain.EstadoCastigado, "castigar"); err != nil {
		return nil, err
	}
	credito.MotivoCastigo = req.Motivo

	if err := s.CreditoRepo.Update(ctx, credito); err != nil {
		return nil, wrapDB(err)
	}
	invalidateCredito(ctx, s.redis, id)
	return domain.NewCreditoResponse(credito, s.config.Business.CurrencyScale), nil
}

// Get returns the credit read projection, served from cache when possible.
func (s *CreditService) Get(ctx context.Context, id uuid.UUID) (*domain.CreditoResponse, error) {
	if s.redis != nil {
		if raw, err := s.redis.Get(ctx, creditoCacheKey(id)).Result(); err == nil {
			var cached domain.CreditoResponse
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	credito, err := fetchCredito(ctx, s.CreditoRepo, id)
	if err != nil {
		return nil, err
	}
	resp := domain.NewCreditoResponse(credito, s.config.Business.CurrencyScale)

	if s.redis != nil {
		if raw, err := json.Marshal(resp); err == nil {
			if err := s.redis.Set(ctx, creditoCacheKey(id), raw, creditoCacheTTL).Err(); err != nil {
				log.Printf("cache: store credito %s: %v", id, err)
			}
		}
	}
	return resp, nil
}

// List returns credits matching the filter.
func (s *CreditService) List(ctx context.Context, filter repository.CreditoFilter) ([]*domain.CreditoResponse, error) {
	creditos, err := s.CreditoRepo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	scale := s.config.Business.CurrencyScale
	out := make([]*domain.CreditoResponse, 0, len(creditos))
	for _, c := range creditos {
		out = append(out, domain.NewCreditoResponse(c, scale))
	}
	return out, nil
}

// GetAmortizacion returns the materialized amortization table.
func (s *CreditService) GetAmortizacion(ctx context.Context, id uuid.UUID) ([]*domain.CuotaResponse, error) {
	credito, err := fetchCredito(ctx, s.CreditoRepo, id)
	if err != nil {
		return nil, err
	}
	if credito.ScheduleVersion == 0 {
		return nil, apperrors.WrapInvalidStateTransition(credito.Estado, "tabla_amortizacion")
	}
	cuotas, err := s.CreditoRepo.GetSchedule(ctx, id, credito.ScheduleVersion)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}
	scale := s.config.Business.CurrencyScale
	out := make([]*domain.CuotaResponse, 0, len(cuotas))
	for _, q := range cuotas {
		out = append(out, domain.NewCuotaResponse(q, scale))
	}
	return out, nil
}

// RebuildBalances replays the full payment history against the schedule and
// rewrites the materialized balances from scratch. The result reports whether
// the stored projection had drifted, which should never happen and is worth
// an audit when it does.
func (s *CreditService) RebuildBalances(ctx context.Context, id uuid.UUID) (*domain.ReplayResult, error) {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	credito, err := fetchCredito(ctx, s.CreditoRepo, id)
	if err != nil {
		return nil, err
	}
	if credito.ScheduleVersion == 0 {
		return nil, apperrors.WrapInvalidStateTransition(credito.Estado, "replay")
	}
	cuotas, err := s.CreditoRepo.GetSchedule(ctx, id, credito.ScheduleVersion)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}

	scale := s.config.Business.CurrencyScale
	result := &domain.ReplayResult{
		SaldoCapitalAnterior: credito.SaldoCapital.Decimal(scale),
		SaldoInteresAnterior: credito.SaldoInteres.Decimal(scale),
		SaldoMoraAnterior:    credito.SaldoMora.Decimal(scale),
		SaldoFavorAnterior:   credito.SaldoFavor.Decimal(scale),
	}
	antes := [4]money.Money{credito.SaldoCapital, credito.SaldoInteres, credito.SaldoMora, credito.SaldoFavor}

	if err := replayHistory(ctx, s.PagoRepo, credito, cuotas, uuid.Nil, utils.Truncate(time.Now())); err != nil {
		return nil, err
	}

	despues := [4]money.Money{credito.SaldoCapital, credito.SaldoInteres, credito.SaldoMora, credito.SaldoFavor}
	result.Drift = antes != despues

	if err := s.CreditoRepo.UpdateCuotas(ctx, credito, cuotas); err != nil {
		return nil, wrapDB(err)
	}
	invalidateCredito(ctx, s.redis, id)

	result.Credito = domain.NewCreditoResponse(credito, scale)
	return result, nil
}
