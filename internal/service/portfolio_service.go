package service

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/coopfin/credito-engine/internal/config"
	"github.com/coopfin/credito-engine/internal/domain"
	"github.com/coopfin/credito-engine/internal/repository"
	apperrors "github.com/coopfin/credito-engine/pkg/errors"
	"github.com/coopfin/credito-engine/pkg/utils"
)

// PortfolioService runs the portfolio-wide concerns: the daily delinquency
// refresh and the cartera / mora reports.
type PortfolioService struct {
	CreditoRepo repository.CreditoRepository
	Pagos       *PaymentService
	redis       *redis.Client
	config      *config.Config
	locks       *CreditLocks
}

func NewPortfolioService(
	creditoRepo repository.CreditoRepository,
	pagos *PaymentService,
	redis *redis.Client,
	config *config.Config,
	locks *CreditLocks,
) *PortfolioService {
	return &PortfolioService{
		CreditoRepo: creditoRepo,
		Pagos:       pagos,
		redis:       redis,
		config:      config,
		locks:       locks,
	}
}

// ActualizarMora refreshes delinquency across the live portfolio as of the
// given date: accrues arrears, re-derives installment and credit states, and
// applies pending credit balances to installments that came due. One failing
// credit is logged and skipped, it never aborts the batch.
func (s *PortfolioService) ActualizarMora(ctx context.Context, asOf time.Time) (int, error) {
	creditos, err := s.CreditoRepo.ListByEstados(ctx, []string{domain.EstadoDesembolsado, domain.EstadoActivo})
	if err != nil {
		return 0, apperrors.WrapDatabaseError(err)
	}

	actualizados := 0
	for _, credito := range creditos {
		if err := s.refrescarCredito(ctx, credito, asOf); err != nil {
			log.Printf("mora: credito %s: %v", credito.NumeroCredito, err)
			continue
		}
		if _, err := s.Pagos.AplicarSaldoFavor(ctx, credito.ID, asOf); err != nil {
			log.Printf("mora: saldo a favor credito %s: %v", credito.NumeroCredito, err)
			continue
		}
		actualizados++
	}
	return actualizados, nil
}

// refrescarCredito accrues mora and rewrites the derived state of one credit.
func (s *PortfolioService) refrescarCredito(ctx context.Context, credito *domain.Credito, asOf time.Time) error {
	unlock := s.locks.Lock(credito.ID.String())
	defer unlock()

	cuotas, err := s.CreditoRepo.GetSchedule(ctx, credito.ID, credito.ScheduleVersion)
	if err != nil {
		return apperrors.WrapDatabaseError(err)
	}

	maybeActivate(credito, cuotas, asOf)
	for _, q := range cuotas {
		if err := domain.AccrueMora(q, s.config.Business.MoraDailyRateBp, asOf); err != nil {
			return err
		}
		q.RefreshEstado(asOf)
	}
	recomputeBalances(credito, cuotas, asOf)

	if err := s.CreditoRepo.UpdateCuotas(ctx, credito, cuotas); err != nil {
		return wrapDB(err)
	}
	invalidateCredito(ctx, s.redis, credito.ID)
	return nil
}

// ReporteCartera summarizes the disbursed portfolio as of a cut date:
// balances, delinquency classification and the required provision per credit,
// with aggregates per credit type.
func (s *PortfolioService) ReporteCartera(ctx context.Context, fechaCorte time.Time) (*domain.ReporteCartera, error) {
	creditos, err := s.CreditoRepo.ListByEstados(ctx, []string{
		domain.EstadoDesembolsado, domain.EstadoActivo, domain.EstadoCastigado,
	})
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}

	scale := s.config.Business.CurrencyScale
	table := s.config.ProvisionTable()
	stats := &domain.EstadisticasCartera{}
	porTipo := make(map[string]*domain.TotalPorTipo)
	rows := make([]*domain.CreditoCartera, 0, len(creditos))

	for _, c := range creditos {
		cuotas, err := s.CreditoRepo.GetSchedule(ctx, c.ID, c.ScheduleVersion)
		if err != nil {
			return nil, apperrors.WrapDatabaseError(err)
		}
		for _, q := range cuotas {
			if err := domain.AccrueMora(q, s.config.Business.MoraDailyRateBp, fechaCorte); err != nil {
				return nil, err
			}
		}

		dias := domain.DiasMora(cuotas, fechaCorte)
		banda := domain.BandaMora(dias)
		provision, err := domain.Provision(c.SaldoCapital, banda, table)
		if err != nil {
			return nil, err
		}
		var saldoMora int64
		for _, q := range cuotas {
			saldoMora += q.MoraPendiente().Minor()
		}

		row := &domain.CreditoCartera{
			NumeroCredito:     c.NumeroCredito,
			AsociadoID:        c.AsociadoID,
			TipoCredito:       c.TipoCredito,
			Estado:            c.Estado,
			MontoDesembolsado: c.MontoDesembolsado.Decimal(scale),
			SaldoCapital:      c.SaldoCapital.Decimal(scale),
			SaldoInteres:      c.SaldoInteres.Decimal(scale),
			SaldoMora:         decimal.New(saldoMora, -scale),
			DiasMora:          dias,
			RangoMora:         banda,
			Provision:         provision.Decimal(scale),
		}
		if c.FechaDesembolso != nil {
			row.FechaDesembolso = utils.FormatDate(*c.FechaDesembolso)
		}
		if c.FechaUltimoPago != nil {
			row.FechaUltimoPago = utils.FormatDate(*c.FechaUltimoPago)
		}
		rows = append(rows, row)

		stats.TotalCreditos++
		stats.CarteraTotal = stats.CarteraTotal.Add(row.SaldoCapital)
		stats.MontoProvision = stats.MontoProvision.Add(row.Provision)
		switch {
		case c.Estado == domain.EstadoCastigado:
			stats.CarteraCastigada = stats.CarteraCastigada.Add(row.SaldoCapital)
		case dias > 0:
			stats.CarteraMora = stats.CarteraMora.Add(row.SaldoCapital)
			stats.CreditosMora++
		default:
			stats.CarteraAlDia = stats.CarteraAlDia.Add(row.SaldoCapital)
		}

		tipo := porTipo[c.TipoCredito]
		if tipo == nil {
			tipo = &domain.TotalPorTipo{}
			porTipo[c.TipoCredito] = tipo
		}
		tipo.Creditos++
		tipo.Total = tipo.Total.Add(row.SaldoCapital)
	}

	if stats.CarteraTotal.IsPositive() {
		stats.TasaMora = stats.CarteraMora.Div(stats.CarteraTotal).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return &domain.ReporteCartera{
		FechaCorte:   utils.FormatDate(fechaCorte),
		Estadisticas: stats,
		Creditos:     rows,
		PorTipo:      porTipo,
	}, nil
}

// ReporteMora lists delinquent credits as of a cut date, worst first, with
// totals per mora band. diasMinimo filters out short delays; anything below
// one day is not mora.
func (s *PortfolioService) ReporteMora(ctx context.Context, fechaCorte time.Time, diasMinimo int) (*domain.ReporteMora, error) {
	if diasMinimo < 1 {
		diasMinimo = 1
	}

	creditos, err := s.CreditoRepo.ListByEstados(ctx, []string{domain.EstadoDesembolsado, domain.EstadoActivo})
	if err != nil {
		return nil, apperrors.WrapDatabaseError(err)
	}

	scale := s.config.Business.CurrencyScale
	table := s.config.ProvisionTable()
	report := &domain.ReporteMora{
		FechaCorte:     utils.FormatDate(fechaCorte),
		DiasMoraMinimo: diasMinimo,
		PorRango:       make(map[string]*domain.RangoMora),
	}

	for _, c := range creditos {
		cuotas, err := s.CreditoRepo.GetSchedule(ctx, c.ID, c.ScheduleVersion)
		if err != nil {
			return nil, apperrors.WrapDatabaseError(err)
		}
		dias := domain.DiasMora(cuotas, fechaCorte)
		if dias < diasMinimo {
			continue
		}
		for _, q := range cuotas {
			if err := domain.AccrueMora(q, s.config.Business.MoraDailyRateBp, fechaCorte); err != nil {
				return nil, err
			}
		}

		var saldoMora int64
		for _, q := range cuotas {
			saldoMora += q.MoraPendiente().Minor()
		}
		banda := domain.BandaMora(dias)
		provision, err := domain.Provision(c.SaldoCapital, banda, table)
		if err != nil {
			return nil, err
		}

		row := &domain.CreditoMora{
			NumeroCredito: c.NumeroCredito,
			AsociadoID:    c.AsociadoID,
			TipoCredito:   c.TipoCredito,
			SaldoCapital:  c.SaldoCapital.Decimal(scale),
			SaldoMora:     decimal.New(saldoMora, -scale),
			DiasMora:      dias,
			RangoMora:     banda,
			Provision:     provision.Decimal(scale),
		}
		if c.FechaUltimoPago != nil {
			row.FechaUltimoPago = utils.FormatDate(*c.FechaUltimoPago)
		}
		report.Creditos = append(report.Creditos, row)

		report.TotalCreditosMora++
		report.MontoTotalMora = report.MontoTotalMora.Add(row.SaldoMora)
		rango := report.PorRango[banda]
		if rango == nil {
			rango = &domain.RangoMora{}
			report.PorRango[banda] = rango
		}
		rango.Creditos++
		rango.Monto = rango.Monto.Add(row.SaldoMora)
	}

	sort.Slice(report.Creditos, func(i, j int) bool {
		return report.Creditos[i].DiasMora > report.Creditos[j].DiasMora
	})

	return report, nil
}
