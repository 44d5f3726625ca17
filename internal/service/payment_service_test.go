package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coopfin/credito-engine/internal/domain"
	apperrors "github.com/coopfin/credito-engine/pkg/errors"
	"github.com/coopfin/credito-engine/pkg/money"
)

func newTestPaymentService(creditoRepo *MockCreditoRepository, pagoRepo *MockPagoRepository) *PaymentService {
	return NewPaymentService(creditoRepo, pagoRepo, nil, testConfig(), NewCreditLocks())
}

// activeCreditoWithCuota builds a disbursed credit with a single open
// installment: capital 80,000, interes 1,600, due 2026-02-15.
func activeCreditoWithCuota() (*domain.Credito, *domain.Cuota) {
	credito := solicitudCredito()
	credito.Estado = domain.EstadoActivo
	credito.ScheduleVersion = 1
	credito.MontoDesembolsado = money.FromMinor(80_000)
	credito.SaldoCapital = money.FromMinor(80_000)
	credito.SaldoInteres = money.FromMinor(1_600)

	cuota := &domain.Cuota{
		ID:               uuid.New(),
		CreditoID:        credito.ID,
		ScheduleVersion:  1,
		NumeroCuota:      1,
		FechaVencimiento: mustFecha("2026-02-15"),
		Capital:          money.FromMinor(80_000),
		Interes:          money.FromMinor(1_600),
		ValorCuota:       money.FromMinor(81_600),
		Estado:           domain.EstadoCuotaPendiente,
	}
	return credito, cuota
}

func TestRegistrarPago_InteresBeforeCapital(t *testing.T) {
	creditoRepo := &MockCreditoRepository{}
	pagoRepo := &MockPagoRepository{}
	svc := newTestPaymentService(creditoRepo, pagoRepo)

	credito, cuota := activeCreditoWithCuota()
	creditoRepo.On("GetByID", mock.Anything, credito.ID).Return(credito, nil)
	creditoRepo.On("GetSchedule", mock.Anything, credito.ID, 1).Return([]*domain.Cuota{cuota}, nil)
	pagoRepo.On("NextNumeroRecibo", mock.Anything, mock.Anything).Return(int64(7), nil)
	pagoRepo.On("ApplyPago", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	resp, err := svc.RegistrarPago(context.Background(), credito.ID, &domain.PagoRequest{
		Monto:      decimal.NewFromInt(50_000),
		FechaPago:  "2026-02-10",
		MetodoPago: "efectivo",
	}, "cajero1", "")

	require.NoError(t, err)
	require.Len(t, resp.Abonos, 2)
	assert.Equal(t, domain.ComponenteInteres, resp.Abonos[0].Componente)
	assert.True(t, resp.Abonos[0].Valor.Equal(decimal.NewFromInt(1_600)))
	assert.Equal(t, domain.ComponenteCapital, resp.Abonos[1].Componente)
	assert.True(t, resp.Abonos[1].Valor.Equal(decimal.NewFromInt(48_400)))
	assert.Equal(t, "REC-202602-000007", resp.NumeroRecibo)

	assert.Equal(t, int64(31_600), credito.SaldoCapital.Minor())
	assert.True(t, credito.SaldoInteres.IsZero())
	assert.Equal(t, domain.EstadoCuotaParcial, cuota.Estado)
	assert.Equal(t, domain.EstadoActivo, credito.Estado)
	pagoRepo.AssertExpectations(t)
}

func TestRegistrarPago_MoraFirst(t *testing.T) {
	creditoRepo := &MockCreditoRepository{}
	pagoRepo := &MockPagoRepository{}
	svc := newTestPaymentService(creditoRepo, pagoRepo)

	credito, cuota := activeCreditoWithCuota()
	creditoRepo.On("GetByID", mock.Anything, credito.ID).Return(credito, nil)
	creditoRepo.On("GetSchedule", mock.Anything, credito.ID, 1).Return([]*domain.Cuota{cuota}, nil)
	pagoRepo.On("NextNumeroRecibo", mock.Anything, mock.Anything).Return(int64(1), nil)
	pagoRepo.On("ApplyPago", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	// Ten days late at 10bp/day: mora = 81,600 * 0.001 * 10 = 816.
	resp, err := svc.RegistrarPago(context.Background(), credito.ID, &domain.PagoRequest{
		Monto:      decimal.NewFromInt(1_000),
		FechaPago:  "2026-02-25",
		MetodoPago: "efectivo",
	}, "cajero1", "")

	require.NoError(t, err)
	require.Len(t, resp.Abonos, 2)
	assert.Equal(t, domain.ComponenteMora, resp.Abonos[0].Componente)
	assert.True(t, resp.Abonos[0].Valor.Equal(decimal.NewFromInt(816)))
	assert.Equal(t, domain.ComponenteInteres, resp.Abonos[1].Componente)
	assert.True(t, resp.Abonos[1].Valor.Equal(decimal.NewFromInt(184)))
	assert.Equal(t, domain.EstadoCuotaVencida, cuota.Estado)
}

func TestRegistrarPago_SurplusBecomesSaldoFavor(t *testing.T) {
	creditoRepo := &MockCreditoRepository{}
	pagoRepo := &MockPagoRepository{}
	svc := newTestPaymentService(creditoRepo, pagoRepo)

	credito, cuota := activeCreditoWithCuota()
	creditoRepo.On("GetByID", mock.Anything, credito.ID).Return(credito, nil)
	creditoRepo.On("GetSchedule", mock.Anything, credito.ID, 1).Return([]*domain.Cuota{cuota}, nil)
	pagoRepo.On("NextNumeroRecibo", mock.Anything, mock.Anything).Return(int64(2), nil)
	pagoRepo.On("ApplyPago", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	resp, err := svc.RegistrarPago(context.Background(), credito.ID, &domain.PagoRequest{
		Monto:      decimal.NewFromInt(100_000),
		FechaPago:  "2026-02-10",
		MetodoPago: "transferencia",
	}, "cajero1", "")

	require.NoError(t, err)
	require.Len(t, resp.Abonos, 3)
	assert.Equal(t, domain.ComponenteCredito, resp.Abonos[2].Componente)
	assert.True(t, resp.Abonos[2].Valor.Equal(decimal.NewFromInt(18_400)))
	assert.Equal(t, int64(18_400), credito.SaldoFavor.Minor())

	// The only installment is settled, so the credit pays off.
	assert.Equal(t, domain.EstadoCuotaPagada, cuota.Estado)
	assert.Equal(t, domain.EstadoCancelado, credito.Estado)
	assert.True(t, credito.SaldoCapital.IsZero())
}

func TestRegistrarPago_IdempotentReplay(t *testing.T) {
	creditoRepo := &MockCreditoRepository{}
	pagoRepo := &MockPagoRepository{}
	svc := newTestPaymentService(creditoRepo, pagoRepo)

	credito, _ := activeCreditoWithCuota()
	previo := &domain.Pago{
		ID:             uuid.New(),
		CreditoID:      credito.ID,
		NumeroRecibo:   "REC-202602-000001",
		Monto:          money.FromMinor(50_000),
		FechaPago:      mustFecha("2026-02-10"),
		MetodoPago:     "efectivo",
		IdempotencyKey: "abc-123",
	}

	pagoRepo.On("GetByIdempotencyKey", mock.Anything, "abc-123").Return(previo, nil)
	pagoRepo.On("GetByID", mock.Anything, previo.ID).Return(previo, nil)
	pagoRepo.On("ListAbonosByPago", mock.Anything, previo.ID).Return([]*domain.Abono{}, nil)

	resp, err := svc.RegistrarPago(context.Background(), credito.ID, &domain.PagoRequest{
		Monto:      decimal.NewFromInt(50_000),
		FechaPago:  "2026-02-10",
		MetodoPago: "efectivo",
	}, "cajero1", "abc-123")

	require.NoError(t, err)
	assert.Equal(t, previo.ID.String(), resp.ID)
	pagoRepo.AssertNotCalled(t, "ApplyPago", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegistrarPago_UniqueKeyRaceReturnsPrior(t *testing.T) {
	creditoRepo := &MockCreditoRepository{}
	pagoRepo := &MockPagoRepository{}
	svc := newTestPaymentService(creditoRepo, pagoRepo)

	credito, cuota := activeCreditoWithCuota()
	previo := &domain.Pago{
		ID:             uuid.New(),
		CreditoID:      credito.ID,
		NumeroRecibo:   "REC-202602-000001",
		Monto:          money.FromMinor(50_000),
		FechaPago:      mustFecha("2026-02-10"),
		MetodoPago:     "efectivo",
		IdempotencyKey: "abc-123",
	}

	// The key is new at the initial lookup, but another process commits the
	// same key before our write lands; the unique index rejects ours.
	pagoRepo.On("GetByIdempotencyKey", mock.Anything, "abc-123").Return(nil, sql.ErrNoRows).Once()
	creditoRepo.On("GetByID", mock.Anything, credito.ID).Return(credito, nil)
	creditoRepo.On("GetSchedule", mock.Anything, credito.ID, 1).Return([]*domain.Cuota{cuota}, nil)
	pagoRepo.On("NextNumeroRecibo", mock.Anything, mock.Anything).Return(int64(9), nil)
	pagoRepo.On("ApplyPago", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&pq.Error{Code: "23505", Constraint: "idx_pagos_idempotency"})
	pagoRepo.On("GetByIdempotencyKey", mock.Anything, "abc-123").Return(previo, nil).Once()
	pagoRepo.On("GetByID", mock.Anything, previo.ID).Return(previo, nil)
	pagoRepo.On("ListAbonosByPago", mock.Anything, previo.ID).Return([]*domain.Abono{}, nil)

	resp, err := svc.RegistrarPago(context.Background(), credito.ID, &domain.PagoRequest{
		Monto:      decimal.NewFromInt(50_000),
		FechaPago:  "2026-02-10",
		MetodoPago: "efectivo",
	}, "cajero1", "abc-123")

	require.NoError(t, err)
	assert.Equal(t, previo.ID.String(), resp.ID)
	assert.Equal(t, previo.NumeroRecibo, resp.NumeroRecibo)
	pagoRepo.AssertExpectations(t)
}

func TestRegistrarPago_StateRejections(t *testing.T) {
	creditoRepo := &MockCreditoRepository{}
	pagoRepo := &MockPagoRepository{}
	svc := newTestPaymentService(creditoRepo, pagoRepo)

	credito, _ := activeCreditoWithCuota()
	credito.Estado = domain.EstadoSolicitado
	creditoRepo.On("GetByID", mock.Anything, credito.ID).Return(credito, nil)

	_, err := svc.RegistrarPago(context.Background(), credito.ID, &domain.PagoRequest{
		Monto:      decimal.NewFromInt(50_000),
		FechaPago:  "2026-02-10",
		MetodoPago: "efectivo",
	}, "cajero1", "")

	assert.Equal(t, apperrors.ErrCodeInvalidStateTransition, apperrors.CodeOf(err))
	pagoRepo.AssertNotCalled(t, "ApplyPago", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReversar_RestoresBalances(t *testing.T) {
	creditoRepo := &MockCreditoRepository{}
	pagoRepo := &MockPagoRepository{}
	svc := newTestPaymentService(creditoRepo, pagoRepo)

	credito, cuota := activeCreditoWithCuota()
	// The payment being reversed already landed on the installment.
	cuota.InteresPagado = money.FromMinor(1_600)
	cuota.CapitalPagado = money.FromMinor(48_400)
	credito.SaldoCapital = money.FromMinor(31_600)
	credito.SaldoInteres = money.Money{}

	pago := &domain.Pago{
		ID:         uuid.New(),
		CreditoID:  credito.ID,
		Monto:      money.FromMinor(50_000),
		FechaPago:  mustFecha("2026-02-10"),
		MetodoPago: "efectivo",
	}

	pagoRepo.On("GetByID", mock.Anything, pago.ID).Return(pago, nil)
	creditoRepo.On("GetByID", mock.Anything, credito.ID).Return(credito, nil)
	creditoRepo.On("GetSchedule", mock.Anything, credito.ID, 1).Return([]*domain.Cuota{cuota}, nil)
	pagoRepo.On("ListByCredito", mock.Anything, credito.ID).Return([]*domain.Pago{pago}, nil)
	pagoRepo.On("Reverse", mock.Anything, mock.MatchedBy(func(r *domain.Reversion) bool {
		return r.PagoID == pago.ID && r.Motivo == "error de digitacion"
	}), pago, mock.Anything, credito).Return(nil)
	pagoRepo.On("ListAbonosByPago", mock.Anything, pago.ID).Return([]*domain.Abono{}, nil)

	resp, err := svc.Reversar(context.Background(), credito.ID, pago.ID, &domain.ReversarRequest{
		Motivo: "error de digitacion",
	}, "gerente1")

	require.NoError(t, err)
	assert.True(t, resp.Reversado)
	assert.Equal(t, int64(80_000), credito.SaldoCapital.Minor())
	assert.Equal(t, int64(1_600), credito.SaldoInteres.Minor())
	assert.True(t, cuota.CapitalPagado.IsZero())
	assert.True(t, cuota.InteresPagado.IsZero())
	pagoRepo.AssertExpectations(t)
}

func TestReversar_AlreadyReversed(t *testing.T) {
	creditoRepo := &MockCreditoRepository{}
	pagoRepo := &MockPagoRepository{}
	svc := newTestPaymentService(creditoRepo, pagoRepo)

	credito, _ := activeCreditoWithCuota()
	pago := &domain.Pago{ID: uuid.New(), CreditoID: credito.ID, Reversado: true}
	pagoRepo.On("GetByID", mock.Anything, pago.ID).Return(pago, nil)

	_, err := svc.Reversar(context.Background(), credito.ID, pago.ID, &domain.ReversarRequest{
		Motivo: "duplicado",
	}, "gerente1")

	assert.Equal(t, apperrors.ErrCodePaymentReversed, apperrors.CodeOf(err))
	pagoRepo.AssertNotCalled(t, "Reverse", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAplicarSaldoFavor_DrainsIntoDueInstallment(t *testing.T) {
	creditoRepo := &MockCreditoRepository{}
	pagoRepo := &MockPagoRepository{}
	svc := newTestPaymentService(creditoRepo, pagoRepo)

	credito, cuota := activeCreditoWithCuota()
	credito.SaldoFavor = money.FromMinor(5_000)

	creditoRepo.On("GetByID", mock.Anything, credito.ID).Return(credito, nil)
	creditoRepo.On("GetSchedule", mock.Anything, credito.ID, 1).Return([]*domain.Cuota{cuota}, nil)
	pagoRepo.On("GetByIdempotencyKey", mock.Anything, mock.Anything).Return(nil, sql.ErrNoRows)
	pagoRepo.On("NextNumeroRecibo", mock.Anything, mock.Anything).Return(int64(3), nil)
	pagoRepo.On("ApplyPago", mock.Anything, mock.MatchedBy(func(p *domain.Pago) bool {
		return p.MetodoPago == domain.MetodoSaldoFavor && p.Monto.Minor() == 5_000
	}), mock.Anything, mock.Anything, mock.Anything).Return(nil)

	resp, err := svc.AplicarSaldoFavor(context.Background(), credito.ID, mustFecha("2026-02-15"))

	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Len(t, resp.Abonos, 2)
	assert.Equal(t, domain.ComponenteInteres, resp.Abonos[0].Componente)
	assert.True(t, resp.Abonos[0].Valor.Equal(decimal.NewFromInt(1_600)))
	assert.Equal(t, domain.ComponenteCapital, resp.Abonos[1].Componente)
	assert.True(t, resp.Abonos[1].Valor.Equal(decimal.NewFromInt(3_400)))
	assert.True(t, credito.SaldoFavor.IsZero())
	pagoRepo.AssertExpectations(t)
}

func TestAplicarSaldoFavor_NothingDue(t *testing.T) {
	creditoRepo := &MockCreditoRepository{}
	pagoRepo := &MockPagoRepository{}
	svc := newTestPaymentService(creditoRepo, pagoRepo)

	credito, cuota := activeCreditoWithCuota()
	credito.SaldoFavor = money.FromMinor(5_000)
	creditoRepo.On("GetByID", mock.Anything, credito.ID).Return(credito, nil)
	creditoRepo.On("GetSchedule", mock.Anything, credito.ID, 1).Return([]*domain.Cuota{cuota}, nil)

	// Day before the due date: the balance stays parked.
	resp, err := svc.AplicarSaldoFavor(context.Background(), credito.ID, mustFecha("2026-02-14"))

	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, int64(5_000), credito.SaldoFavor.Minor())
	pagoRepo.AssertNotCalled(t, "ApplyPago", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
