package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/coopfin/credito-engine/internal/domain"
	"github.com/coopfin/credito-engine/internal/repository"
)

type MockCreditoRepository struct {
	mock.Mock
}

func (m *MockCreditoRepository) Create(ctx context.Context, credito *domain.Credito) error {
	args := m.Called(ctx, credito)
	return args.Error(0)
}

func (m *MockCreditoRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Credito, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Credito), args.Error(1)
}

func (m *MockCreditoRepository) List(ctx context.Context, filter repository.CreditoFilter) ([]*domain.Credito, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Credito), args.Error(1)
}

func (m *MockCreditoRepository) ListByEstados(ctx context.Context, estados []string) ([]*domain.Credito, error) {
	args := m.Called(ctx, estados)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Credito), args.Error(1)
}

func (m *MockCreditoRepository) Update(ctx context.Context, credito *domain.Credito) error {
	args := m.Called(ctx, credito)
	return args.Error(0)
}

func (m *MockCreditoRepository) Disburse(ctx context.Context, credito *domain.Credito, cuotas []*domain.Cuota) error {
	args := m.Called(ctx, credito, cuotas)
	return args.Error(0)
}

func (m *MockCreditoRepository) GetSchedule(ctx context.Context, creditoID uuid.UUID, scheduleVersion int) ([]*domain.Cuota, error) {
	args := m.Called(ctx, creditoID, scheduleVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Cuota), args.Error(1)
}

func (m *MockCreditoRepository) UpdateCuotas(ctx context.Context, credito *domain.Credito, cuotas []*domain.Cuota) error {
	args := m.Called(ctx, credito, cuotas)
	return args.Error(0)
}

func (m *MockCreditoRepository) NextConsecutivo(ctx context.Context, fecha time.Time) (int64, error) {
	args := m.Called(ctx, fecha)
	return args.Get(0).(int64), args.Error(1)
}

type MockPagoRepository struct {
	mock.Mock
}

func (m *MockPagoRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Pago, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Pago), args.Error(1)
}

func (m *MockPagoRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Pago, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Pago), args.Error(1)
}

func (m *MockPagoRepository) ListByCredito(ctx context.Context, creditoID uuid.UUID) ([]*domain.Pago, error) {
	args := m.Called(ctx, creditoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Pago), args.Error(1)
}

func (m *MockPagoRepository) ListAbonosByPago(ctx context.Context, pagoID uuid.UUID) ([]*domain.Abono, error) {
	args := m.Called(ctx, pagoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Abono), args.Error(1)
}

func (m *MockPagoRepository) ApplyPago(ctx context.Context, pago *domain.Pago, abonos []*domain.Abono, cuotas []*domain.Cuota, credito *domain.Credito) error {
	args := m.Called(ctx, pago, abonos, cuotas, credito)
	return args.Error(0)
}

func (m *MockPagoRepository) Reverse(ctx context.Context, reversion *domain.Reversion, pago *domain.Pago, cuotas []*domain.Cuota, credito *domain.Credito) error {
	args := m.Called(ctx, reversion, pago, cuotas, credito)
	return args.Error(0)
}

func (m *MockPagoRepository) NextNumeroRecibo(ctx context.Context, fecha time.Time) (int64, error) {
	args := m.Called(ctx, fecha)
	return args.Get(0).(int64), args.Error(1)
}
