package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coopfin/credito-engine/internal/domain"
)

// CreditoFilter narrows credit listings.
type CreditoFilter struct {
	AsociadoID  int64
	Estado      string
	TipoCredito string
	Limit       int
	Offset      int
}

// CreditoRepository defines the interface for credit data operations.
// Multi-row writes (Disburse, UpdateCuotas) are atomic: they commit the
// credit row and its installments in one transaction, with an optimistic
// version check on the credit.
type CreditoRepository interface {
	// Create inserts a new credit in state solicitado.
	Create(ctx context.Context, credito *domain.Credito) error

	// GetByID retrieves a credit by id.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Credito, error)

	// List retrieves credits matching the filter, newest request first.
	List(ctx context.Context, filter CreditoFilter) ([]*domain.Credito, error)

	// ListByEstados retrieves all credits in any of the given states.
	ListByEstados(ctx context.Context, estados []string) ([]*domain.Credito, error)

	// Update persists credit mutations, failing on version mismatch.
	Update(ctx context.Context, credito *domain.Credito) error

	// Disburse commits the state transition and the materialized schedule
	// atomically; if any insert fails nothing changes.
	Disburse(ctx context.Context, credito *domain.Credito, cuotas []*domain.Cuota) error

	// GetSchedule retrieves the installments of the credit's current
	// schedule version, ordered by numero_cuota.
	GetSchedule(ctx context.Context, creditoID uuid.UUID, scheduleVersion int) ([]*domain.Cuota, error)

	// UpdateCuotas persists installment mutations together with the credit
	// row in one transaction (delinquency refresh, balance rebuild).
	UpdateCuotas(ctx context.Context, credito *domain.Credito, cuotas []*domain.Cuota) error

	// NextConsecutivo returns the next sequence number for the monthly
	// numbered series of credit documents (CR-YYYYMM-NNNNNN).
	NextConsecutivo(ctx context.Context, fecha time.Time) (int64, error)
}

// PagoRepository defines the interface for payment data operations.
type PagoRepository interface {
	// GetByID retrieves a payment by id.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Pago, error)

	// GetByIdempotencyKey retrieves the payment previously recorded under
	// the given key, or sql.ErrNoRows.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Pago, error)

	// ListByCredito retrieves all payments of a credit, oldest first.
	ListByCredito(ctx context.Context, creditoID uuid.UUID) ([]*domain.Pago, error)

	// ListAbonosByPago retrieves the allocation breakdown of one payment.
	ListAbonosByPago(ctx context.Context, pagoID uuid.UUID) ([]*domain.Abono, error)

	// ApplyPago commits a payment, its allocations, the touched
	// installments and the credit balances in one transaction.
	ApplyPago(ctx context.Context, pago *domain.Pago, abonos []*domain.Abono, cuotas []*domain.Cuota, credito *domain.Credito) error

	// Reverse records the reversal event, marks the payment reversed and
	// writes the replayed installment and credit state, atomically.
	Reverse(ctx context.Context, reversion *domain.Reversion, pago *domain.Pago, cuotas []*domain.Cuota, credito *domain.Credito) error

	// NextNumeroRecibo returns the next sequence number for the monthly
	// receipt series (REC-YYYYMM-NNNNNN).
	NextNumeroRecibo(ctx context.Context, fecha time.Time) (int64, error)
}
