package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coopfin/credito-engine/internal/domain"
	apperrors "github.com/coopfin/credito-engine/pkg/errors"
)

type pagoRepository struct {
	db *sqlx.DB
}

func NewPagoRepository(db *sqlx.DB) PagoRepository {
	return &pagoRepository{db: db}
}

const pagoColumns = `
	id, credito_id, numero_recibo, monto, fecha_pago, metodo_pago,
	referencia, idempotency_key, reversado, observaciones, registrado_por,
	created_at`

const insertPago = `
	INSERT INTO pagos (
		id, credito_id, numero_recibo, monto, fecha_pago, metodo_pago,
		referencia, idempotency_key, reversado, observaciones, registrado_por,
		created_at
	) VALUES (
		:id, :credito_id, :numero_recibo, :monto, :fecha_pago, :metodo_pago,
		:referencia, :idempotency_key, :reversado, :observaciones, :registrado_por,
		now()
	)`

const insertAbono = `
	INSERT INTO abonos (
		id, pago_id, credito_id, numero_cuota, componente, valor, created_at
	) VALUES (
		:id, :pago_id, :credito_id, :numero_cuota, :componente, :valor, now()
	)`

func (r *pagoRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Pago, error) {
	query := `SELECT ` + pagoColumns + ` FROM pagos WHERE id = $1`

	var pago domain.Pago
	if err := r.db.GetContext(ctx, &pago, query, id); err != nil {
		return nil, err
	}
	return &pago, nil
}

func (r *pagoRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Pago, error) {
	query := `SELECT ` + pagoColumns + ` FROM pagos WHERE idempotency_key = $1`

	var pago domain.Pago
	if err := r.db.GetContext(ctx, &pago, query, key); err != nil {
		return nil, err
	}
	return &pago, nil
}

func (r *pagoRepository) ListByCredito(ctx context.Context, creditoID uuid.UUID) ([]*domain.Pago, error) {
	query := `SELECT ` + pagoColumns + ` FROM pagos WHERE credito_id = $1 ORDER BY fecha_pago, created_at`

	var pagos []*domain.Pago
	if err := r.db.SelectContext(ctx, &pagos, query, creditoID); err != nil {
		return nil, err
	}
	return pagos, nil
}

func (r *pagoRepository) ListAbonosByPago(ctx context.Context, pagoID uuid.UUID) ([]*domain.Abono, error) {
	query := `
		SELECT id, pago_id, credito_id, numero_cuota, componente, valor, created_at
		FROM abonos
		WHERE pago_id = $1
		ORDER BY created_at, numero_cuota`

	var abonos []*domain.Abono
	if err := r.db.SelectContext(ctx, &abonos, query, pagoID); err != nil {
		return nil, err
	}
	return abonos, nil
}

// ApplyPago commits the whole payment effect in one transaction: the pago
// row, its abonos, the mutated cuotas and the credit's new balances. The
// version check on the credit is what serializes cross-process writers.
func (r *pagoRepository) ApplyPago(ctx context.Context, pago *domain.Pago, abonos []*domain.Abono, cuotas []*domain.Cuota, credito *domain.Credito) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.NamedExecContext(ctx, insertPago, pago); err != nil {
		return err
	}
	for _, abono := range abonos {
		if _, err = tx.NamedExecContext(ctx, insertAbono, abono); err != nil {
			return err
		}
	}
	for _, cuota := range cuotas {
		if _, err = tx.NamedExecContext(ctx, updateCuota, cuota); err != nil {
			return err
		}
	}

	res, err := tx.NamedExecContext(ctx, updateCredito, credito)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return apperrors.WrapConcurrentModification(credito.ID.String())
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	credito.Version++
	return nil
}

const insertReversion = `
	INSERT INTO reversiones (id, pago_id, motivo, registrado_por, created_at)
	VALUES (:id, :pago_id, :motivo, :registrado_por, now())`

// Reverse records the reversal event and writes the replayed state. The
// pago row itself only flips its reversado flag; history stays intact.
func (r *pagoRepository) Reverse(ctx context.Context, reversion *domain.Reversion, pago *domain.Pago, cuotas []*domain.Cuota, credito *domain.Credito) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.NamedExecContext(ctx, insertReversion, reversion); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE pagos SET reversado = true WHERE id = $1`, pago.ID); err != nil {
		return err
	}
	for _, cuota := range cuotas {
		if _, err = tx.NamedExecContext(ctx, updateCuota, cuota); err != nil {
			return err
		}
	}

	res, err := tx.NamedExecContext(ctx, updateCredito, credito)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return apperrors.WrapConcurrentModification(credito.ID.String())
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	credito.Version++
	return nil
}

func (r *pagoRepository) NextNumeroRecibo(ctx context.Context, fecha time.Time) (int64, error) {
	prefijo := fmt.Sprintf("REC-%04d%02d-%%", fecha.Year(), int(fecha.Month()))
	query := `
		SELECT COALESCE(MAX(CAST(RIGHT(numero_recibo, 6) AS INTEGER)), 0) + 1
		FROM pagos
		WHERE numero_recibo LIKE $1`

	var next int64
	if err := r.db.GetContext(ctx, &next, query, prefijo); err != nil {
		return 0, err
	}
	return next, nil
}
