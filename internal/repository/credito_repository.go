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

type creditoRepository struct {
	db *sqlx.DB
}

func NewCreditoRepository(db *sqlx.DB) CreditoRepository {
	return &creditoRepository{db: db}
}

const creditoColumns = `
	id, numero_credito, asociado_id, tipo_credito,
	monto_solicitado, monto_aprobado, monto_desembolsado,
	tasa_mensual_bp, plazo_meses, modalidad_pago, tipo_cuota,
	destino, garantia, numero_cuenta_desembolso,
	estado, motivo_rechazo, motivo_castigo, observaciones,
	fecha_solicitud, fecha_aprobacion, fecha_desembolso, fecha_ultimo_pago,
	valor_cuota, total_intereses, total_a_pagar,
	saldo_capital, saldo_interes, saldo_mora, saldo_favor, dias_mora,
	schedule_version, solicitado_por, aprobado_por, desembolsado_por,
	version, created_at, updated_at`

const insertCredito = `
	INSERT INTO creditos (
		id, numero_credito, asociado_id, tipo_credito,
		monto_solicitado, monto_aprobado, monto_desembolsado,
		tasa_mensual_bp, plazo_meses, modalidad_pago, tipo_cuota,
		destino, garantia, numero_cuenta_desembolso,
		estado, motivo_rechazo, motivo_castigo, observaciones,
		fecha_solicitud, fecha_aprobacion, fecha_desembolso, fecha_ultimo_pago,
		valor_cuota, total_intereses, total_a_pagar,
		saldo_capital, saldo_interes, saldo_mora, saldo_favor, dias_mora,
		schedule_version, solicitado_por, aprobado_por, desembolsado_por,
		version, created_at, updated_at
	) VALUES (
		:id, :numero_credito, :asociado_id, :tipo_credito,
		:monto_solicitado, :monto_aprobado, :monto_desembolsado,
		:tasa_mensual_bp, :plazo_meses, :modalidad_pago, :tipo_cuota,
		:destino, :garantia, :numero_cuenta_desembolso,
		:estado, :motivo_rechazo, :motivo_castigo, :observaciones,
		:fecha_solicitud, :fecha_aprobacion, :fecha_desembolso, :fecha_ultimo_pago,
		:valor_cuota, :total_intereses, :total_a_pagar,
		:saldo_capital, :saldo_interes, :saldo_mora, :saldo_favor, :dias_mora,
		:schedule_version, :solicitado_por, :aprobado_por, :desembolsado_por,
		:version, now(), now()
	)`

// updateCredito bumps the optimistic version; callers check RowsAffected.
const updateCredito = `
	UPDATE creditos SET
		monto_aprobado = :monto_aprobado,
		monto_desembolsado = :monto_desembolsado,
		tasa_mensual_bp = :tasa_mensual_bp,
		plazo_meses = :plazo_meses,
		numero_cuenta_desembolso = :numero_cuenta_desembolso,
		estado = :estado,
		motivo_rechazo = :motivo_rechazo,
		motivo_castigo = :motivo_castigo,
		observaciones = :observaciones,
		fecha_aprobacion = :fecha_aprobacion,
		fecha_desembolso = :fecha_desembolso,
		fecha_ultimo_pago = :fecha_ultimo_pago,
		valor_cuota = :valor_cuota,
		total_intereses = :total_intereses,
		total_a_pagar = :total_a_pagar,
		saldo_capital = :saldo_capital,
		saldo_interes = :saldo_interes,
		saldo_mora = :saldo_mora,
		saldo_favor = :saldo_favor,
		dias_mora = :dias_mora,
		schedule_version = :schedule_version,
		aprobado_por = :aprobado_por,
		desembolsado_por = :desembolsado_por,
		version = version + 1,
		updated_at = now()
	WHERE id = :id AND version = :version`

func (r *creditoRepository) Create(ctx context.Context, credito *domain.Credito) error {
	_, err := r.db.NamedExecContext(ctx, insertCredito, credito)
	return err
}

func (r *creditoRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Credito, error) {
	query := `SELECT ` + creditoColumns + ` FROM creditos WHERE id = $1`

	var credito domain.Credito
	if err := r.db.GetContext(ctx, &credito, query, id); err != nil {
		return nil, err
	}
	return &credito, nil
}

func (r *creditoRepository) List(ctx context.Context, filter CreditoFilter) ([]*domain.Credito, error) {
	query := `SELECT ` + creditoColumns + ` FROM creditos WHERE 1=1`
	args := []interface{}{}

	if filter.AsociadoID > 0 {
		args = append(args, filter.AsociadoID)
		query += fmt.Sprintf(" AND asociado_id = $%d", len(args))
	}
	if filter.Estado != "" {
		args = append(args, filter.Estado)
		query += fmt.Sprintf(" AND estado = $%d", len(args))
	}
	if filter.TipoCredito != "" {
		args = append(args, filter.TipoCredito)
		query += fmt.Sprintf(" AND tipo_credito = $%d", len(args))
	}

	query += " ORDER BY fecha_solicitud DESC, numero_credito DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var creditos []*domain.Credito
	if err := r.db.SelectContext(ctx, &creditos, query, args...); err != nil {
		return nil, err
	}
	return creditos, nil
}

func (r *creditoRepository) ListByEstados(ctx context.Context, estados []string) ([]*domain.Credito, error) {
	query, args, err := sqlx.In(
		`SELECT `+creditoColumns+` FROM creditos WHERE estado IN (?) ORDER BY numero_credito`, estados)
	if err != nil {
		return nil, err
	}

	var creditos []*domain.Credito
	if err := r.db.SelectContext(ctx, &creditos, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return creditos, nil
}

func (r *creditoRepository) Update(ctx context.Context, credito *domain.Credito) error {
	res, err := r.db.NamedExecContext(ctx, updateCredito, credito)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.WrapConcurrentModification(credito.ID.String())
	}
	credito.Version++
	return nil
}

const insertCuota = `
	INSERT INTO cuotas (
		id, credito_id, schedule_version, numero_cuota, fecha_vencimiento,
		capital, interes, valor_cuota, saldo_pendiente,
		capital_pagado, interes_pagado, mora_pagada, valor_mora, dias_mora,
		estado, fecha_pago, created_at, updated_at
	) VALUES (
		:id, :credito_id, :schedule_version, :numero_cuota, :fecha_vencimiento,
		:capital, :interes, :valor_cuota, :saldo_pendiente,
		:capital_pagado, :interes_pagado, :mora_pagada, :valor_mora, :dias_mora,
		:estado, :fecha_pago, now(), now()
	)`

const updateCuota = `
	UPDATE cuotas SET
		capital_pagado = :capital_pagado,
		interes_pagado = :interes_pagado,
		mora_pagada = :mora_pagada,
		valor_mora = :valor_mora,
		dias_mora = :dias_mora,
		estado = :estado,
		fecha_pago = :fecha_pago,
		updated_at = now()
	WHERE id = :id`

func (r *creditoRepository) Disburse(ctx context.Context, credito *domain.Credito, cuotas []*domain.Cuota) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.NamedExecContext(ctx, updateCredito, credito)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return apperrors.WrapConcurrentModification(credito.ID.String())
	}

	for _, cuota := range cuotas {
		if _, err = tx.NamedExecContext(ctx, insertCuota, cuota); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	credito.Version++
	return nil
}

func (r *creditoRepository) GetSchedule(ctx context.Context, creditoID uuid.UUID, scheduleVersion int) ([]*domain.Cuota, error) {
	query := `
		SELECT id, credito_id, schedule_version, numero_cuota, fecha_vencimiento,
		       capital, interes, valor_cuota, saldo_pendiente,
		       capital_pagado, interes_pagado, mora_pagada, valor_mora, dias_mora,
		       estado, fecha_pago, created_at, updated_at
		FROM cuotas
		WHERE credito_id = $1 AND schedule_version = $2
		ORDER BY numero_cuota`

	var cuotas []*domain.Cuota
	if err := r.db.SelectContext(ctx, &cuotas, query, creditoID, scheduleVersion); err != nil {
		return nil, err
	}
	return cuotas, nil
}

func (r *creditoRepository) UpdateCuotas(ctx context.Context, credito *domain.Credito, cuotas []*domain.Cuota) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.NamedExecContext(ctx, updateCredito, credito)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return apperrors.WrapConcurrentModification(credito.ID.String())
	}

	for _, cuota := range cuotas {
		if _, err = tx.NamedExecContext(ctx, updateCuota, cuota); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	credito.Version++
	return nil
}

func (r *creditoRepository) NextConsecutivo(ctx context.Context, fecha time.Time) (int64, error) {
	prefijo := fmt.Sprintf("CR-%04d%02d-%%", fecha.Year(), int(fecha.Month()))
	query := `
		SELECT COALESCE(MAX(CAST(RIGHT(numero_credito, 6) AS INTEGER)), 0) + 1
		FROM creditos
		WHERE numero_credito LIKE $1`

	var next int64
	if err := r.db.GetContext(ctx, &next, query, prefijo); err != nil {
		return 0, err
	}
	return next, nil
}
