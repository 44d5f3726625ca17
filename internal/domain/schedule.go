package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coopfin/credito-engine/pkg/money"
)

// Installment states. A cuota is vencida once its due date passes unpaid;
// parcial when something has been applied but it is not settled.
const (
	EstadoCuotaPendiente = "pendiente"
	EstadoCuotaParcial   = "parcial"
	EstadoCuotaPagada    = "pagada"
	EstadoCuotaVencida   = "vencida"
)

// Cuota is one installment of a credit's amortization schedule. The schedule
// is materialized once at disbursement; a restructuring would supersede it
// under a higher ScheduleVersion rather than rewrite history. The *Pagado
// fields are accumulators and never decrease outside a full history replay.
type Cuota struct {
	ID              uuid.UUID `json:"id" db:"id"`
	CreditoID       uuid.UUID `json:"credito_id" db:"credito_id"`
	ScheduleVersion int       `json:"schedule_version" db:"schedule_version"`
	NumeroCuota     int       `json:"numero_cuota" db:"numero_cuota"`

	FechaVencimiento time.Time `json:"fecha_vencimiento" db:"fecha_vencimiento"`

	Capital        money.Money `json:"-" db:"capital"`
	Interes        money.Money `json:"-" db:"interes"`
	ValorCuota     money.Money `json:"-" db:"valor_cuota"`
	SaldoPendiente money.Money `json:"-" db:"saldo_pendiente"`

	CapitalPagado money.Money `json:"-" db:"capital_pagado"`
	InteresPagado money.Money `json:"-" db:"interes_pagado"`
	MoraPagada    money.Money `json:"-" db:"mora_pagada"`
	ValorMora     money.Money `json:"-" db:"valor_mora"`
	DiasMora      int         `json:"dias_mora" db:"dias_mora"`

	Estado    string     `json:"estado" db:"estado"`
	FechaPago *time.Time `json:"fecha_pago,omitempty" db:"fecha_pago"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CapitalPendiente returns the unpaid capital portion.
func (q *Cuota) CapitalPendiente() money.Money {
	return q.Capital.SubNonNeg(q.CapitalPagado)
}

// InteresPendiente returns the unpaid interest portion.
func (q *Cuota) InteresPendiente() money.Money {
	return q.Interes.SubNonNeg(q.InteresPagado)
}

// MoraPendiente returns accrued, unpaid arrears charges.
func (q *Cuota) MoraPendiente() money.Money {
	return q.ValorMora.SubNonNeg(q.MoraPagada)
}

// Saldada reports whether capital and interest are fully covered. Mora keeps
// accruing on a cuota only while it is not saldada, so it is excluded here.
func (q *Cuota) Saldada() bool {
	return q.CapitalPagado.Equal(q.Capital) && q.InteresPagado.Equal(q.Interes)
}

// Vencida reports whether the cuota is past due and unsettled as of a date.
func (q *Cuota) Vencida(asOf time.Time) bool {
	return !q.Saldada() && q.FechaVencimiento.Before(asOf)
}

// RefreshEstado re-derives the status token from the accumulators and the
// evaluation date. Pagada wins; vencida wins over parcial.
func (q *Cuota) RefreshEstado(asOf time.Time) {
	switch {
	case q.Saldada() && q.MoraPendiente().IsZero():
		q.Estado = EstadoCuotaPagada
	case q.Vencida(asOf) || q.MoraPendiente().IsPositive():
		q.Estado = EstadoCuotaVencida
	case q.CapitalPagado.IsPositive() || q.InteresPagado.IsPositive():
		q.Estado = EstadoCuotaParcial
	default:
		q.Estado = EstadoCuotaPendiente
	}
}

// CuotaResponse is one row of the amortization table as the frontend reads it.
type CuotaResponse struct {
	NumeroCuota      int             `json:"numero_cuota"`
	FechaVencimiento string          `json:"fecha_vencimiento"`
	Capital          decimal.Decimal `json:"capital"`
	Interes          decimal.Decimal `json:"interes"`
	Cuota            decimal.Decimal `json:"cuota"`
	Saldo            decimal.Decimal `json:"saldo"`
	Pagado           decimal.Decimal `json:"pagado"`
	Estado           string          `json:"estado"`
}

// NewCuotaResponse renders an installment at the given currency scale.
// Pagado covers everything applied to the cuota, arrears included.
func NewCuotaResponse(q *Cuota, scale int32) *CuotaResponse {
	pagado := q.CapitalPagado.Minor() + q.InteresPagado.Minor() + q.MoraPagada.Minor()
	return &CuotaResponse{
		NumeroCuota:      q.NumeroCuota,
		FechaVencimiento: q.FechaVencimiento.Format("2006-01-02"),
		Capital:          q.Capital.Decimal(scale),
		Interes:          q.Interes.Decimal(scale),
		Cuota:            q.ValorCuota.Decimal(scale),
		Saldo:            q.SaldoPendiente.Decimal(scale),
		Pagado:           money.FromMinor(pagado).Decimal(scale),
		Estado:           q.Estado,
	}
}
