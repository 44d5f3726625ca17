package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coopfin/credito-engine/pkg/money"
)

// Allocation components. Every peso of a payment lands in exactly one of
// these buckets, in the fixed order mora -> interes -> capital per
// installment, oldest installment first; whatever survives the last
// installment becomes saldo a favor (credito).
const (
	ComponenteMora    = "mora"
	ComponenteInteres = "interes"
	ComponenteCapital = "capital"
	ComponenteCredito = "credito"
)

// MetodoSaldoFavor marks system payments generated when an account's credit
// balance is applied to a newly due installment.
const MetodoSaldoFavor = "saldo_a_favor"

// Pago is an immutable payment event. Corrections never delete or edit a
// pago; they add a Reversion and replay the loan's history.
type Pago struct {
	ID           uuid.UUID `json:"id" db:"id"`
	CreditoID    uuid.UUID `json:"credito_id" db:"credito_id"`
	NumeroRecibo string    `json:"numero_recibo" db:"numero_recibo"`

	Monto      money.Money `json:"-" db:"monto"`
	FechaPago  time.Time   `json:"fecha_pago" db:"fecha_pago"`
	MetodoPago string      `json:"metodo_pago" db:"metodo_pago"`
	Referencia string      `json:"referencia,omitempty" db:"referencia"`

	IdempotencyKey string `json:"idempotency_key,omitempty" db:"idempotency_key"`
	Reversado      bool   `json:"reversado" db:"reversado"`

	Observaciones string `json:"observaciones,omitempty" db:"observaciones"`
	RegistradoPor string `json:"registrado_por,omitempty" db:"registrado_por"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Abono records how one slice of a payment was applied: which installment,
// which component, how much. NumeroCuota is zero for the credit-balance
// component. The abonos of a pago always sum to its monto exactly.
type Abono struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	PagoID      uuid.UUID   `json:"pago_id" db:"pago_id"`
	CreditoID   uuid.UUID   `json:"credito_id" db:"credito_id"`
	NumeroCuota int         `json:"numero_cuota" db:"numero_cuota"`
	Componente  string      `json:"componente" db:"componente"`
	Valor       money.Money `json:"-" db:"valor"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// Reversion is the additive reversal event for a pago.
type Reversion struct {
	ID            uuid.UUID `json:"id" db:"id"`
	PagoID        uuid.UUID `json:"pago_id" db:"pago_id"`
	Motivo        string    `json:"motivo" db:"motivo"`
	RegistradoPor string    `json:"registrado_por,omitempty" db:"registrado_por"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Request / response DTOs.

type PagoRequest struct {
	Monto         decimal.Decimal `json:"monto" validate:"required"`
	FechaPago     string          `json:"fecha_pago" validate:"required"`
	MetodoPago    string          `json:"metodo_pago" validate:"required"`
	NumeroRecibo  string          `json:"numero_recibo,omitempty"`
	Observaciones string          `json:"observaciones,omitempty"`
}

type ReversarRequest struct {
	Motivo string `json:"motivo" validate:"required"`
}

type AbonoResponse struct {
	NumeroCuota int             `json:"numero_cuota"`
	Componente  string          `json:"componente"`
	Valor       decimal.Decimal `json:"valor"`
}

type PagoResponse struct {
	ID           string          `json:"id"`
	NumeroRecibo string          `json:"numero_recibo"`
	CreditoID    string          `json:"credito_id"`
	Monto        decimal.Decimal `json:"monto"`
	FechaPago    string          `json:"fecha_pago"`
	MetodoPago   string          `json:"metodo_pago"`
	Reversado    bool            `json:"reversado"`
	Abonos       []*AbonoResponse `json:"abonos,omitempty"`
}

// NewPagoResponse renders a payment and its allocation breakdown.
func NewPagoResponse(p *Pago, abonos []*Abono, scale int32) *PagoResponse {
	r := &PagoResponse{
		ID:           p.ID.String(),
		NumeroRecibo: p.NumeroRecibo,
		CreditoID:    p.CreditoID.String(),
		Monto:        p.Monto.Decimal(scale),
		FechaPago:    p.FechaPago.Format("2006-01-02"),
		MetodoPago:   p.MetodoPago,
		Reversado:    p.Reversado,
	}
	for _, a := range abonos {
		r.Abonos = append(r.Abonos, &AbonoResponse{
			NumeroCuota: a.NumeroCuota,
			Componente:  a.Componente,
			Valor:       a.Valor.Decimal(scale),
		})
	}
	return r
}
