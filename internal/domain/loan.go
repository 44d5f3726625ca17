package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/coopfin/credito-engine/pkg/errors"
	"github.com/coopfin/credito-engine/pkg/money"
)

// Credit lifecycle states. Terminal states are rechazado, cancelado and
// castigado; a credit row is never deleted once any of them is reached.
const (
	EstadoSolicitado   = "solicitado"
	EstadoEnEstudio    = "en_estudio"
	EstadoAprobado     = "aprobado"
	EstadoRechazado    = "rechazado"
	EstadoDesembolsado = "desembolsado"
	EstadoActivo       = "activo"
	EstadoCancelado    = "cancelado"
	EstadoCastigado    = "castigado"
)

// Credit types offered by the cooperative.
const (
	TipoConsumo        = "consumo"
	TipoVivienda       = "vivienda"
	TipoVehiculo       = "vehiculo"
	TipoEducacion      = "educacion"
	TipoMicroempresa   = "microempresa"
	TipoLibreInversion = "libre_inversion"
	TipoOtro           = "otro"
)

// Payment cadence and amortization system.
const (
	ModalidadMensual   = "mensual"
	ModalidadQuincenal = "quincenal"
	ModalidadSemanal   = "semanal"

	CuotaFija     = "fija"
	CuotaVariable = "variable"
)

// transitions is the only legal way Estado changes. Every mutating operation
// checks its source state here before touching anything else.
var transitions = map[string]map[string]bool{
	EstadoSolicitado:   {EstadoEnEstudio: true, EstadoAprobado: true, EstadoRechazado: true},
	EstadoEnEstudio:    {EstadoAprobado: true, EstadoRechazado: true},
	EstadoAprobado:     {EstadoDesembolsado: true},
	EstadoDesembolsado: {EstadoActivo: true, EstadoCancelado: true, EstadoCastigado: true},
	EstadoActivo:       {EstadoCancelado: true, EstadoCastigado: true},
}

// CanTransition reports whether from -> to is a declared lifecycle edge.
func CanTransition(from, to string) bool {
	return transitions[from][to]
}

// EstadoAceptaPagos reports whether payments can be applied in the given state.
func EstadoAceptaPagos(estado string) bool {
	return estado == EstadoDesembolsado || estado == EstadoActivo
}

// Credito is the loan account aggregate. Balances (saldo_*) are materialized
// projections of the cuota/pago history; RebuildBalances recomputes them from
// scratch to detect drift. Version backs optimistic locking.
type Credito struct {
	ID            uuid.UUID `json:"id" db:"id"`
	NumeroCredito string    `json:"numero_credito" db:"numero_credito"`
	AsociadoID    int64     `json:"asociado_id" db:"asociado_id"`

	TipoCredito       string      `json:"tipo_credito" db:"tipo_credito"`
	MontoSolicitado   money.Money `json:"-" db:"monto_solicitado"`
	MontoAprobado     money.Money `json:"-" db:"monto_aprobado"`
	MontoDesembolsado money.Money `json:"-" db:"monto_desembolsado"`
	TasaMensualBp     int64       `json:"tasa_mensual_bp" db:"tasa_mensual_bp"`
	PlazoMeses        int         `json:"plazo_meses" db:"plazo_meses"`
	ModalidadPago     string      `json:"modalidad_pago" db:"modalidad_pago"`
	TipoCuota         string      `json:"tipo_cuota" db:"tipo_cuota"`

	Destino                string `json:"destino" db:"destino"`
	Garantia               string `json:"garantia,omitempty" db:"garantia"`
	NumeroCuentaDesembolso string `json:"numero_cuenta_desembolso,omitempty" db:"numero_cuenta_desembolso"`

	Estado        string `json:"estado" db:"estado"`
	MotivoRechazo string `json:"motivo_rechazo,omitempty" db:"motivo_rechazo"`
	MotivoCastigo string `json:"motivo_castigo,omitempty" db:"motivo_castigo"`
	Observaciones string `json:"observaciones,omitempty" db:"observaciones"`

	FechaSolicitud  time.Time  `json:"fecha_solicitud" db:"fecha_solicitud"`
	FechaAprobacion *time.Time `json:"fecha_aprobacion,omitempty" db:"fecha_aprobacion"`
	FechaDesembolso *time.Time `json:"fecha_desembolso,omitempty" db:"fecha_desembolso"`
	FechaUltimoPago *time.Time `json:"fecha_ultimo_pago,omitempty" db:"fecha_ultimo_pago"`

	// Frozen at approval.
	ValorCuota     money.Money `json:"-" db:"valor_cuota"`
	TotalIntereses money.Money `json:"-" db:"total_intereses"`
	TotalAPagar    money.Money `json:"-" db:"total_a_pagar"`

	// Materialized balances, recomputed on every payment.
	SaldoCapital money.Money `json:"-" db:"saldo_capital"`
	SaldoInteres money.Money `json:"-" db:"saldo_interes"`
	SaldoMora    money.Money `json:"-" db:"saldo_mora"`
	SaldoFavor   money.Money `json:"-" db:"saldo_favor"`
	DiasMora     int         `json:"dias_mora" db:"dias_mora"`

	ScheduleVersion int `json:"schedule_version" db:"schedule_version"`

	SolicitadoPor   string `json:"solicitado_por,omitempty" db:"solicitado_por"`
	AprobadoPor     string `json:"aprobado_por,omitempty" db:"aprobado_por"`
	DesembolsadoPor string `json:"desembolsado_por,omitempty" db:"desembolsado_por"`

	Version   int64     `json:"-" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Transition moves the credit to a new state, failing without mutation when
// the edge is not declared.
func (c *Credito) Transition(to, operation string) error {
	if !CanTransition(c.Estado, to) {
		return apperrors.WrapInvalidStateTransition(c.Estado, operation)
	}
	c.Estado = to
	return nil
}

// DTOs for requests and responses. Field names are bit-exact with the
// consumed frontend contract; amounts cross the boundary as decimals and are
// converted to minor units immediately after validation.

type SolicitarRequest struct {
	AsociadoID      int64           `json:"asociado_id" validate:"required,gt=0"`
	TipoCredito     string          `json:"tipo_credito" validate:"required,oneof=consumo vivienda vehiculo educacion microempresa libre_inversion otro"`
	MontoSolicitado decimal.Decimal `json:"monto_solicitado" validate:"required"`
	PlazoMeses      int             `json:"plazo_meses" validate:"required,gt=0"`
	TasaInteres     decimal.Decimal `json:"tasa_interes" validate:"required"`
	Destino         string          `json:"destino" validate:"required"`
	Garantia        string          `json:"garantia,omitempty"`
	ModalidadPago   string          `json:"modalidad_pago,omitempty" validate:"omitempty,oneof=mensual quincenal semanal"`
	TipoCuota       string          `json:"tipo_cuota,omitempty" validate:"omitempty,oneof=fija variable"`
	FechaSolicitud  string          `json:"fecha_solicitud" validate:"required"`
	Observaciones   string          `json:"observaciones,omitempty"`
}

type AprobarRequest struct {
	MontoAprobado decimal.Decimal `json:"monto_aprobado" validate:"required"`
	Observaciones string          `json:"observaciones,omitempty"`
}

type RechazarRequest struct {
	MotivoRechazo string `json:"motivo_rechazo" validate:"required"`
}

type DesembolsarRequest struct {
	MontoDesembolsado      decimal.Decimal `json:"monto_desembolsado" validate:"required"`
	FechaDesembolso        string          `json:"fecha_desembolso" validate:"required"`
	NumeroCuentaDesembolso string          `json:"numero_cuenta_desembolso,omitempty"`
	Observaciones          string          `json:"observaciones,omitempty"`
}

type CastigarRequest struct {
	Motivo string `json:"motivo" validate:"required"`
}

type SimularRequest struct {
	Monto         decimal.Decimal `json:"monto" validate:"required"`
	PlazoMeses    int             `json:"plazo_meses" validate:"required,gt=0"`
	TasaInteres   decimal.Decimal `json:"tasa_interes" validate:"required"`
	ModalidadPago string          `json:"modalidad_pago,omitempty" validate:"omitempty,oneof=mensual quincenal semanal"`
	TipoCuota     string          `json:"tipo_cuota,omitempty" validate:"omitempty,oneof=fija variable"`
}

type SimulacionResponse struct {
	ValorCuota     decimal.Decimal  `json:"valor_cuota"`
	TotalIntereses decimal.Decimal  `json:"total_intereses"`
	TotalAPagar    decimal.Decimal  `json:"total_a_pagar"`
	PlazoMeses     int              `json:"plazo_meses"`
	Cuotas         []*CuotaResponse `json:"tabla_amortizacion,omitempty"`
}

// CreditoResponse is the read projection served to the frontend.
type CreditoResponse struct {
	ID                string          `json:"id"`
	NumeroCredito     string          `json:"numero_credito"`
	AsociadoID        int64           `json:"asociado_id"`
	TipoCredito       string          `json:"tipo_credito"`
	MontoSolicitado   decimal.Decimal `json:"monto_solicitado"`
	MontoAprobado     decimal.Decimal `json:"monto_aprobado"`
	MontoDesembolsado decimal.Decimal `json:"monto_desembolsado"`
	TasaInteres       decimal.Decimal `json:"tasa_interes"`
	PlazoMeses        int             `json:"plazo_meses"`
	ModalidadPago     string          `json:"modalidad_pago"`
	TipoCuota         string          `json:"tipo_cuota"`
	Destino           string          `json:"destino"`
	Garantia          string          `json:"garantia,omitempty"`
	Estado            string          `json:"estado"`
	MotivoRechazo     string          `json:"motivo_rechazo,omitempty"`
	FechaSolicitud    string          `json:"fecha_solicitud"`
	FechaAprobacion   string          `json:"fecha_aprobacion,omitempty"`
	FechaDesembolso   string          `json:"fecha_desembolso,omitempty"`
	FechaUltimoPago   string          `json:"fecha_ultimo_pago,omitempty"`
	ValorCuota        decimal.Decimal `json:"valor_cuota"`
	TotalIntereses    decimal.Decimal `json:"total_intereses"`
	TotalAPagar       decimal.Decimal `json:"total_a_pagar"`
	SaldoCapital      decimal.Decimal `json:"saldo_capital"`
	SaldoInteres      decimal.Decimal `json:"saldo_interes"`
	SaldoMora         decimal.Decimal `json:"saldo_mora"`
	SaldoFavor        decimal.Decimal `json:"saldo_favor"`
	DiasMora          int             `json:"dias_mora"`
	Observaciones     string          `json:"observaciones,omitempty"`
}

// NewCreditoResponse renders a credit at the given currency scale.
func NewCreditoResponse(c *Credito, scale int32) *CreditoResponse {
	r := &CreditoResponse{
		ID:                c.ID.String(),
		NumeroCredito:     c.NumeroCredito,
		AsociadoID:        c.AsociadoID,
		TipoCredito:       c.TipoCredito,
		MontoSolicitado:   c.MontoSolicitado.Decimal(scale),
		MontoAprobado:     c.MontoAprobado.Decimal(scale),
		MontoDesembolsado: c.MontoDesembolsado.Decimal(scale),
		TasaInteres:       decimal.New(c.TasaMensualBp, -2),
		PlazoMeses:        c.PlazoMeses,
		ModalidadPago:     c.ModalidadPago,
		TipoCuota:         c.TipoCuota,
		Destino:           c.Destino,
		Garantia:          c.Garantia,
		Estado:            c.Estado,
		MotivoRechazo:     c.MotivoRechazo,
		FechaSolicitud:    c.FechaSolicitud.Format("2006-01-02"),
		ValorCuota:        c.ValorCuota.Decimal(scale),
		TotalIntereses:    c.TotalIntereses.Decimal(scale),
		TotalAPagar:       c.TotalAPagar.Decimal(scale),
		SaldoCapital:      c.SaldoCapital.Decimal(scale),
		SaldoInteres:      c.SaldoInteres.Decimal(scale),
		SaldoMora:         c.SaldoMora.Decimal(scale),
		SaldoFavor:        c.SaldoFavor.Decimal(scale),
		DiasMora:          c.DiasMora,
		Observaciones:     c.Observaciones,
	}
	if c.FechaAprobacion != nil {
		r.FechaAprobacion = c.FechaAprobacion.Format("2006-01-02")
	}
	if c.FechaDesembolso != nil {
		r.FechaDesembolso = c.FechaDesembolso.Format("2006-01-02")
	}
	if c.FechaUltimoPago != nil {
		r.FechaUltimoPago = c.FechaUltimoPago.Format("2006-01-02")
	}
	return r
}
