package domain

import (
	"github.com/shopspring/decimal"
)

// Portfolio (cartera) report DTOs. Reporting is read-only: everything here
// is derived from committed credit and schedule state as of a cut date.

type CreditoCartera struct {
	NumeroCredito     string          `json:"numero_credito"`
	AsociadoID        int64           `json:"asociado_id"`
	TipoCredito       string          `json:"tipo_credito"`
	Estado            string          `json:"estado"`
	MontoDesembolsado decimal.Decimal `json:"monto_desembolsado"`
	SaldoCapital      decimal.Decimal `json:"saldo_capital"`
	SaldoInteres      decimal.Decimal `json:"saldo_interes"`
	SaldoMora         decimal.Decimal `json:"saldo_mora"`
	DiasMora          int             `json:"dias_mora"`
	RangoMora         string          `json:"rango_mora,omitempty"`
	Provision         decimal.Decimal `json:"provision"`
	FechaDesembolso   string          `json:"fecha_desembolso,omitempty"`
	FechaUltimoPago   string          `json:"fecha_ultimo_pago,omitempty"`
}

type EstadisticasCartera struct {
	TotalCreditos    int             `json:"total_creditos"`
	CarteraTotal     decimal.Decimal `json:"cartera_total"`
	CarteraAlDia     decimal.Decimal `json:"cartera_al_dia"`
	CarteraMora      decimal.Decimal `json:"cartera_mora"`
	CarteraCastigada decimal.Decimal `json:"cartera_castigada"`
	CreditosMora     int             `json:"creditos_mora"`
	TasaMora         decimal.Decimal `json:"tasa_mora"`
	MontoProvision   decimal.Decimal `json:"monto_provision"`
}

type TotalPorTipo struct {
	Creditos int             `json:"creditos"`
	Total    decimal.Decimal `json:"total"`
}

type ReporteCartera struct {
	FechaCorte   string                   `json:"fecha_corte"`
	Estadisticas *EstadisticasCartera     `json:"estadisticas"`
	Creditos     []*CreditoCartera        `json:"creditos"`
	PorTipo      map[string]*TotalPorTipo `json:"por_tipo"`
}

// Mora report DTOs.

type CreditoMora struct {
	NumeroCredito   string          `json:"numero_credito"`
	AsociadoID      int64           `json:"asociado_id"`
	TipoCredito     string          `json:"tipo_credito"`
	SaldoCapital    decimal.Decimal `json:"saldo_capital"`
	SaldoMora       decimal.Decimal `json:"saldo_mora"`
	DiasMora        int             `json:"dias_mora"`
	RangoMora       string          `json:"rango_mora"`
	Provision       decimal.Decimal `json:"provision"`
	FechaUltimoPago string          `json:"fecha_ultimo_pago,omitempty"`
}

type RangoMora struct {
	Creditos int             `json:"creditos"`
	Monto    decimal.Decimal `json:"monto"`
}

type ReporteMora struct {
	FechaCorte        string                `json:"fecha_corte"`
	DiasMoraMinimo    int                   `json:"dias_mora_minimo"`
	TotalCreditosMora int                   `json:"total_creditos_mora"`
	MontoTotalMora    decimal.Decimal       `json:"monto_total_mora"`
	Creditos          []*CreditoMora        `json:"creditos"`
	PorRango          map[string]*RangoMora `json:"por_rango"`
}

// ReplayResult reports a balance rebuild: the state recomputed from the full
// payment history next to what the materialized projection said before, so
// drift is visible to auditors.
type ReplayResult struct {
	Credito *CreditoResponse `json:"credito"`
	Drift   bool             `json:"drift"`

	SaldoCapitalAnterior decimal.Decimal `json:"saldo_capital_anterior"`
	SaldoInteresAnterior decimal.Decimal `json:"saldo_interes_anterior"`
	SaldoMoraAnterior    decimal.Decimal `json:"saldo_mora_anterior"`
	SaldoFavorAnterior   decimal.Decimal `json:"saldo_favor_anterior"`
}
