package domain

import (
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/coopfin/credito-engine/pkg/errors"
	"github.com/coopfin/credito-engine/pkg/money"
	"github.com/coopfin/credito-engine/pkg/utils"
)

// ScheduleParams is everything the amortization builder needs. The same
// parameters drive both a real disbursement and a simulation, which is what
// makes simulation quotes bit-identical to the materialized schedule.
type ScheduleParams struct {
	CreditoID       uuid.UUID
	ScheduleVersion int
	Principal       money.Money
	TasaMensualBp   int64
	PlazoMeses      int
	Modalidad       string
	TipoCuota       string
	FechaDesembolso time.Time
}

// TasaToBp converts a monthly percentage rate from the wire (2.00 = 2%) to
// basis points. Rates with sub-basis-point precision are rejected.
func TasaToBp(tasa decimal.Decimal) (int64, error) {
	shifted := tasa.Shift(2)
	if !shifted.IsInteger() || !shifted.BigInt().IsInt64() {
		return 0, apperrors.WrapInvalidLoanTerms("tasa_interes", "must be a basis-point multiple")
	}
	return shifted.IntPart(), nil
}

// periodicRate returns the per-period interest rate as an exact rational.
// The monthly rate is scaled to the cadence: half a month for quincenal,
// 12/52 of a month for semanal. Rational form keeps the annuity arithmetic
// free of floating point.
func periodicRate(bp int64, modalidad string) (num, den int64) {
	switch modalidad {
	case ModalidadQuincenal:
		return bp, 20000
	case ModalidadSemanal:
		return bp * 12, 520000
	default:
		return bp, 10000
	}
}

// dueDate returns the due date of the n-th installment (1-based) counted
// from the disbursement date.
func dueDate(desembolso time.Time, modalidad string, n int) time.Time {
	switch modalidad {
	case ModalidadQuincenal:
		return utils.Truncate(desembolso).AddDate(0, 0, 15*n)
	case ModalidadSemanal:
		return utils.Truncate(desembolso).AddDate(0, 0, 7*n)
	default:
		return utils.AddMonths(utils.Truncate(desembolso), n)
	}
}

// fixedInstallment computes the French-system payment
//
//	P * r * (1+r)^n / ((1+r)^n - 1)
//
// entirely in big integers: with r = num/den the expression reduces to
// P*num*(den+num)^n / (den*((den+num)^n - den^n)), rounded half-up once.
func fixedInstallment(principal money.Money, num, den int64, n int) (money.Money, error) {
	if num == 0 {
		return principal.DivRound(int64(n))
	}
	a := new(big.Int).Exp(big.NewInt(den+num), big.NewInt(int64(n)), nil)
	b := new(big.Int).Exp(big.NewInt(den), big.NewInt(int64(n)), nil)

	numerator := new(big.Int).Mul(big.NewInt(principal.Minor()), big.NewInt(num))
	numerator.Mul(numerator, a)
	denominator := new(big.Int).Mul(big.NewInt(den), new(big.Int).Sub(a, b))

	return money.RoundRatio(numerator, denominator)
}

// GenerateSchedule builds the full installment sequence for the given terms.
// For tipo_cuota fija the payment is constant and the last installment's
// capital absorbs the accumulated rounding residual, so that the capital
// column sums to the principal exactly; that adjustment is intentional, not
// a rounding defect. For variable, capital is split evenly (residual again
// on the last installment) and interest rides the declining balance.
func GenerateSchedule(p ScheduleParams) ([]*Cuota, error) {
	if p.PlazoMeses <= 0 {
		return nil, apperrors.WrapInvalidLoanTerms("plazo_meses", "must be greater than zero")
	}
	if p.TasaMensualBp < 0 {
		return nil, apperrors.WrapInvalidLoanTerms("tasa_interes", "must not be negative")
	}
	if !p.Principal.IsPositive() {
		return nil, apperrors.WrapInvalidLoanTerms("monto", "must be greater than zero")
	}

	num, den := periodicRate(p.TasaMensualBp, p.Modalidad)
	n := p.PlazoMeses

	var cuotaFija money.Money
	var capitalBase money.Money
	var err error
	if p.TipoCuota == CuotaVariable {
		capitalBase, err = p.Principal.DivFloor(int64(n))
	} else {
		cuotaFija, err = fixedInstallment(p.Principal, num, den, n)
	}
	if err != nil {
		return nil, apperrors.WrapOverflow(err)
	}

	cuotas := make([]*Cuota, 0, n)
	remaining := p.Principal

	for i := 1; i <= n; i++ {
		interes, err := remaining.MulRate(num, den)
		if err != nil {
			return nil, apperrors.WrapOverflow(err)
		}

		var capital money.Money
		if p.TipoCuota == CuotaVariable {
			capital = capitalBase
		} else {
			capital = cuotaFija.SubNonNeg(interes)
		}
		if i == n || remaining.LessThan(capital) {
			capital = remaining
		}

		valor, err := capital.Add(interes)
		if err != nil {
			return nil, apperrors.WrapOverflow(err)
		}

		remaining = remaining.SubNonNeg(capital)

		cuotas = append(cuotas, &Cuota{
			ID:               uuid.New(),
			CreditoID:        p.CreditoID,
			ScheduleVersion:  p.ScheduleVersion,
			NumeroCuota:      i,
			FechaVencimiento: dueDate(p.FechaDesembolso, p.Modalidad, i),
			Capital:          capital,
			Interes:          interes,
			ValorCuota:       valor,
			SaldoPendiente:   remaining,
			Estado:           EstadoCuotaPendiente,
		})
	}

	if err := VerifySchedule(p.Principal, cuotas); err != nil {
		return nil, err
	}

	return cuotas, nil
}

// VerifySchedule checks that the capital column reconciles to the principal
// exactly. A mismatch is fatal and blocks disbursement; it is never silently
// corrected.
func VerifySchedule(principal money.Money, cuotas []*Cuota) error {
	var sum int64
	for _, q := range cuotas {
		sum += q.Capital.Minor()
	}
	if sum != principal.Minor() {
		return apperrors.WrapScheduleMismatch(principal.Minor(), sum)
	}
	return nil
}

// ScheduleTotals folds a schedule into its interest and grand totals.
func ScheduleTotals(cuotas []*Cuota) (interes, total money.Money, err error) {
	for _, q := range cuotas {
		if interes, err = interes.Add(q.Interes); err != nil {
			return money.Money{}, money.Money{}, apperrors.WrapOverflow(err)
		}
		if total, err = total.Add(q.ValorCuota); err != nil {
			return money.Money{}, money.Money{}, apperrors.WrapOverflow(err)
		}
	}
	return interes, total, nil
}
