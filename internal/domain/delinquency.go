package domain

import (
	"time"

	apperrors "github.com/coopfin/credito-engine/pkg/errors"
	"github.com/coopfin/credito-engine/pkg/utils"
)

// Mora bands, matching the cut points of the regulatory reporting screens.
const (
	BandaNinguna = ""
	Banda1a30    = "1-30"
	Banda31a60   = "31-60"
	Banda61a90   = "61-90"
	Banda91Mas   = "91+"
)

// DiasMora returns the loan's days past due as of the evaluation date. The
// oldest unsettled installment drives the count, not the most recent one;
// the earliest unpaid obligation is what delinquency reporting classifies.
func DiasMora(cuotas []*Cuota, asOf time.Time) int {
	for _, q := range cuotas {
		if q.Vencida(asOf) {
			return utils.DaysBetween(q.FechaVencimiento, asOf)
		}
	}
	return 0
}

// BandaMora maps days past due to a reporting band. Zero days means the loan
// is not in mora.
func BandaMora(dias int) string {
	switch {
	case dias <= 0:
		return BandaNinguna
	case dias <= 30:
		return Banda1a30
	case dias <= 60:
		return Banda31a60
	case dias <= 90:
		return Banda61a90
	default:
		return Banda91Mas
	}
}

// AccrueMora recomputes the arrears charge on an overdue installment:
// the unpaid portion times the daily mora rate times days overdue. The
// accrual is monotone; a recomputation never lowers an already accrued
// charge, which keeps the arrears accumulators append-only.
func AccrueMora(q *Cuota, dailyRateBp int64, asOf time.Time) error {
	if !q.Vencida(asOf) || dailyRateBp <= 0 {
		return nil
	}
	dias := utils.DaysBetween(q.FechaVencimiento, asOf)
	if dias <= 0 {
		return nil
	}
	q.DiasMora = dias

	outstanding := q.ValorCuota.SubNonNeg(q.CapitalPagado).SubNonNeg(q.InteresPagado)
	charge, err := outstanding.MulRate(dailyRateBp*int64(dias), 10000)
	if err != nil {
		return apperrors.WrapOverflow(err)
	}
	if q.ValorMora.LessThan(charge) {
		q.ValorMora = charge
	}
	return nil
}
