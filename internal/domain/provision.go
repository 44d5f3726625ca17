package domain

import (
	apperrors "github.com/coopfin/credito-engine/pkg/errors"
	"github.com/coopfin/credito-engine/pkg/money"
)

// ProvisionTable maps a mora band to the required reserve percentage in
// basis points. The rates are regulatory policy and arrive from
// configuration; nothing here hardcodes them.
type ProvisionTable struct {
	Banda1a30Bp  int64
	Banda31a60Bp int64
	Banda61a90Bp int64
	Banda91MasBp int64
}

// RateBp returns the provision rate for a band; loans not in mora carry none.
func (t ProvisionTable) RateBp(banda string) int64 {
	switch banda {
	case Banda1a30:
		return t.Banda1a30Bp
	case Banda31a60:
		return t.Banda31a60Bp
	case Banda61a90:
		return t.Banda61a90Bp
	case Banda91Mas:
		return t.Banda91MasBp
	}
	return 0
}

// Provision computes the required reserve for a loan: the band's percentage
// applied to the outstanding capital balance (not total exposure), rounded
// half-up.
func Provision(saldoCapital money.Money, banda string, t ProvisionTable) (money.Money, error) {
	rate := t.RateBp(banda)
	if rate == 0 {
		return money.Money{}, nil
	}
	p, err := saldoCapital.MulRate(rate, 10000)
	if err != nil {
		return money.Money{}, apperrors.WrapOverflow(err)
	}
	return p, nil
}
