package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/coopfin/credito-engine/pkg/errors"
	"github.com/coopfin/credito-engine/pkg/money"
)

func fecha(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestGenerateSchedule_FrenchSystem(t *testing.T) {
	// 1,000,000 at 2% monthly over 12 months.
	cuotas, err := GenerateSchedule(ScheduleParams{
		CreditoID:       uuid.New(),
		ScheduleVersion: 1,
		Principal:       money.FromMinor(1_000_000),
		TasaMensualBp:   200,
		PlazoMeses:      12,
		Modalidad:       ModalidadMensual,
		TipoCuota:       CuotaFija,
		FechaDesembolso: fecha("2026-01-15"),
	})
	require.NoError(t, err)
	require.Len(t, cuotas, 12)

	assert.Equal(t, int64(94_560), cuotas[0].ValorCuota.Minor())
	assert.Equal(t, int64(20_000), cuotas[0].Interes.Minor())
	assert.Equal(t, int64(74_560), cuotas[0].Capital.Minor())
	assert.Equal(t, fecha("2026-02-15"), cuotas[0].FechaVencimiento)

	// Installments 1..11 carry the constant payment; the last one absorbs
	// the rounding residual on capital.
	for i := 0; i < 11; i++ {
		assert.Equal(t, int64(94_560), cuotas[i].ValorCuota.Minor(), "cuota %d", i+1)
	}
	last := cuotas[11]
	assert.Equal(t, int64(92_701), last.Capital.Minor())
	assert.Equal(t, int64(1_854), last.Interes.Minor())
	assert.Equal(t, int64(94_555), last.ValorCuota.Minor())
	assert.Equal(t, fecha("2027-01-15"), last.FechaVencimiento)
	assert.True(t, last.SaldoPendiente.IsZero())

	interes, total, err := ScheduleTotals(cuotas)
	require.NoError(t, err)
	assert.Equal(t, int64(134_715), interes.Minor())
	assert.Equal(t, int64(1_134_715), total.Minor())

	assert.NoError(t, VerifySchedule(money.FromMinor(1_000_000), cuotas))
}

func TestGenerateSchedule_VariableCapital(t *testing.T) {
	cuotas, err := GenerateSchedule(ScheduleParams{
		CreditoID:       uuid.New(),
		ScheduleVersion: 1,
		Principal:       money.FromMinor(1_200_000),
		TasaMensualBp:   200,
		PlazoMeses:      12,
		Modalidad:       ModalidadMensual,
		TipoCuota:       CuotaVariable,
		FechaDesembolso: fecha("2026-01-15"),
	})
	require.NoError(t, err)
	require.Len(t, cuotas, 12)

	// Even capital split, interest riding the declining balance.
	for _, q := range cuotas {
		assert.Equal(t, int64(100_000), q.Capital.Minor())
	}
	assert.Equal(t, int64(24_000), cuotas[0].Interes.Minor())
	assert.Equal(t, int64(124_000), cuotas[0].ValorCuota.Minor())
	assert.Equal(t, int64(2_000), cuotas[11].Interes.Minor())
	assert.Equal(t, int64(102_000), cuotas[11].ValorCuota.Minor())
	assert.NoError(t, VerifySchedule(money.FromMinor(1_200_000), cuotas))
}

func TestGenerateSchedule_ZeroRate(t *testing.T) {
	cuotas, err := GenerateSchedule(ScheduleParams{
		CreditoID:       uuid.New(),
		Principal:       money.FromMinor(1_000),
		TasaMensualBp:   0,
		PlazoMeses:      3,
		Modalidad:       ModalidadMensual,
		TipoCuota:       CuotaFija,
		FechaDesembolso: fecha("2026-01-15"),
	})
	require.NoError(t, err)
	require.Len(t, cuotas, 3)

	assert.Equal(t, int64(333), cuotas[0].Capital.Minor())
	assert.Equal(t, int64(333), cuotas[1].Capital.Minor())
	assert.Equal(t, int64(334), cuotas[2].Capital.Minor())
	for _, q := range cuotas {
		assert.True(t, q.Interes.IsZero())
	}
	assert.NoError(t, VerifySchedule(money.FromMinor(1_000), cuotas))
}

func TestGenerateSchedule_SingleInstallment(t *testing.T) {
	cuotas, err := GenerateSchedule(ScheduleParams{
		CreditoID:       uuid.New(),
		Principal:       money.FromMinor(500_000),
		TasaMensualBp:   150,
		PlazoMeses:      1,
		Modalidad:       ModalidadMensual,
		TipoCuota:       CuotaFija,
		FechaDesembolso: fecha("2026-03-10"),
	})
	require.NoError(t, err)
	require.Len(t, cuotas, 1)
	assert.Equal(t, int64(500_000), cuotas[0].Capital.Minor())
	assert.Equal(t, int64(7_500), cuotas[0].Interes.Minor())
}

func TestGenerateSchedule_Cadences(t *testing.T) {
	base := ScheduleParams{
		CreditoID:       uuid.New(),
		Principal:       money.FromMinor(600_000),
		TasaMensualBp:   200,
		PlazoMeses:      6,
		TipoCuota:       CuotaFija,
		FechaDesembolso: fecha("2026-01-31"),
	}

	base.Modalidad = ModalidadQuincenal
	quincenal, err := GenerateSchedule(base)
	require.NoError(t, err)
	assert.Equal(t, fecha("2026-02-15"), quincenal[0].FechaVencimiento)
	// Half the monthly rate: 600,000 * 1% = 6,000.
	assert.Equal(t, int64(6_000), quincenal[0].Interes.Minor())

	base.Modalidad = ModalidadSemanal
	semanal, err := GenerateSchedule(base)
	require.NoError(t, err)
	assert.Equal(t, fecha("2026-02-07"), semanal[0].FechaVencimiento)

	base.Modalidad = ModalidadMensual
	mensual, err := GenerateSchedule(base)
	require.NoError(t, err)
	// Month-end clamp: Jan 31 + 1 month is Feb 28, +2 is Mar 31.
	assert.Equal(t, fecha("2026-02-28"), mensual[0].FechaVencimiento)
	assert.Equal(t, fecha("2026-03-31"), mensual[1].FechaVencimiento)
}

func TestGenerateSchedule_InvalidTerms(t *testing.T) {
	valid := ScheduleParams{
		CreditoID:       uuid.New(),
		Principal:       money.FromMinor(1_000_000),
		TasaMensualBp:   200,
		PlazoMeses:      12,
		Modalidad:       ModalidadMensual,
		TipoCuota:       CuotaFija,
		FechaDesembolso: fecha("2026-01-15"),
	}

	p := valid
	p.PlazoMeses = 0
	_, err := GenerateSchedule(p)
	assert.Equal(t, apperrors.ErrCodeInvalidLoanTerms, apperrors.CodeOf(err))

	p = valid
	p.Principal = money.Money{}
	_, err = GenerateSchedule(p)
	assert.Equal(t, apperrors.ErrCodeInvalidLoanTerms, apperrors.CodeOf(err))

	p = valid
	p.TasaMensualBp = -1
	_, err = GenerateSchedule(p)
	assert.Equal(t, apperrors.ErrCodeInvalidLoanTerms, apperrors.CodeOf(err))
}

func TestVerifySchedule_Mismatch(t *testing.T) {
	cuotas := []*Cuota{
		{Capital: money.FromMinor(500)},
		{Capital: money.FromMinor(499)},
	}
	err := VerifySchedule(money.FromMinor(1_000), cuotas)
	assert.Equal(t, apperrors.ErrCodeScheduleMismatch, apperrors.CodeOf(err))
}

func TestTasaToBp(t *testing.T) {
	bp, err := TasaToBp(decimal.RequireFromString("2.00"))
	require.NoError(t, err)
	assert.Equal(t, int64(200), bp)

	bp, err = TasaToBp(decimal.RequireFromString("1.75"))
	require.NoError(t, err)
	assert.Equal(t, int64(175), bp)

	_, err = TasaToBp(decimal.RequireFromString("2.125"))
	assert.Equal(t, apperrors.ErrCodeInvalidLoanTerms, apperrors.CodeOf(err))
}
