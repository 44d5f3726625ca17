package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopfin/credito-engine/pkg/money"
)

func TestDiasMora_OldestUnsettledDrives(t *testing.T) {
	cuotas := []*Cuota{
		{NumeroCuota: 1, FechaVencimiento: fecha("2026-01-10"),
			Capital: money.FromMinor(100), CapitalPagado: money.FromMinor(100)},
		{NumeroCuota: 2, FechaVencimiento: fecha("2026-02-10"),
			Capital: money.FromMinor(100)},
		{NumeroCuota: 3, FechaVencimiento: fecha("2026-03-10"),
			Capital: money.FromMinor(100)},
	}

	// First installment settled; the second is the oldest open obligation.
	assert.Equal(t, 14, DiasMora(cuotas, fecha("2026-02-24")))

	// 45 days past the second installment.
	assert.Equal(t, 45, DiasMora(cuotas, fecha("2026-03-27")))

	// Nothing due yet.
	assert.Equal(t, 0, DiasMora(cuotas, fecha("2026-02-01")))
}

func TestBandaMora(t *testing.T) {
	tests := []struct {
		dias  int
		banda string
	}{
		{0, BandaNinguna},
		{1, Banda1a30},
		{30, Banda1a30},
		{31, Banda31a60},
		{45, Banda31a60},
		{60, Banda31a60},
		{61, Banda61a90},
		{90, Banda61a90},
		{91, Banda91Mas},
		{400, Banda91Mas},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.banda, BandaMora(tt.dias), "dias=%d", tt.dias)
	}
}

func TestAccrueMora(t *testing.T) {
	q := &Cuota{
		NumeroCuota:      1,
		FechaVencimiento: fecha("2026-02-15"),
		Capital:          money.FromMinor(74_560),
		Interes:          money.FromMinor(20_000),
		ValorCuota:       money.FromMinor(94_560),
	}

	// 10 days overdue at 10bp/day: 94,560 * 0.001 * 10 = 945.6, half-up 946.
	require.NoError(t, AccrueMora(q, 10, fecha("2026-02-25")))
	assert.Equal(t, int64(946), q.ValorMora.Minor())
	assert.Equal(t, 10, q.DiasMora)
}

func TestAccrueMora_Monotone(t *testing.T) {
	q := &Cuota{
		NumeroCuota:      1,
		FechaVencimiento: fecha("2026-02-15"),
		ValorCuota:       money.FromMinor(100_000),
		Capital:          money.FromMinor(90_000),
		Interes:          money.FromMinor(10_000),
	}

	require.NoError(t, AccrueMora(q, 10, fecha("2026-03-17"))) // 30 days
	first := q.ValorMora.Minor()
	assert.Equal(t, int64(3_000), first)

	// Recomputing for an earlier date never lowers the accrued charge.
	require.NoError(t, AccrueMora(q, 10, fecha("2026-02-25")))
	assert.Equal(t, first, q.ValorMora.Minor())

	// A later date raises it.
	require.NoError(t, AccrueMora(q, 10, fecha("2026-04-16"))) // 60 days
	assert.Equal(t, int64(6_000), q.ValorMora.Minor())
}

func TestAccrueMora_SkipsSettledAndCurrent(t *testing.T) {
	saldada := &Cuota{
		FechaVencimiento: fecha("2026-02-15"),
		Capital:          money.FromMinor(100),
		Interes:          money.FromMinor(10),
		CapitalPagado:    money.FromMinor(100),
		InteresPagado:    money.FromMinor(10),
		ValorCuota:       money.FromMinor(110),
	}
	require.NoError(t, AccrueMora(saldada, 10, fecha("2026-03-15")))
	assert.True(t, saldada.ValorMora.IsZero())

	futura := &Cuota{
		FechaVencimiento: fecha("2026-02-15"),
		Capital:          money.FromMinor(100),
		ValorCuota:       money.FromMinor(100),
	}
	require.NoError(t, AccrueMora(futura, 10, fecha("2026-02-10")))
	assert.True(t, futura.ValorMora.IsZero())
}
