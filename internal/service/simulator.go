package service

import (
	"time"

	"github.com/coopfin/credito-engine/internal/domain"
	apperrors "github.com/coopfin/credito-engine/pkg/errors"
	"github.com/coopfin/credito-engine/pkg/money"
	"github.com/coopfin/credito-engine/pkg/utils"
)

// Simular prices a prospective credit without touching storage. The quote
// runs through the same schedule builder that materializes real
// disbursements, so a simulated installment can never diverge from the one a
// member is later billed.
func Simular(req *domain.SimularRequest, scale int32) (*domain.SimulacionResponse, error) {
	monto, err := money.FromDecimal(req.Monto, scale)
	if err != nil {
		return nil, apperrors.WrapInvalidLoanTerms("monto", err.Error())
	}
	bp, err := domain.TasaToBp(req.TasaInteres)
	if err != nil {
		return nil, err
	}

	modalidad := req.ModalidadPago
	if modalidad == "" {
		modalidad = domain.ModalidadMensual
	}
	tipoCuota := req.TipoCuota
	if tipoCuota == "" {
		tipoCuota = domain.CuotaFija
	}

	cuotas, err := domain.GenerateSchedule(domain.ScheduleParams{
		Principal:       monto,
		TasaMensualBp:   bp,
		PlazoMeses:      req.PlazoMeses,
		Modalidad:       modalidad,
		TipoCuota:       tipoCuota,
		FechaDesembolso: utils.Truncate(time.Now()),
	})
	if err != nil {
		return nil, err
	}
	interes, total, err := domain.ScheduleTotals(cuotas)
	if err != nil {
		return nil, err
	}

	resp := &domain.SimulacionResponse{
		ValorCuota:     cuotas[0].ValorCuota.Decimal(scale),
		TotalIntereses: interes.Decimal(scale),
		TotalAPagar:    total.Decimal(scale),
		PlazoMeses:     req.PlazoMeses,
	}
	for _, q := range cuotas {
		resp.Cuotas = append(resp.Cuotas, domain.NewCuotaResponse(q, scale))
	}
	return resp, nil
}
