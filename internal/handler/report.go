package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/coopfin/credito-engine/internal/service"
	"github.com/coopfin/credito-engine/pkg/response"
	"github.com/coopfin/credito-engine/pkg/utils"
)

type ReportHandler struct {
	portfolio *service.PortfolioService
}

func NewReportHandler(portfolio *service.PortfolioService) *ReportHandler {
	return &ReportHandler{portfolio: portfolio}
}

// fechaCorte reads the optional cut date query parameter, defaulting to today.
func fechaCorte(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	v := r.URL.Query().Get("fecha_corte")
	if v == "" {
		return utils.Truncate(time.Now()), true
	}
	fecha, err := utils.ParseDate(v)
	if err != nil {
		response.BadRequest(w, "invalid fecha_corte", err)
		return time.Time{}, false
	}
	return fecha, true
}

// Cartera handles GET /reportes/cartera.
func (h *ReportHandler) Cartera(w http.ResponseWriter, r *http.Request) {
	fecha, ok := fechaCorte(w, r)
	if !ok {
		return
	}
	resp, err := h.portfolio.ReporteCartera(r.Context(), fecha)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, resp)
}

// Mora handles GET /reportes/mora.
func (h *ReportHandler) Mora(w http.ResponseWriter, r *http.Request) {
	fecha, ok := fechaCorte(w, r)
	if !ok {
		return
	}
	diasMinimo := 1
	if v := r.URL.Query().Get("dias_minimo"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.BadRequest(w, "invalid dias_minimo", err)
			return
		}
		diasMinimo = n
	}
	resp, err := h.portfolio.ReporteMora(r.Context(), fecha, diasMinimo)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, resp)
}

// CalcularMora handles POST /reportes/calcular-mora: the on-demand version of
// the nightly delinquency refresh.
func (h *ReportHandler) CalcularMora(w http.ResponseWriter, r *http.Request) {
	fecha, ok := fechaCorte(w, r)
	if !ok {
		return
	}
	actualizados, err := h.portfolio.ActualizarMora(r.Context(), fecha)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, map[string]interface{}{
		"fecha_corte":           utils.FormatDate(fecha),
		"creditos_actualizados": actualizados,
	})
}
