package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/coopfin/credito-engine/internal/config"
	"github.com/coopfin/credito-engine/internal/domain"
	"github.com/coopfin/credito-engine/internal/repository"
	"github.com/coopfin/credito-engine/internal/service"
	apperrors "github.com/coopfin/credito-engine/pkg/errors"
	"github.com/coopfin/credito-engine/pkg/response"
)

// Caller identity travels in headers set by the gateway; there is no session
// handling here.
const (
	headerUsuario        = "X-Usuario"
	headerRol            = "X-Rol"
	headerIdempotencyKey = "X-Idempotency-Key"
)

type CreditHandler struct {
	credits   *service.CreditService
	payments  *service.PaymentService
	config    *config.Config
	validator *validator.Validate
}

func NewCreditHandler(credits *service.CreditService, payments *service.PaymentService, config *config.Config) *CreditHandler {
	return &CreditHandler{
		credits:   credits,
		payments:  payments,
		config:    config,
		validator: validator.New(),
	}
}

func (h *CreditHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		response.BadRequest(w, "validation failed", err)
		return false
	}
	return true
}

func creditoID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.BadRequest(w, "invalid credit id", err)
		return uuid.Nil, false
	}
	return id, true
}

// requirePrivileged gates decision operations (approve, reject, disburse,
// write off, reverse) behind the configured role list.
func (h *CreditHandler) requirePrivileged(w http.ResponseWriter, r *http.Request, operation string) bool {
	rol := r.Header.Get(headerRol)
	if !h.config.RoleIsPrivileged(rol) {
		response.BusinessError(w, apperrors.WrapForbidden(rol, operation))
		return false
	}
	return true
}

// Solicitar handles POST /creditos.
func (h *CreditHandler) Solicitar(w http.ResponseWriter, r *http.Request) {
	var req domain.SolicitarRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.credits.Solicitar(r.Context(), &req, r.Header.Get(headerUsuario))
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Created(w, resp)
}

// List handles GET /creditos.
func (h *CreditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.CreditoFilter{
		Estado:      q.Get("estado"),
		TipoCredito: q.Get("tipo_credito"),
	}
	if v := q.Get("asociado_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.BadRequest(w, "invalid asociado_id", err)
			return
		}
		filter.AsociadoID = id
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.BadRequest(w, "invalid limit", err)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.BadRequest(w, "invalid offset", err)
			return
		}
		filter.Offset = n
	}

	resp, err := h.credits.List(r.Context(), filter)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, resp)
}

// Get handles GET /creditos/{id}.
func (h *CreditHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := creditoID(w, r)
	if !ok {
		return
	}
	resp, err := h.credits.Get(r.Context(), id)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, resp)
}

// Estudiar handles POST /creditos/{id}/estudiar.
func (h *CreditHandler) Estudiar(w http.ResponseWriter, r *http.Request) {
	id, ok := creditoID(w, r)
	if !ok {
		return
	}
	resp, err := h.credits.Estudiar(r.Context(), id, r.Header.Get(headerUsuario))
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, resp)
}

// Aprobar handles POST /creditos/{id}/aprobar.
func (h *CreditHandler) Aprobar(w http.ResponseWriter, r *http.Request) {
	if !h.requirePrivileged(w, r, "aprobar") {
		return
	}
	id, ok := creditoID(w, r)
	if !ok {
		return
	}
	var req domain.AprobarRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.credits.Aprobar(r.Context(), id, &req, r.Header.Get(headerUsuario))
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, resp)
}

// Rechazar handles POST /creditos/{id}/rechazar.
func (h *CreditHandler) Rechazar(w http.ResponseWriter, r *http.Request) {
	if !h.requirePrivileged(w, r, "rechazar") {
		return
	}
	id, ok := creditoID(w, r)
	if !ok {
		return
	}
	var req domain.RechazarRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.credits.Rechazar(r.Context(), id, &req, r.Header.Get(headerUsuario))
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, resp)
}

// Desembolsar handles POST /creditos/{id}/desembolsar.
func (h *CreditHandler) Desembolsar(w http.ResponseWriter, r *http.Request) {
	if !h.requirePrivileged(w, r, "desembolsar") {
		return
	}
	id, ok := creditoID(w, r)
	if !ok {
		return
	}
	var req domain.DesembolsarRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.credits.Desembolsar(r.Context(), id, &req, r.Header.Get(headerUsuario))
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, resp)
}

// Castigar handles POST /creditos/{id}/castigar.
func (h *CreditHandler) Castigar(w http.ResponseWriter, r *http.Request) {
	if !h.requirePrivileged(w, r, "castigar") {
		return
	}
	id, ok := creditoID(w, r)
	if !ok {
		return
	}
	var req domain.CastigarRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.credits.Castigar(r.Context(), id, &req, r.Header.Get(headerUsuario))
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, resp)
}

// Amortizacion handles GET /creditos/{id}/amortizacion.
func (h *CreditHandler) Amortizacion(w http.ResponseWriter, r *http.Request) {
	id, ok := creditoID(w, r)
	if !ok {
		return
	}
	resp, err := h.credits.GetAmortizacion(r.Context(), id)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, resp)
}

// Simular handles POST /creditos/simular.
func (h *CreditHandler) Simular(w http.ResponseWriter, r *http.Request) {
	var req domain.SimularRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := service.Simular(&req, h.config.Business.CurrencyScale)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, resp)
}

// RegistrarPago handles POST /creditos/{id}/pagos.
func (h *CreditHandler) RegistrarPago(w http.ResponseWriter, r *http.Request) {
	id, ok := creditoID(w, r)
	if !ok {
		return
	}
	var req domain.PagoRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.payments.RegistrarPago(r.Context(), id, &req,
		r.Header.Get(headerUsuario), r.Header.Get(headerIdempotencyKey))
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Created(w, resp)
}

// ListPagos handles GET /creditos/{id}/pagos.
func (h *CreditHandler) ListPagos(w http.ResponseWriter, r *http.Request) {
	id, ok := creditoID(w, r)
	if !ok {
		return
	}
	resp, err := h.payments.ListPagos(r.Context(), id)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, resp)
}

// Reversar handles POST /creditos/{id}/pagos/{pagoId}/reversar.
func (h *CreditHandler) Reversar(w http.ResponseWriter, r *http.Request) {
	if !h.requirePrivileged(w, r, "reversar") {
		return
	}
	id, ok := creditoID(w, r)
	if !ok {
		return
	}
	pagoID, err := uuid.Parse(mux.Vars(r)["pagoId"])
	if err != nil {
		response.BadRequest(w, "invalid payment id", err)
		return
	}
	var req domain.ReversarRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.payments.Reversar(r.Context(), id, pagoID, &req, r.Header.Get(headerUsuario))
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, resp)
}

// Replay handles POST /creditos/{id}/replay.
func (h *CreditHandler) Replay(w http.ResponseWriter, r *http.Request) {
	if !h.requirePrivileged(w, r, "replay") {
		return
	}
	id, ok := creditoID(w, r)
	if !ok {
		return
	}
	resp, err := h.credits.RebuildBalances(r.Context(), id)
	if err != nil {
		response.BusinessError(w, err)
		return
	}
	response.Success(w, resp)
}
