/*
handlers.go - HTTP API handlers for the lending tracker

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Instruments:
    GET    /api/vehicles                      List vehicles
    POST   /api/vehicles                      Register a vehicle
    GET    /api/vehicles/{id}                 Get one vehicle
    DELETE /api/vehicles/{id}                 Soft delete
    (same shape for /api/outside-interests; /api/loans has no DELETE)

  Payments:
    GET    /api/payments                      All ledger entries
    POST   /api/payments                      Append a ledger entry

  Ledger:
    GET    /api/ledger/{source}/{id}          Reconciled state as of a date
    GET    /api/ledger/{source}/{id}/closure  Closure verdict (read only)
    POST   /api/ledger/{source}/{id}/close    Close when eligible
    GET    /api/ledger/{source}/{id}/status-check  Stored-vs-derived statuses

  Dashboard:
    GET    /api/dashboard                     Outstanding across open instruments

  Auth:
    POST   /api/auth/login                    Operator login (when configured)

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Read a consistent snapshot from the store
  4. Run the engine (reconcile, verdict, status check)
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: Conflict (duplicate payment id, closure refused)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/lending-engine/engine"
	"github.com/warp/lending-engine/instrument"
	"github.com/warp/lending-engine/store"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store store.Store
	Auth  *Authenticator
	Log   logrus.FieldLogger

	// Now supplies the default as-of date; overridable in tests.
	Now func() engine.Date
}

// NewHandler creates a new handler with the given store.
func NewHandler(s store.Store, auth *Authenticator, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Store: s,
		Auth:  auth,
		Log:   log,
		Now:   engine.Today,
	}
}

// asOf reads the as_of query parameter, defaulting to today.
func (h *Handler) asOf(r *http.Request) (engine.Date, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return h.Now(), nil
	}
	return engine.ParseDate(raw)
}

func instrumentSource(r *http.Request) (engine.SourceType, bool) {
	source := engine.SourceType(chi.URLParam(r, "source"))
	switch source {
	case engine.SourceVehicle, engine.SourceOutsideInterest, engine.SourceLoan:
		return source, true
	}
	return source, false
}

func listFilter(r *http.Request) (store.Filter, error) {
	var f store.Filter
	if raw := r.URL.Query().Get("closed"); raw != "" {
		closed := raw == "true"
		if raw != "true" && raw != "false" {
			return f, errors.New("closed must be true or false")
		}
		f.Closed = &closed
	}
	f.IncludeDeleted = r.URL.Query().Get("include_deleted") == "true"
	return f, nil
}

// =============================================================================
// AUTH
// =============================================================================

// Login exchanges the operator password for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.Auth == nil {
		writeError(w, http.StatusNotFound, "Authentication is not configured", nil)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	token, expiresAt, err := h.Auth.Login(req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Bad credentials", nil)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}

// =============================================================================
// VEHICLE HANDLERS
// =============================================================================

// ListVehicles returns vehicle records, filtered by closure and deletion state.
func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	vehicles, err := h.Store.ListVehicles(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list vehicles", err)
		return
	}

	dtos := make([]InstrumentDTO, len(vehicles))
	for i, v := range vehicles {
		dtos[i] = toVehicleDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateVehicle registers a leased-out vehicle.
func (h *Handler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req CreateVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := engine.ParseDate(req.DateOfLending)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date_of_lending (use YYYY-MM-DD)", err)
		return
	}

	v := instrument.NewVehicle(req.VehicleName, req.LendTo, req.PrincipleAmount,
		req.Rent, engine.Frequency(req.PaymentFrequency), start)
	if err := v.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid vehicle", err)
		return
	}

	if err := h.Store.SaveVehicle(r.Context(), v); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save vehicle", err)
		return
	}

	h.Log.WithFields(logrus.Fields{"id": v.ID(), "vehicle": v.Name}).Info("vehicle registered")
	writeJSON(w, http.StatusCreated, toVehicleDTO(v))
}

// GetVehicle returns a single vehicle.
func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	inst, err := h.Store.Get(r.Context(), engine.SourceVehicle, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Vehicle not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get vehicle", err)
		return
	}
	writeJSON(w, http.StatusOK, toVehicleDTO(inst.(*instrument.Vehicle)))
}

// DeleteVehicle soft deletes a vehicle. The record and its payments remain
// readable; the instrument just leaves default listings and loses closure
// eligibility.
func (h *Handler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	h.softDelete(w, r, engine.SourceVehicle)
}

// =============================================================================
// OUTSIDE INTEREST HANDLERS
// =============================================================================

func (h *Handler) ListOutsideInterests(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	records, err := h.Store.ListOutsideInterests(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list outside interests", err)
		return
	}

	dtos := make([]InstrumentDTO, len(records))
	for i, o := range records {
		dtos[i] = toOutsideInterestDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateOutsideInterest(w http.ResponseWriter, r *http.Request) {
	var req CreateOutsideInterestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := engine.ParseDate(req.DateOfLending)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date_of_lending (use YYYY-MM-DD)", err)
		return
	}

	o := instrument.NewOutsideInterest(req.ToWhom, req.Category, req.LendTo,
		req.PrincipleAmount, req.InterestRate, engine.Frequency(req.PaymentFrequency), start)
	if !req.LocalRate.IsZero() {
		o.LocalRate = req.LocalRate
	}
	if err := o.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid outside interest", err)
		return
	}

	if err := h.Store.SaveOutsideInterest(r.Context(), o); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save outside interest", err)
		return
	}

	h.Log.WithFields(logrus.Fields{"id": o.ID(), "to_whom": o.ToWhom}).Info("outside interest registered")
	writeJSON(w, http.StatusCreated, toOutsideInterestDTO(o))
}

func (h *Handler) GetOutsideInterest(w http.ResponseWriter, r *http.Request) {
	inst, err := h.Store.Get(r.Context(), engine.SourceOutsideInterest, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Outside interest not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get outside interest", err)
		return
	}
	writeJSON(w, http.StatusOK, toOutsideInterestDTO(inst.(*instrument.OutsideInterest)))
}

func (h *Handler) DeleteOutsideInterest(w http.ResponseWriter, r *http.Request) {
	h.softDelete(w, r, engine.SourceOutsideInterest)
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request, source engine.SourceType) {
	id := chi.URLParam(r, "id")
	at, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
		return
	}

	err = h.Store.SoftDelete(r.Context(), source, id, at)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Record not found", nil)
	case errors.Is(err, store.ErrNoSoftDelete):
		writeError(w, http.StatusBadRequest, "Record kind does not support soft delete", nil)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to delete record", err)
	default:
		h.Log.WithFields(logrus.Fields{"source": source, "id": id}).Info("record soft deleted")
		w.WriteHeader(http.StatusNoContent)
	}
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	loans, err := h.Store.ListLoans(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list loans", err)
		return
	}

	dtos := make([]InstrumentDTO, len(loans))
	for i, l := range loans {
		dtos[i] = toLoanDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := engine.ParseDate(req.DateOfBorrowing)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date_of_borrowing (use YYYY-MM-DD)", err)
		return
	}

	l := instrument.NewLoan(req.LenderName, instrument.LenderType(req.LenderType),
		req.PrincipleAmount, req.InterestRate, engine.Frequency(req.PaymentFrequency), start)
	if err := l.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan", err)
		return
	}

	if err := h.Store.SaveLoan(r.Context(), l); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save loan", err)
		return
	}

	h.Log.WithFields(logrus.Fields{"id": l.ID(), "lender": l.LenderName}).Info("loan registered")
	writeJSON(w, http.StatusCreated, toLoanDTO(l))
}

func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	inst, err := h.Store.Get(r.Context(), engine.SourceLoan, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Loan not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get loan", err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(inst.(*instrument.Loan)))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// CreatePayment appends a ledger entry. Entries are append-only; amendments
// are new entries, never edits.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	day, err := engine.ParseDate(req.PaymentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment_date (use YYYY-MM-DD)", err)
		return
	}

	p := engine.PaymentEntry{
		ID:          req.ID,
		SourceType:  engine.SourceType(req.SourceType),
		SourceID:    req.SourceID,
		Direction:   engine.Direction(req.PaymentType),
		Amount:      req.Amount,
		Date:        day,
		Status:      engine.PaymentStatus(req.PaymentStatus),
		Description: req.Description,
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	err = h.Store.AppendPayment(r.Context(), p)
	switch {
	case errors.Is(err, store.ErrDuplicateID):
		writeError(w, http.StatusConflict, "Payment id already exists", nil)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Referenced instrument not found", nil)
	case engine.IsContractViolation(err):
		writeError(w, http.StatusBadRequest, "Invalid payment", err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to append payment", err)
	default:
		h.Log.WithFields(logrus.Fields{
			"id": p.ID, "source": p.SourceType, "source_id": p.SourceID,
			"amount": p.Amount.String(), "type": p.Direction,
		}).Info("payment recorded")
		writeJSON(w, http.StatusCreated, p)
	}
}

// ListAllPayments returns every ledger entry, or one instrument's entries
// when source_type and source_id are given.
func (h *Handler) ListAllPayments(w http.ResponseWriter, r *http.Request) {
	sourceType := r.URL.Query().Get("source_type")
	sourceID := r.URL.Query().Get("source_id")

	var (
		payments []engine.PaymentEntry
		err      error
	)
	if sourceType != "" && sourceID != "" {
		payments, err = h.Store.ListPayments(r.Context(), engine.SourceType(sourceType), sourceID)
	} else {
		payments, err = h.Store.AllPayments(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	if payments == nil {
		payments = []engine.PaymentEntry{}
	}
	writeJSON(w, http.StatusOK, payments)
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// snapshot reads the instrument and its payments together, then reconciles.
func (h *Handler) snapshot(r *http.Request, source engine.SourceType, id string, asOf engine.Date) (engine.Instrument, engine.LedgerState, []engine.PaymentEntry, error) {
	ctx := r.Context()

	inst, err := h.Store.Get(ctx, source, id)
	if err != nil {
		return nil, engine.LedgerState{}, nil, err
	}
	payments, err := h.Store.ListPayments(ctx, source, id)
	if err != nil {
		return nil, engine.LedgerState{}, nil, err
	}
	state, err := engine.Reconcile(inst, payments, asOf)
	if err != nil {
		return nil, engine.LedgerState{}, nil, err
	}
	return inst, state, payments, nil
}

func (h *Handler) ledgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Instrument not found", nil)
	case engine.IsContractViolation(err):
		writeError(w, http.StatusBadRequest, "Instrument violates ledger invariants", err)
	default:
		writeError(w, http.StatusInternalServerError, "Failed to reconcile", err)
	}
}

// GetLedger returns the reconciled state of one instrument.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	source, ok := instrumentSource(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown source type", nil)
		return
	}
	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
		return
	}

	_, state, _, err := h.snapshot(r, source, chi.URLParam(r, "id"), asOf)
	if err != nil {
		h.ledgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerStateDTO(state))
}

// GetClosureVerdict reports closure eligibility without changing anything.
func (h *Handler) GetClosureVerdict(w http.ResponseWriter, r *http.Request) {
	source, ok := instrumentSource(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown source type", nil)
		return
	}
	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
		return
	}

	inst, state, _, err := h.snapshot(r, source, chi.URLParam(r, "id"), asOf)
	if err != nil {
		h.ledgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClosureVerdictDTO(engine.CanClose(inst, state.Rollup)))
}

// CloseInstrument closes an instrument when the verdict allows it. A refused
// closure returns 409 with the verdict; a repeated close is a no-op that
// reports the original closure date.
func (h *Handler) CloseInstrument(w http.ResponseWriter, r *http.Request) {
	source, ok := instrumentSource(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown source type", nil)
		return
	}
	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
		return
	}
	id := chi.URLParam(r, "id")

	inst, state, _, err := h.snapshot(r, source, id, asOf)
	if err != nil {
		h.ledgerError(w, err)
		return
	}

	verdict := engine.CanClose(inst, state.Rollup)
	if !verdict.Closable {
		if verdict.Reason == engine.ReasonAlreadyClosed {
			// Idempotent retry: answer with the original closure date.
			writeJSON(w, http.StatusOK, toClosureVerdictDTO(verdict))
			return
		}
		writeJSON(w, http.StatusConflict, toClosureVerdictDTO(verdict))
		return
	}

	closureDate, err := h.Store.CloseInstrument(r.Context(), source, id, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to close instrument", err)
		return
	}

	h.Log.WithFields(logrus.Fields{"source": source, "id": id, "closure_date": closureDate.String()}).
		Info("instrument closed")
	writeJSON(w, http.StatusOK, ClosureVerdictDTO{Closable: true, ClosureDate: closureDate.String()})
}

// CheckStatuses compares stored payment statuses against derived period
// statuses and returns the disagreements.
func (h *Handler) CheckStatuses(w http.ResponseWriter, r *http.Request) {
	source, ok := instrumentSource(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown source type", nil)
		return
	}
	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
		return
	}

	_, state, payments, err := h.snapshot(r, source, chi.URLParam(r, "id"), asOf)
	if err != nil {
		h.ledgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusMismatchDTOs(engine.CheckStatuses(state, payments)))
}

// =============================================================================
// DASHBOARD
// =============================================================================

// GetDashboard reconciles every open instrument and aggregates outstanding
// balances. Closed and soft-deleted records are excluded.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
		return
	}

	ctx := r.Context()
	open := false
	filter := store.Filter{Closed: &open}

	type labeled struct {
		inst  engine.Instrument
		label string
	}
	var instruments []labeled

	vehicles, err := h.Store.ListVehicles(ctx, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list vehicles", err)
		return
	}
	for _, v := range vehicles {
		instruments = append(instruments, labeled{v, v.Name})
	}

	interests, err := h.Store.ListOutsideInterests(ctx, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list outside interests", err)
		return
	}
	for _, o := range interests {
		instruments = append(instruments, labeled{o, o.ToWhom})
	}

	loans, err := h.Store.ListLoans(ctx, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list loans", err)
		return
	}
	for _, l := range loans {
		instruments = append(instruments, labeled{l, l.LenderName})
	}

	dashboard := DashboardDTO{
		AsOf:              asOf.String(),
		OpenInstruments:   len(instruments),
		TotalOutstanding:  decimal.Zero,
		TotalUnapplied:    decimal.Zero,
		ReceivedThisMonth: decimal.Zero,
		Items:             []DashboardItem{},
	}

	all, err := h.Store.AllPayments(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	for _, p := range all {
		if p.Direction == engine.DirectionCredit &&
			p.Date.Year() == asOf.Year() && p.Date.Month() == asOf.Month() {
			dashboard.ReceivedThisMonth = dashboard.ReceivedThisMonth.Add(p.Amount)
		}
	}

	for _, entry := range instruments {
		payments, err := h.Store.ListPayments(ctx, entry.inst.Source(), entry.inst.ID())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
			return
		}
		state, err := engine.Reconcile(entry.inst, payments, asOf)
		if err != nil {
			// A malformed record must not take the whole dashboard down.
			h.Log.WithError(err).WithField("id", entry.inst.ID()).Warn("skipping instrument in dashboard")
			continue
		}

		dashboard.TotalOutstanding = dashboard.TotalOutstanding.Add(state.Rollup.OutstandingBalance)
		dashboard.TotalUnapplied = dashboard.TotalUnapplied.Add(state.Rollup.UnappliedTotal)
		if state.Rollup.OverdueDays > 0 {
			dashboard.OverdueCount++
		}
		dashboard.Items = append(dashboard.Items, DashboardItem{
			InstrumentID: entry.inst.ID(),
			SourceType:   string(entry.inst.Source()),
			Label:        entry.label,
			Outstanding:  state.Rollup.OutstandingBalance,
			OverdueDays:  state.Rollup.OverdueDays,
		})
	}

	writeJSON(w, http.StatusOK, dashboard)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
