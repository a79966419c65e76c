/*
handlers.go - HTTP API handlers for the rewards ledger

PURPOSE:
  Exposes the accrual ledger via REST. Handles HTTP request/response,
  JSON serialization, and delegates to the ledger service. Handlers carry
  no business rules of their own.

ENDPOINTS:
  POST   /api/scores           Submit credit score (entry gate)
  POST   /api/payments         Record a qualifying payment
  GET    /api/payments         Payment history, newest first
  GET    /api/rewards          Rewards balance (zero default)
  POST   /api/rewards/redeem   Redeem a catalog item
  GET    /api/rewards/catalog  Static reward catalog
  POST   /api/advisor          Natural-language rewards Q&A

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, business-rule rejections
  - 403: Gate rejection (credit score below threshold)
  - 404: Unknown catalog item
  - 503: Store unavailable (safe to retry with the same request id)
  - 500: Internal errors

CACHING:
  Balance and history reads go through the optional Redis cache; every
  write path invalidates both keys for the affected user. A nil Redis
  client disables caching.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/paylane/rewards-ledger/advisor"
	"github.com/paylane/rewards-ledger/auth"
	"github.com/paylane/rewards-ledger/cache"
	"github.com/paylane/rewards-ledger/catalog"
	"github.com/paylane/rewards-ledger/gate"
	"github.com/paylane/rewards-ledger/ledger"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger  *ledger.Service
	Catalog *catalog.Catalog
	Gate    *gate.Gate
	Advisor *advisor.Service // nil disables POST /api/advisor
	Redis   *redis.Client    // nil disables the read cache
}

// NewHandler creates a handler over the given collaborators.
func NewHandler(svc *ledger.Service, cat *catalog.Catalog, g *gate.Gate) *Handler {
	return &Handler{Ledger: svc, Catalog: cat, Gate: g}
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPayment records a qualifying payment and returns the transaction
// plus the new balance.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	typ, err := ledger.ParsePaymentType(req.Type)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	// Guard against non-finite values before decimal conversion; the
	// ledger rejects the non-positive range itself.
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		writeLedgerError(w, ledger.ErrInvalidAmount)
		return
	}

	result, err := h.Ledger.RecordPayment(r.Context(), userID, typ, decimal.NewFromFloat(req.Amount), req.RequestID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	if !result.Replayed {
		paymentsRecorded.WithLabelValues(string(typ)).Inc()
		pointsAccrued.Add(float64(result.Transaction.PointsEarned))
	}
	h.invalidateUser(r, userID)

	writeJSON(w, http.StatusCreated, PaymentResponse{
		Transaction: toTransactionDTO(result.Transaction),
		NewBalance:  result.Balance.Points,
		Replayed:    result.Replayed,
	})
}

// ListTransactions returns the caller's payment history, newest first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	key := cache.TransactionsKey(userID)

	var cached TransactionListResponse
	if found, err := cache.Get(r.Context(), h.Redis, key, &cached); err == nil && found {
		cached.Cached = true
		writeJSON(w, http.StatusOK, cached)
		return
	}

	txs, err := h.Ledger.ListTransactions(r.Context(), userID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	resp := TransactionListResponse{Transactions: toTransactionDTOs(txs)}
	if resp.Transactions == nil {
		resp.Transactions = []TransactionDTO{}
	}
	_ = cache.Set(r.Context(), h.Redis, key, resp)
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// REWARDS
// =============================================================================

// GetBalance returns the caller's rewards balance, zero-valued for users
// with no history.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	key := cache.BalanceKey(userID)

	var cached BalanceDTO
	if found, err := cache.Get(r.Context(), h.Redis, key, &cached); err == nil && found {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	balance, err := h.Ledger.GetBalance(r.Context(), userID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	dto := toBalanceDTO(balance)
	_ = cache.Set(r.Context(), h.Redis, key, dto)
	writeJSON(w, http.StatusOK, dto)
}

// Redeem spends points against a catalog item.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	balance, err := h.Ledger.Redeem(r.Context(), userID, req.ItemID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	redemptionsCompleted.Inc()
	h.invalidateUser(r, userID)
	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

// ListCatalog returns the static reward catalog.
func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": h.Catalog.Items()})
}

// =============================================================================
// SCORES (access gate)
// =============================================================================

// SubmitScore records the caller's credit score and reports eligibility.
// The entry path enforces a caller-side timeout; a timed-out write that
// lands server-side simply overwrites with the same value on retry.
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Gate.SubmitScore(r.Context(), userID, req.Score); err != nil {
		if errors.Is(err, gate.ErrInvalidScore) {
			writeError(w, http.StatusBadRequest, "Credit score out of range", err)
			return
		}
		writeError(w, http.StatusServiceUnavailable, "Failed to save score", err)
		return
	}

	writeJSON(w, http.StatusOK, ScoreResponse{
		Score:    req.Score,
		Eligible: req.Score >= h.Gate.Threshold(),
	})
}

// RequireEligible rejects requests from users whose recorded credit score
// doesn't clear the gate. The ledger assumes gating happened upstream;
// this middleware is the defensive re-check at the HTTP boundary.
func (h *Handler) RequireEligible(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserID(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		eligible, err := h.Gate.Eligible(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "Eligibility check failed", err)
			return
		}
		if !eligible {
			gateRejections.Inc()
			writeError(w, http.StatusForbidden, "Credit score below required threshold", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// ADVISOR
// =============================================================================

// Advise answers a natural-language question from the caller's read-only
// ledger snapshot.
func (h *Handler) Advise(w http.ResponseWriter, r *http.Request) {
	if h.Advisor == nil {
		writeError(w, http.StatusServiceUnavailable, "Advisor is not configured", nil)
		return
	}
	userID, _ := auth.UserID(r.Context())

	var req AdvisorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	answer, err := h.Advisor.Answer(r.Context(), userID, req.Query)
	if err != nil {
		if errors.Is(err, advisor.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, "Query is required", err)
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("advisor request failed")
		writeError(w, http.StatusBadGateway, "Failed to analyze finances. Please try again.", nil)
		return
	}

	writeJSON(w, http.StatusOK, AdvisorResponse{Response: answer})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) invalidateUser(r *http.Request, userID string) {
	_ = cache.Delete(r.Context(), h.Redis,
		cache.BalanceKey(userID),
		cache.TransactionsKey(userID),
	)
}

// writeLedgerError maps ledger error taxonomy to HTTP statuses. Validation
// errors and business rejections surface verbatim; store faults come back
// as 503 so callers know a retry may succeed.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidType):
		writeCodedError(w, http.StatusBadRequest, "Invalid Payment Type", "invalid_type", err)
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeCodedError(w, http.StatusBadRequest, "Invalid Payment Amount", "invalid_amount", err)
	case errors.Is(err, ledger.ErrUnknownItem):
		writeCodedError(w, http.StatusNotFound, "Unknown reward item", "unknown_item", err)
	case errors.Is(err, ledger.ErrInsufficientPoints):
		writeCodedError(w, http.StatusBadRequest, "Insufficient points", "insufficient_points", err)
	case errors.Is(err, ledger.ErrStoreUnavailable):
		writeCodedError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable", "store_unavailable", nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

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

func writeCodedError(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
