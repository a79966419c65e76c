/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the ledger service, not in DTOs.
  DTOs are pure data carriers.
*/
package api

import (
	"time"

	"github.com/paylane/rewards-ledger/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// PaymentRequest is the body of POST /api/payments.
type PaymentRequest struct {
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	RequestID string  `json:"request_id,omitempty"`
}

// TransactionDTO represents a payment record in API responses.
type TransactionDTO struct {
	ID           string  `json:"id"`
	UserID       string  `json:"userId"`
	Type         string  `json:"type"`
	Amount       float64 `json:"amount"`
	PointsEarned int64   `json:"pointsEarned"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"createdAt"`
}

// PaymentResponse is the success payload of POST /api/payments.
type PaymentResponse struct {
	Transaction TransactionDTO `json:"transaction"`
	NewBalance  int64          `json:"newBalance"`
	Replayed    bool           `json:"replayed,omitempty"`
}

// TransactionListResponse wraps GET /api/payments.
type TransactionListResponse struct {
	Transactions []TransactionDTO `json:"transactions"`
	Cached       bool             `json:"cached,omitempty"`
}

// BalanceDTO represents the rewards balance. A user with no history gets
// zero-valued fields.
type BalanceDTO struct {
	Points        int64  `json:"points"`
	TotalEarned   int64  `json:"totalEarned"`
	TotalRedeemed int64  `json:"totalRedeemed"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

// RedeemRequest is the body of POST /api/rewards/redeem.
type RedeemRequest struct {
	ItemID string `json:"item_id"`
}

// ScoreRequest is the body of POST /api/scores.
type ScoreRequest struct {
	Score int `json:"score"`
}

// ScoreResponse reports the recorded score and gate outcome.
type ScoreResponse struct {
	Score    int  `json:"score"`
	Eligible bool `json:"eligible"`
}

// AdvisorRequest is the body of POST /api/advisor.
type AdvisorRequest struct {
	Query string `json:"query"`
}

// AdvisorResponse carries the advisor's answer.
type AdvisorResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	amount, _ := tx.Amount.Float64()
	return TransactionDTO{
		ID:           tx.ID,
		UserID:       tx.UserID,
		Type:         string(tx.Type),
		Amount:       amount,
		PointsEarned: tx.PointsEarned,
		Status:       string(tx.Status),
		CreatedAt:    tx.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toBalanceDTO(b ledger.RewardsBalance) BalanceDTO {
	dto := BalanceDTO{
		Points:        b.Points,
		TotalEarned:   b.TotalEarned,
		TotalRedeemed: b.TotalRedeemed,
	}
	if !b.UpdatedAt.IsZero() {
		dto.UpdatedAt = b.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}
