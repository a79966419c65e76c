/*
Package advisor answers natural-language questions about a member's
rewards activity.

PURPOSE:
  Builds a read-only snapshot of the member's financial context (credit
  score, rewards balance, recent payments) and hands it to a chat model
  together with the member's question. The advisor holds reader
  interfaces only; it has no write authority over the ledger.

SEE ALSO:
  - openai.go: The production ChatClient implementation
*/
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/paylane/rewards-ledger/ledger"
)

// ErrEmptyQuery is returned when the question is blank.
var ErrEmptyQuery = errors.New("query is required")

// recentLimit caps how many transactions the model sees.
const recentLimit = 5

// LedgerReader is the read-only slice of the ledger the advisor may see.
type LedgerReader interface {
	GetBalance(ctx context.Context, userID string) (ledger.RewardsBalance, error)
	ListTransactions(ctx context.Context, userID string) ([]ledger.Transaction, error)
}

// ScoreReader exposes the member's recorded credit score.
type ScoreReader interface {
	Score(ctx context.Context, userID string) (score int, ok bool, err error)
}

// ChatClient abstracts the chat model backend.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Snapshot is the read-only context handed to the model.
type Snapshot struct {
	CreditScore int
	Balance     ledger.RewardsBalance
	Recent      []ledger.Transaction
}

// Service answers member questions from ledger context.
type Service struct {
	ledger LedgerReader
	scores ScoreReader
	chat   ChatClient
}

// New creates an advisor over read-only ledger access.
func New(reader LedgerReader, scores ScoreReader, chat ChatClient) *Service {
	return &Service{ledger: reader, scores: scores, chat: chat}
}

// Answer responds to the member's question using their current snapshot.
func (s *Service) Answer(ctx context.Context, userID, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}
	snap, err := s.snapshot(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.chat.Complete(ctx, systemPrompt, userPrompt(snap, query))
}

func (s *Service) snapshot(ctx context.Context, userID string) (Snapshot, error) {
	score, _, err := s.scores.Score(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	txs, err := s.ledger.ListTransactions(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if len(txs) > recentLimit {
		txs = txs[:recentLimit]
	}
	return Snapshot{CreditScore: score, Balance: balance, Recent: txs}, nil
}

// =============================================================================
// PROMPTS
// =============================================================================

const systemPrompt = `You are a helpful financial advisor for a platform that helps members pay rent, taxes, and utilities while earning rewards.

IMPORTANT RULES:
- The platform ONLY handles: Rent payments, Tax payments, and Utility payments
- Members earn 25% of their payment amount as reward points (e.g., $1000 rent = 250 points)
- DO NOT suggest using credit cards for dining, groceries, gas, or general shopping
- DO NOT give generic credit card advice
- ONLY discuss platform payments (rent, tax, utility) and platform rewards
- Be friendly, concise, and actionable

If asked about earning more points, suggest:
1. Making larger rent/tax/utility payments through the platform
2. Paying bills consistently through the platform
3. Consolidating all eligible payments (rent + utilities + taxes) on the platform

If asked about rewards, reference the available reward catalog items.`

func userPrompt(snap Snapshot, query string) string {
	recent := "No transactions yet"
	if len(snap.Recent) > 0 {
		type txLine struct {
			Type         ledger.PaymentType `json:"type"`
			Amount       string             `json:"amount"`
			PointsEarned int64              `json:"pointsEarned"`
			CreatedAt    string             `json:"createdAt"`
		}
		lines := make([]txLine, len(snap.Recent))
		for i, tx := range snap.Recent {
			lines[i] = txLine{
				Type:         tx.Type,
				Amount:       tx.Amount.StringFixed(2),
				PointsEarned: tx.PointsEarned,
				CreatedAt:    tx.CreatedAt.Format("2006-01-02"),
			}
		}
		b, _ := json.MarshalIndent(lines, "", "  ")
		recent = string(b)
	}

	return fmt.Sprintf(`
Member's Financial Data:
- Credit Score: %d
- Current Reward Points: %d
- Total Points Earned: %d
- Total Points Redeemed: %d
- Recent Transactions: %s

Member Question: %q

Provide a helpful, personalized response based on their data.`,
		snap.CreditScore,
		snap.Balance.Points,
		snap.Balance.TotalEarned,
		snap.Balance.TotalRedeemed,
		recent,
		query,
	)
}
