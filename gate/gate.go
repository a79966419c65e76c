/*
Package gate implements the credit-score access gate.

PURPOSE:
  Members must clear a credit-score threshold before any ledger call is
  permitted. The gate owns score persistence and the eligibility check;
  the HTTP layer consults it before routing into the ledger. The ledger
  itself assumes the check already happened upstream, but the API still
  rejects operations for users it can see are ineligible.

THRESHOLD:
  Default 700. Users with no recorded score are treated as ineligible -
  the gate runs before first ledger access, so an absent score means the
  member never passed entry.
*/
package gate

import (
	"context"
	"errors"
	"sync"
)

// DefaultThreshold is the minimum credit score admitted to the ledger.
const DefaultThreshold = 700

// Credit scores outside the standard reporting range are rejected.
const (
	minScore = 300
	maxScore = 850
)

// ErrInvalidScore is returned for a score outside [300, 850].
var ErrInvalidScore = errors.New("credit score out of range")

// ScoreStore persists the most recent credit score per user.
type ScoreStore interface {
	// SaveScore records the user's score, replacing any previous value.
	SaveScore(ctx context.Context, userID string, score int) error

	// Score returns the user's recorded score, with ok=false if none exists.
	Score(ctx context.Context, userID string) (score int, ok bool, err error)
}

// Gate answers eligibility questions against a score store.
type Gate struct {
	scores    ScoreStore
	threshold int
}

// New creates a gate with the given threshold. A threshold <= 0 falls
// back to DefaultThreshold.
func New(scores ScoreStore, threshold int) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{scores: scores, threshold: threshold}
}

// Threshold returns the configured minimum score.
func (g *Gate) Threshold() int { return g.threshold }

// SubmitScore validates and records a user's credit score. The entry path
// enforces a caller-side timeout; the store write honors ctx cancellation.
func (g *Gate) SubmitScore(ctx context.Context, userID string, score int) error {
	if score < minScore || score > maxScore {
		return ErrInvalidScore
	}
	return g.scores.SaveScore(ctx, userID, score)
}

// Eligible reports whether the user's recorded score clears the threshold.
// Users with no recorded score are not eligible.
func (g *Gate) Eligible(ctx context.Context, userID string) (bool, error) {
	score, ok, err := g.scores.Score(ctx, userID)
	if err != nil {
		return false, err
	}
	return ok && score >= g.threshold, nil
}

// Score returns the user's recorded score, with ok=false if none exists.
func (g *Gate) Score(ctx context.Context, userID string) (int, bool, error) {
	return g.scores.Score(ctx, userID)
}

// =============================================================================
// MEMORY SCORE STORE
// =============================================================================

// MemoryScores is an in-memory ScoreStore for tests and dev.
type MemoryScores struct {
	mu     sync.RWMutex
	scores map[string]int
}

func NewMemoryScores() *MemoryScores {
	return &MemoryScores{scores: make(map[string]int)}
}

func (m *MemoryScores) SaveScore(_ context.Context, userID string, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[userID] = score
	return nil
}

func (m *MemoryScores) Score(_ context.Context, userID string) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	score, ok := m.scores[userID]
	return score, ok, nil
}
