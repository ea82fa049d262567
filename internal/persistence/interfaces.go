package persistence

import (
	"context"
	"time"

	"github.com/quantmesh/edgecore/internal/conviction"
	"github.com/quantmesh/edgecore/internal/execution"
	"github.com/quantmesh/edgecore/internal/risk"
)

// TimeRange is a closed time window for queries.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// DecisionRecord is one full pipeline output: the conviction read, the sized
// position and the execution plan, stored together for post-trade review.
type DecisionRecord struct {
	ID         int64              `json:"id" db:"id"`
	PlanID     string             `json:"plan_id" db:"plan_id"`
	Symbol     string             `json:"symbol" db:"symbol"`
	Score      int                `json:"score" db:"score"`
	Bias       string             `json:"bias" db:"bias"`
	Conviction *conviction.Result `json:"conviction"`
	Assessment *risk.Assessment   `json:"assessment"`
	Plan       *execution.Plan    `json:"plan"`
	CreatedAt  time.Time          `json:"created_at" db:"created_at"`
}

// PlanRepo persists execution plans and their surrounding decision context.
type PlanRepo interface {
	Insert(ctx context.Context, rec DecisionRecord) (int64, error)
	ListBySymbol(ctx context.Context, symbol string, tr TimeRange, limit int) ([]DecisionRecord, error)
	GetByPlanID(ctx context.Context, planID string) (*DecisionRecord, error)
	Count(ctx context.Context, tr TimeRange) (int64, error)
}
