package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // registers the PostgreSQL driver

	"github.com/quantmesh/edgecore/internal/persistence"
)

// plansRepo implements PlanRepo for PostgreSQL. The conviction result, risk
// assessment and plan are stored as JSONB so the schema survives model
// changes; the indexed columns cover the query paths.
type plansRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPlanRepo creates a PostgreSQL plan repository.
func NewPlanRepo(db *sqlx.DB, timeout time.Duration) persistence.PlanRepo {
	return &plansRepo{db: db, timeout: timeout}
}

// Connect opens a pooled connection and verifies it.
func Connect(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func (r *plansRepo) Insert(ctx context.Context, rec persistence.DecisionRecord) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	convictionJSON, err := json.Marshal(rec.Conviction)
	if err != nil {
		return 0, fmt.Errorf("marshal conviction: %w", err)
	}
	assessmentJSON, err := json.Marshal(rec.Assessment)
	if err != nil {
		return 0, fmt.Errorf("marshal assessment: %w", err)
	}
	planJSON, err := json.Marshal(rec.Plan)
	if err != nil {
		return 0, fmt.Errorf("marshal plan: %w", err)
	}

	query := `
		INSERT INTO decisions (plan_id, symbol, score, bias, conviction, assessment, plan)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	var id int64
	err = r.db.QueryRowxContext(ctx, query,
		rec.PlanID, rec.Symbol, rec.Score, rec.Bias,
		convictionJSON, assessmentJSON, planJSON).Scan(&id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return 0, fmt.Errorf("duplicate plan %s: %w", rec.PlanID, err)
		}
		return 0, fmt.Errorf("insert decision: %w", err)
	}
	return id, nil
}

func (r *plansRepo) ListBySymbol(ctx context.Context, symbol string, tr persistence.TimeRange, limit int) ([]persistence.DecisionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, plan_id, symbol, score, bias, conviction, assessment, plan, created_at
		FROM decisions
		WHERE symbol = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at DESC
		LIMIT $4`

	rows, err := r.db.QueryxContext(ctx, query, symbol, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions by symbol: %w", err)
	}
	defer rows.Close()

	var recs []persistence.DecisionRecord
	for rows.Next() {
		rec, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return recs, nil
}

func (r *plansRepo) GetByPlanID(ctx context.Context, planID string) (*persistence.DecisionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, plan_id, symbol, score, bias, conviction, assessment, plan, created_at
		FROM decisions
		WHERE plan_id = $1`

	rows, err := r.db.QueryxContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("query decision by plan id: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	return scanDecision(rows)
}

func (r *plansRepo) Count(ctx context.Context, tr persistence.TimeRange) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int64
	err := r.db.QueryRowxContext(ctx,
		`SELECT COUNT(*) FROM decisions WHERE created_at >= $1 AND created_at <= $2`,
		tr.From, tr.To).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return count, nil
}

func scanDecision(rows *sqlx.Rows) (*persistence.DecisionRecord, error) {
	var rec persistence.DecisionRecord
	var convictionJSON, assessmentJSON, planJSON []byte

	err := rows.Scan(
		&rec.ID, &rec.PlanID, &rec.Symbol, &rec.Score, &rec.Bias,
		&convictionJSON, &assessmentJSON, &planJSON, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan decision: %w", err)
	}

	if len(convictionJSON) > 0 {
		if err := json.Unmarshal(convictionJSON, &rec.Conviction); err != nil {
			return nil, fmt.Errorf("unmarshal conviction: %w", err)
		}
	}
	if len(assessmentJSON) > 0 {
		if err := json.Unmarshal(assessmentJSON, &rec.Assessment); err != nil {
			return nil, fmt.Errorf("unmarshal assessment: %w", err)
		}
	}
	if len(planJSON) > 0 {
		if err := json.Unmarshal(planJSON, &rec.Plan); err != nil {
			return nil, fmt.Errorf("unmarshal plan: %w", err)
		}
	}
	return &rec, nil
}
