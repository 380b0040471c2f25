package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	getAlertStatesSQL = `SELECT id, product_id, rule_key, is_triggered,
        triggered_price, triggered_at, is_active, updated_at
    FROM alert_states
    WHERE product_id = $1 AND is_active = TRUE;`

	markTriggeredSQL = `INSERT INTO alert_states (
        product_id, rule_key, is_triggered, triggered_price, triggered_at
    ) VALUES (
        $1,$2,TRUE,$3,$4
    )
    ON CONFLICT (product_id, rule_key) DO UPDATE
    SET is_triggered    = TRUE,
        triggered_price = EXCLUDED.triggered_price,
        triggered_at    = EXCLUDED.triggered_at,
        updated_at      = NOW();`

	resetAlertStateSQL = `UPDATE alert_states
    SET is_triggered = FALSE, triggered_price = NULL, triggered_at = NULL,
        updated_at = NOW()
    WHERE product_id = $1 AND rule_key = $2;`

	listTriggeredSQL = `SELECT
        a.id, a.product_id, a.rule_key, a.is_triggered,
        a.triggered_price, a.triggered_at, a.is_active, a.updated_at,
        ` + productColumnsPrefixed + `
    FROM alert_states a
    JOIN products p ON p.id = a.product_id
    WHERE a.is_triggered = TRUE AND a.is_active = TRUE AND p.is_active = TRUE
    ORDER BY a.triggered_at DESC;`
)

const productColumnsPrefixed = `p.id, p.store, p.sku, p.url, p.title, p.image_url, p.category,
        p.target_price, p.current_price, p.lowest_price, p.highest_price,
        p.is_active, p.created_at, p.updated_at`

// AlertStateStore defines persistence operations for alert trigger state.
// The (product_id, rule_key) pair is unique; marking an already-triggered
// rule as triggered again is an idempotent upsert.
type AlertStateStore interface {
	GetAlertStates(ctx context.Context, productID int64) (map[string]AlertState, error)
	MarkTriggered(ctx context.Context, productID int64, ruleKey string, price decimal.Decimal, at time.Time) error
	ResetAlertState(ctx context.Context, productID int64, ruleKey string) error
	ListTriggered(ctx context.Context) ([]TriggeredAlert, error)
}

// GetAlertStates returns the active alert states for a product keyed by rule.
func (s *Store) GetAlertStates(ctx context.Context, productID int64) (map[string]AlertState, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, getAlertStatesSQL, productID)
	if queryErr != nil {
		return nil, fmt.Errorf("get alert states: %w", queryErr)
	}
	defer rows.Close()

	states := make(map[string]AlertState)
	for rows.Next() {
		state, scanErr := scanAlertState(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		states[state.RuleKey] = state
	}
	return states, rows.Err()
}

// MarkTriggered durably records the INACTIVE -> TRIGGERED transition.
func (s *Store) MarkTriggered(ctx context.Context, productID int64, ruleKey string, price decimal.Decimal, at time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, markTriggeredSQL, productID, ruleKey, price.String(), at); execErr != nil {
		return fmt.Errorf("mark triggered: %w", execErr)
	}
	return nil
}

// ResetAlertState records the TRIGGERED -> INACTIVE transition.
func (s *Store) ResetAlertState(ctx context.Context, productID int64, ruleKey string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, resetAlertStateSQL, productID, ruleKey); execErr != nil {
		return fmt.Errorf("reset alert state: %w", execErr)
	}
	return nil
}

// ListTriggered returns currently triggered alerts with their products,
// most recently triggered first.
func (s *Store) ListTriggered(ctx context.Context) ([]TriggeredAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listTriggeredSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list triggered: %w", queryErr)
	}
	defer rows.Close()

	triggered := make([]TriggeredAlert, 0)
	for rows.Next() {
		var (
			state    AlertState
			price    sql.NullString
			at       sql.NullTime
			p        Product
			imageURL sql.NullString
			category sql.NullString
			target   sql.NullString
			current  sql.NullString
			lowest   sql.NullString
			highest  sql.NullString
		)
		if err := rows.Scan(
			&state.ID, &state.ProductID, &state.RuleKey, &state.IsTriggered,
			&price, &at, &state.IsActive, &state.UpdatedAt,
			&p.ID, &p.Store, &p.SKU, &p.URL, &p.Title, &imageURL, &category,
			&target, &current, &lowest, &highest,
			&p.IsActive, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}

		var convErr error
		if state.TriggeredPrice, convErr = parseNullDecimal(price, "triggered_price"); convErr != nil {
			return nil, convErr
		}
		if at.Valid {
			v := at.Time
			state.TriggeredAt = &v
		}
		if imageURL.Valid {
			v := imageURL.String
			p.ImageURL = &v
		}
		if category.Valid {
			v := category.String
			p.Category = &v
		}
		if p.TargetPrice, convErr = parseNullDecimal(target, "target_price"); convErr != nil {
			return nil, convErr
		}
		if p.CurrentPrice, convErr = parseNullDecimal(current, "current_price"); convErr != nil {
			return nil, convErr
		}
		if p.LowestPrice, convErr = parseNullDecimal(lowest, "lowest_price"); convErr != nil {
			return nil, convErr
		}
		if p.HighestPrice, convErr = parseNullDecimal(highest, "highest_price"); convErr != nil {
			return nil, convErr
		}

		triggered = append(triggered, TriggeredAlert{State: state, Product: p})
	}
	return triggered, rows.Err()
}

func scanAlertState(row pgx.Row) (AlertState, error) {
	var (
		state AlertState
		price sql.NullString
		at    sql.NullTime
	)
	if err := row.Scan(
		&state.ID,
		&state.ProductID,
		&state.RuleKey,
		&state.IsTriggered,
		&price,
		&at,
		&state.IsActive,
		&state.UpdatedAt,
	); err != nil {
		return AlertState{}, err
	}

	var err error
	if state.TriggeredPrice, err = parseNullDecimal(price, "triggered_price"); err != nil {
		return AlertState{}, err
	}
	if at.Valid {
		v := at.Time
		state.TriggeredAt = &v
	}
	return state, nil
}

var _ AlertStateStore = (*Store)(nil)
