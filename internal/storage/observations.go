package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	appendObservationSQL = `INSERT INTO price_history (
        product_id, price, was_available, recorded_at
    ) VALUES (
        $1,$2,$3,$4
    )
    RETURNING id, product_id, price, was_available, recorded_at;`

	listObservationsSinceSQL = `SELECT id, product_id, price, was_available, recorded_at
    FROM price_history
    WHERE product_id = $1 AND recorded_at >= $2
    ORDER BY recorded_at ASC, id ASC;`

	listRecentObservationsSQL = `SELECT id, product_id, price, was_available, recorded_at
    FROM price_history
    WHERE product_id = $1
    ORDER BY recorded_at DESC, id DESC
    LIMIT $2;`

	countObservationsSQL = `SELECT COUNT(*) FROM price_history WHERE product_id = $1;`
)

// ObservationStore defines persistence operations for the price series.
// The series is append-only; rows are never updated.
type ObservationStore interface {
	AppendObservation(ctx context.Context, o PriceObservation) (PriceObservation, error)
	ListObservationsSince(ctx context.Context, productID int64, since time.Time) ([]PriceObservation, error)
	ListRecentObservations(ctx context.Context, productID int64, limit int) ([]PriceObservation, error)
	CountObservations(ctx context.Context, productID int64) (int64, error)
}

// AppendObservation records one price observation.
func (s *Store) AppendObservation(ctx context.Context, o PriceObservation) (PriceObservation, error) {
	pool, err := s.getPool()
	if err != nil {
		return PriceObservation{}, err
	}

	recordedAt := o.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	row := pool.QueryRow(ctx, appendObservationSQL,
		o.ProductID,
		o.Price.String(),
		o.WasAvailable,
		recordedAt,
	)

	stored, err := scanObservation(row)
	if err != nil {
		return PriceObservation{}, fmt.Errorf("append observation: %w", err)
	}
	return stored, nil
}

// ListObservationsSince returns the series from the cutoff onward, oldest first.
func (s *Store) ListObservationsSince(ctx context.Context, productID int64, since time.Time) ([]PriceObservation, error) {
	return s.queryObservations(ctx, listObservationsSinceSQL, productID, since)
}

// ListRecentObservations returns the newest observations, newest first.
func (s *Store) ListRecentObservations(ctx context.Context, productID int64, limit int) ([]PriceObservation, error) {
	return s.queryObservations(ctx, listRecentObservationsSQL, productID, limit)
}

// CountObservations counts history rows for a product.
func (s *Store) CountObservations(ctx context.Context, productID int64) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countObservationsSQL, productID).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count observations: %w", scanErr)
	}
	return count, nil
}

func (s *Store) queryObservations(ctx context.Context, query string, args ...any) ([]PriceObservation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list observations: %w", queryErr)
	}
	defer rows.Close()

	observations := make([]PriceObservation, 0)
	for rows.Next() {
		o, scanErr := scanObservation(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		observations = append(observations, o)
	}
	return observations, rows.Err()
}

func scanObservation(row pgx.Row) (PriceObservation, error) {
	var (
		o        PriceObservation
		priceStr string
	)
	if err := row.Scan(&o.ID, &o.ProductID, &priceStr, &o.WasAvailable, &o.RecordedAt); err != nil {
		return PriceObservation{}, err
	}

	price, err := parseDecimal(priceStr, "price")
	if err != nil {
		return PriceObservation{}, err
	}
	o.Price = price
	return o, nil
}

var _ ObservationStore = (*Store)(nil)
