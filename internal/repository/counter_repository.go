package repository

import (
	"context"
	"fmt"

	"github.com/spec-kit/helpdesk-service/internal/ticketnumber"
)

// counterStore keeps one row per prefix and year and increments it with an
// upsert. Inside a transaction the row lock serializes concurrent creations
// until commit. A fresh row starts from the highest number already issued so
// imported tickets are never collided with.
type counterStore struct {
	db DBTX
}

// NewCounterStore returns the Postgres ticket number counter.
func NewCounterStore(db DBTX) ticketnumber.CounterStore {
	return &counterStore{db: db}
}

func (s *counterStore) Next(ctx context.Context, prefix string, year int) (int64, error) {
	const query = `
        INSERT INTO ticket_number_counters (prefix, year, last_value)
        VALUES ($1, $2, COALESCE((
            SELECT MAX(split_part(ticket_number, '-', 3)::BIGINT)
            FROM tickets WHERE ticket_number LIKE $3), 0) + 1)
        ON CONFLICT (prefix, year) DO UPDATE
            SET last_value = GREATEST(ticket_number_counters.last_value + 1, EXCLUDED.last_value)
        RETURNING last_value`
	pattern := fmt.Sprintf("%s-%d-%%", prefix, year)
	var value int64
	if err := s.db.QueryRow(ctx, query, prefix, year, pattern).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}
