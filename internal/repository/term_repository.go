package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/journey-reconciler/internal/models"
)

// TermRepository reads the optional term calendar.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository constructs the repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// ListByCodes returns the calendar entries whose code matches one of codes,
// ignoring case. Unknown codes are simply absent.
func (r *TermRepository) ListByCodes(ctx context.Context, codes []string) ([]models.Term, error) {
	if len(codes) == 0 {
		return []models.Term{}, nil
	}
	query, args, err := sqlx.In("SELECT code, name, start_date, end_date FROM terms WHERE UPPER(code) IN (?) ORDER BY start_date ASC", codes)
	if err != nil {
		return nil, fmt.Errorf("build term query: %w", err)
	}
	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	return terms, nil
}
