package repository

import (
	"context"

	"github.com/deskflow/helpdesk/internal/domain"
)

// CategoryRepository reads ticket categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]domain.Category, error)
}

type categoryRepository struct {
	db DBTX
}

// NewCategoryRepository builds the repository.
func NewCategoryRepository(db DBTX) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	const query = `SELECT id, label, position FROM categories ORDER BY position ASC, label ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Category{}
	for rows.Next() {
		var cat domain.Category
		if err := rows.Scan(&cat.ID, &cat.Label, &cat.Position); err != nil {
			return nil, err
		}
		result = append(result, cat)
	}
	return result, rows.Err()
}
