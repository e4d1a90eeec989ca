package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/deskflow/helpdesk/internal/domain"
)

// ContactRepository manages contact persistence.
type ContactRepository interface {
	Create(ctx context.Context, contact *domain.Contact) error
	List(ctx context.Context) ([]domain.Contact, error)
	// FindByEmail and FindByName match case-insensitively and return nil
	// without error when nothing matches.
	FindByEmail(ctx context.Context, email string) (*domain.Contact, error)
	FindByName(ctx context.Context, name string) (*domain.Contact, error)
	ExistingEmails(ctx context.Context, emails []string) ([]string, error)
}

type contactRepository struct {
	db DBTX
}

// NewContactRepository builds the repository.
func NewContactRepository(db DBTX) ContactRepository {
	return &contactRepository{db: db}
}

const contactColumns = `id, name, email, phone, company, created_at`

func (r *contactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	const query = `
        INSERT INTO contacts (id, name, email, phone, company, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.db.Exec(ctx, query,
		contact.ID,
		contact.Name,
		contact.Email,
		contact.Phone,
		contact.Company,
		contact.CreatedAt,
	)
	return err
}

func (r *contactRepository) List(ctx context.Context) ([]domain.Contact, error) {
	rows, err := r.db.Query(ctx, `SELECT `+contactColumns+` FROM contacts ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Contact{}
	for rows.Next() {
		var contact domain.Contact
		if err := rows.Scan(&contact.ID, &contact.Name, &contact.Email, &contact.Phone, &contact.Company, &contact.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, contact)
	}
	return result, rows.Err()
}

func (r *contactRepository) FindByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	return r.findOne(ctx, `SELECT `+contactColumns+` FROM contacts WHERE lower(email) = lower($1) ORDER BY created_at ASC LIMIT 1`, email)
}

func (r *contactRepository) FindByName(ctx context.Context, name string) (*domain.Contact, error) {
	return r.findOne(ctx, `SELECT `+contactColumns+` FROM contacts WHERE lower(name) = lower($1) ORDER BY created_at ASC LIMIT 1`, name)
}

func (r *contactRepository) findOne(ctx context.Context, query string, arg any) (*domain.Contact, error) {
	var contact domain.Contact
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&contact.ID,
		&contact.Name,
		&contact.Email,
		&contact.Phone,
		&contact.Company,
		&contact.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepository) ExistingEmails(ctx context.Context, emails []string) ([]string, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT email FROM contacts WHERE lower(email) IN (SELECT lower(e) FROM unnest($1::text[]) AS e)`, emails)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		result = append(result, email)
	}
	return result, rows.Err()
}
