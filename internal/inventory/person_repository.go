package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PersonRepository defines the interface for person persistence.
type PersonRepository interface {
	Create(ctx context.Context, person *Person) error
	GetByID(ctx context.Context, id string) (*Person, error)
	List(ctx context.Context) ([]Person, error)
	Update(ctx context.Context, person *Person) error
	Delete(ctx context.Context, id string) error
}

// SQLitePersonRepository implements PersonRepository using SQLite.
type SQLitePersonRepository struct {
	db *sql.DB
}

// NewPersonRepository creates a new SQLite-backed person repository.
func NewPersonRepository(db *sql.DB) *SQLitePersonRepository {
	return &SQLitePersonRepository{db: db}
}

// Create inserts a new person. The ID is generated if empty.
func (r *SQLitePersonRepository) Create(ctx context.Context, person *Person) error {
	if err := person.Validate(); err != nil {
		return err
	}
	if person.ID == "" {
		person.ID = "per-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	person.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	person.UpdatedAt = person.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO persons (id, first_name, last_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		person.ID, person.FirstName, person.LastName, now, now,
	)
	if err != nil {
		return fmt.Errorf("creating person: %w", err)
	}
	return nil
}

// GetByID retrieves a person by ID.
func (r *SQLitePersonRepository) GetByID(ctx context.Context, id string) (*Person, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, first_name, last_name, created_at, updated_at FROM persons WHERE id = ?", id)
	return scanPerson(row)
}

// List returns all persons ordered by last name, then first name.
func (r *SQLitePersonRepository) List(ctx context.Context) ([]Person, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, first_name, last_name, created_at, updated_at FROM persons ORDER BY last_name ASC, first_name ASC")
	if err != nil {
		return nil, fmt.Errorf("listing persons: %w", err)
	}
	defer rows.Close()

	persons := []Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating persons: %w", err)
	}
	return persons, nil
}

// Update modifies a person's name fields.
func (r *SQLitePersonRepository) Update(ctx context.Context, person *Person) error {
	if err := person.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	person.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := r.db.ExecContext(ctx,
		`UPDATE persons SET first_name = ?, last_name = ?, updated_at = ? WHERE id = ?`,
		person.FirstName, person.LastName, now, person.ID,
	)
	if err != nil {
		return fmt.Errorf("updating person: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrPersonNotFound
	}
	return nil
}

// Delete removes a person. A person still referenced by products is rejected
// with ErrPersonInUse.
func (r *SQLitePersonRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM persons WHERE id = ?", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrPersonInUse
		}
		return fmt.Errorf("deleting person: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrPersonNotFound
	}
	return nil
}

func scanPerson(s scanner) (*Person, error) {
	var p Person
	var createdAt, updatedAt string

	err := s.Scan(&p.ID, &p.FirstName, &p.LastName, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPersonNotFound
		}
		return nil, fmt.Errorf("scanning person: %w", err)
	}

	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &p, nil
}
