package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/shared-brackets/models"
)

var ErrBracketNotFound = errors.New("bracket not found")

type BracketRepository interface {
	Create(ctx context.Context, bracket *models.Bracket) error
	GetByID(ctx context.Context, id int) (*models.Bracket, error)
	List(ctx context.Context) ([]*models.Bracket, error)
	// ListForUser returns the brackets a user subscribes to; a non-nil owner filters by ownership.
	ListForUser(ctx context.Context, fbID string, owner *bool) ([]*models.Bracket, error)
	UpdateTitle(ctx context.Context, id int, title string) (*models.Bracket, error)
	UpdateCoverKey(ctx context.Context, id int, coverKey *string) error
	// Lock takes a row lock on the bracket for the lifetime of exec's transaction.
	Lock(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

const bracketColumns = `b.id, b.title, b.cover_key, b.created_at`

func scanBracket(row rowScanner) (*models.Bracket, error) {
	b := &models.Bracket{}
	if err := row.Scan(&b.ID, &b.Title, &b.CoverKey, &b.CreatedAt); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *postgresBracketRepository) Create(ctx context.Context, b *models.Bracket) error {
	query := `INSERT INTO brackets (title) VALUES ($1) RETURNING id, created_at`
	if err := r.db.QueryRowContext(ctx, query, b.Title).Scan(&b.ID, &b.CreatedAt); err != nil {
		return fmt.Errorf("failed to create bracket: %w", err)
	}
	return nil
}

func (r *postgresBracketRepository) GetByID(ctx context.Context, id int) (*models.Bracket, error) {
	query := `SELECT ` + bracketColumns + ` FROM brackets b WHERE b.id = $1`
	b, err := scanBracket(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNotFound
		}
		return nil, fmt.Errorf("failed to get bracket %d: %w", id, err)
	}
	return b, nil
}

func (r *postgresBracketRepository) List(ctx context.Context) ([]*models.Bracket, error) {
	query := `SELECT ` + bracketColumns + ` FROM brackets b ORDER BY b.id`
	return r.list(ctx, query)
}

func (r *postgresBracketRepository) ListForUser(ctx context.Context, fbID string, owner *bool) ([]*models.Bracket, error) {
	query := `
		SELECT ` + bracketColumns + `
		FROM brackets b
		JOIN users_brackets ub ON ub.bracket_id = b.id
		WHERE ub.user_fb_id = $1`
	args := []interface{}{fbID}
	if owner != nil {
		query += ` AND ub.owner = $2`
		args = append(args, *owner)
	}
	query += ` ORDER BY b.id`
	return r.list(ctx, query, args...)
}

func (r *postgresBracketRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Bracket, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list brackets: %w", err)
	}
	defer rows.Close()

	brackets := make([]*models.Bracket, 0)
	for rows.Next() {
		b, scanErr := scanBracket(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan bracket: %w", scanErr)
		}
		brackets = append(brackets, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during bracket rows iteration: %w", err)
	}
	return brackets, nil
}

func (r *postgresBracketRepository) UpdateTitle(ctx context.Context, id int, title string) (*models.Bracket, error) {
	query := `UPDATE brackets b SET title = $1 WHERE b.id = $2 RETURNING ` + bracketColumns
	b, err := scanBracket(r.db.QueryRowContext(ctx, query, title, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNotFound
		}
		return nil, fmt.Errorf("failed to update title of bracket %d: %w", id, err)
	}
	return b, nil
}

func (r *postgresBracketRepository) UpdateCoverKey(ctx context.Context, id int, coverKey *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE brackets SET cover_key = $1 WHERE id = $2`, coverKey, id)
	if err != nil {
		return fmt.Errorf("failed to update cover of bracket %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}

func (r *postgresBracketRepository) Lock(ctx context.Context, exec SQLExecutor, id int) error {
	var locked int
	err := pickExecutor(r.db, exec).QueryRowContext(ctx, `SELECT id FROM brackets WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBracketNotFound
		}
		return fmt.Errorf("failed to lock bracket %d: %w", id, err)
	}
	return nil
}
