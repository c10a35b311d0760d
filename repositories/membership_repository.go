package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/shared-brackets/models"
)

var (
	ErrMembershipNotFound = errors.New("membership not found")
	ErrMembershipConflict = errors.New("user already belongs to this bracket")
	ErrOwnerConflict      = errors.New("bracket already has an owner")
	ErrMembershipInvalid  = errors.New("membership bracket or user reference is invalid")
)

type MembershipRepository interface {
	Get(ctx context.Context, exec SQLExecutor, bracketID int, fbID string) (*models.Membership, error)
	Create(ctx context.Context, exec SQLExecutor, m *models.Membership) error
	SetOwner(ctx context.Context, exec SQLExecutor, bracketID int, fbID string, owner bool) (*models.Membership, error)
	// ClearOwner demotes whoever owns the bracket; it is not an error when nobody does.
	ClearOwner(ctx context.Context, exec SQLExecutor, bracketID int) error
}

type postgresMembershipRepository struct {
	db *sql.DB
}

func NewPostgresMembershipRepository(db *sql.DB) MembershipRepository {
	return &postgresMembershipRepository{db: db}
}

const membershipColumns = `id, bracket_id, user_fb_id, owner`

func scanMembership(row rowScanner) (*models.Membership, error) {
	m := &models.Membership{}
	if err := row.Scan(&m.ID, &m.BracketID, &m.UserFbID, &m.Owner); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *postgresMembershipRepository) Get(ctx context.Context, exec SQLExecutor, bracketID int, fbID string) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM users_brackets WHERE bracket_id = $1 AND user_fb_id = $2`
	m, err := scanMembership(pickExecutor(r.db, exec).QueryRowContext(ctx, query, bracketID, fbID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

func (r *postgresMembershipRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Membership) error {
	query := `
		INSERT INTO users_brackets (bracket_id, user_fb_id, owner)
		VALUES ($1, $2, $3)
		RETURNING id`
	err := pickExecutor(r.db, exec).QueryRowContext(ctx, query, m.BracketID, m.UserFbID, m.Owner).Scan(&m.ID)
	if err != nil {
		return r.handleMembershipError(err)
	}
	return nil
}

func (r *postgresMembershipRepository) SetOwner(ctx context.Context, exec SQLExecutor, bracketID int, fbID string, owner bool) (*models.Membership, error) {
	query := `
		UPDATE users_brackets SET owner = $1
		WHERE bracket_id = $2 AND user_fb_id = $3
		RETURNING ` + membershipColumns
	m, err := scanMembership(pickExecutor(r.db, exec).QueryRowContext(ctx, query, owner, bracketID, fbID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, r.handleMembershipError(err)
	}
	return m, nil
}

func (r *postgresMembershipRepository) ClearOwner(ctx context.Context, exec SQLExecutor, bracketID int) error {
	_, err := pickExecutor(r.db, exec).ExecContext(ctx,
		`UPDATE users_brackets SET owner = FALSE WHERE bracket_id = $1 AND owner`, bracketID)
	if err != nil {
		return fmt.Errorf("failed to clear owner of bracket %d: %w", bracketID, err)
	}
	return nil
}

func (r *postgresMembershipRepository) handleMembershipError(err error) error {
	if constraint, ok := pqViolation(err, codeUniqueViolation); ok {
		switch constraint {
		case "users_brackets_bracket_user_key":
			return ErrMembershipConflict
		case "users_brackets_one_owner_idx":
			return ErrOwnerConflict
		}
	}
	if _, ok := pqViolation(err, codeForeignKeyViolation); ok {
		return ErrMembershipInvalid
	}
	return fmt.Errorf("membership query failed: %w", err)
}
