package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/shared-brackets/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrNoOwner      = errors.New("bracket has no owner")
)

type UserRepository interface {
	// FindOrCreate upserts by external id; nil name/profilePic keep the stored values.
	FindOrCreate(ctx context.Context, fbID string, name, profilePic *string) (*models.User, error)
	GetByFbID(ctx context.Context, fbID string) (*models.User, error)
	ListByBracket(ctx context.Context, bracketID int) ([]*models.User, error)
	GetOwner(ctx context.Context, exec SQLExecutor, bracketID int) (*models.User, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

const userColumns = `u.id, u.fb_id, u.name, u.profile_pic`

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.FbID, &u.Name, &u.ProfilePic); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *postgresUserRepository) FindOrCreate(ctx context.Context, fbID string, name, profilePic *string) (*models.User, error) {
	query := `
		INSERT INTO users AS u (fb_id, name, profile_pic)
		VALUES ($1, $2, $3)
		ON CONFLICT (fb_id) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, u.name),
			profile_pic = COALESCE(EXCLUDED.profile_pic, u.profile_pic)
		RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRowContext(ctx, query, fbID, name, profilePic))
	if err != nil {
		return nil, fmt.Errorf("failed to find or create user %s: %w", fbID, err)
	}
	return u, nil
}

func (r *postgresUserRepository) GetByFbID(ctx context.Context, fbID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.fb_id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, fbID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", fbID, err)
	}
	return u, nil
}

func (r *postgresUserRepository) ListByBracket(ctx context.Context, bracketID int) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		JOIN users_brackets ub ON ub.user_fb_id = u.fb_id
		WHERE ub.bracket_id = $1
		ORDER BY ub.id`
	rows, err := r.db.QueryContext(ctx, query, bracketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users of bracket %d: %w", bracketID, err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		u, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan user: %w", scanErr)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during user rows iteration: %w", err)
	}
	return users, nil
}

func (r *postgresUserRepository) GetOwner(ctx context.Context, exec SQLExecutor, bracketID int) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		JOIN users_brackets ub ON ub.user_fb_id = u.fb_id
		WHERE ub.bracket_id = $1 AND ub.owner`
	u, err := scanUser(pickExecutor(r.db, exec).QueryRowContext(ctx, query, bracketID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoOwner
		}
		return nil, fmt.Errorf("failed to get owner of bracket %d: %w", bracketID, err)
	}
	return u, nil
}
