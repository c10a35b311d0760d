package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/shared-brackets/models"
)

var ErrVoteInvalid = errors.New("vote references an unknown pairing, user or item")

type VoteRepository interface {
	// Upsert records the user's vote in a pairing, replacing any earlier one.
	Upsert(ctx context.Context, v *models.Vote) error
	ListByBracket(ctx context.Context, bracketID int) ([]*models.Vote, error)
}

type postgresVoteRepository struct {
	db *sql.DB
}

func NewPostgresVoteRepository(db *sql.DB) VoteRepository {
	return &postgresVoteRepository{db: db}
}

func (r *postgresVoteRepository) Upsert(ctx context.Context, v *models.Vote) error {
	query := `
		INSERT INTO votes (pairing_id, user_fb_id, item_id)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT votes_pairing_user_key DO UPDATE SET item_id = EXCLUDED.item_id
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query, v.PairingID, v.UserFbID, v.ItemID).Scan(&v.ID)
	if err != nil {
		if _, ok := pqViolation(err, codeForeignKeyViolation); ok {
			return ErrVoteInvalid
		}
		return fmt.Errorf("failed to upsert vote: %w", err)
	}
	return nil
}

func (r *postgresVoteRepository) ListByBracket(ctx context.Context, bracketID int) ([]*models.Vote, error) {
	query := `
		SELECT v.id, v.pairing_id, v.user_fb_id, v.item_id
		FROM votes v
		JOIN pairings p ON p.id = v.pairing_id
		WHERE p.bracket_id = $1
		ORDER BY v.id`
	rows, err := r.db.QueryContext(ctx, query, bracketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes for bracket %d: %w", bracketID, err)
	}
	defer rows.Close()

	votes := make([]*models.Vote, 0)
	for rows.Next() {
		v := &models.Vote{}
		if scanErr := rows.Scan(&v.ID, &v.PairingID, &v.UserFbID, &v.ItemID); scanErr != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", scanErr)
		}
		votes = append(votes, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during vote rows iteration: %w", err)
	}
	return votes, nil
}
