package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/shared-brackets/models"
)

var ErrPairingNotFound = errors.New("pairing not found")

type PairingRepository interface {
	Create(ctx context.Context, exec SQLExecutor, p *models.Pairing) error
	GetByID(ctx context.Context, id int) (*models.Pairing, error)
	ListByBracket(ctx context.Context, bracketID int) ([]*models.Pairing, error)
	CountByBracket(ctx context.Context, exec SQLExecutor, bracketID int) (int, error)
}

type postgresPairingRepository struct {
	db *sql.DB
}

func NewPostgresPairingRepository(db *sql.DB) PairingRepository {
	return &postgresPairingRepository{db: db}
}

const pairingColumns = `id, bracket_id, parent_pairing_id, round, position`

func scanPairing(row rowScanner) (*models.Pairing, error) {
	p := &models.Pairing{}
	if err := row.Scan(&p.ID, &p.BracketID, &p.ParentPairingID, &p.Round, &p.Position); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresPairingRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Pairing) error {
	query := `
		INSERT INTO pairings (bracket_id, parent_pairing_id, round, position)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	err := pickExecutor(r.db, exec).QueryRowContext(ctx, query, p.BracketID, p.ParentPairingID, p.Round, p.Position).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create pairing for bracket %d: %w", p.BracketID, err)
	}
	return nil
}

func (r *postgresPairingRepository) GetByID(ctx context.Context, id int) (*models.Pairing, error) {
	query := `SELECT ` + pairingColumns + ` FROM pairings WHERE id = $1`
	p, err := scanPairing(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPairingNotFound
		}
		return nil, fmt.Errorf("failed to get pairing %d: %w", id, err)
	}
	return p, nil
}

func (r *postgresPairingRepository) ListByBracket(ctx context.Context, bracketID int) ([]*models.Pairing, error) {
	query := `SELECT ` + pairingColumns + ` FROM pairings WHERE bracket_id = $1 ORDER BY round, position`
	rows, err := r.db.QueryContext(ctx, query, bracketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pairings for bracket %d: %w", bracketID, err)
	}
	defer rows.Close()

	pairings := make([]*models.Pairing, 0)
	for rows.Next() {
		p, scanErr := scanPairing(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan pairing: %w", scanErr)
		}
		pairings = append(pairings, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during pairing rows iteration: %w", err)
	}
	return pairings, nil
}

func (r *postgresPairingRepository) CountByBracket(ctx context.Context, exec SQLExecutor, bracketID int) (int, error) {
	var n int
	err := pickExecutor(r.db, exec).QueryRowContext(ctx, `SELECT count(*) FROM pairings WHERE bracket_id = $1`, bracketID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pairings for bracket %d: %w", bracketID, err)
	}
	return n, nil
}
