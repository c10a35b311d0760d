package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/shared-brackets/models"
)

var (
	ErrItemNotFound       = errors.New("item not found")
	ErrItemInvalidBracket = errors.New("item bracket reference is invalid")
	ErrItemInvalidUser    = errors.New("item owner or completer reference is invalid")
)

type ItemRepository interface {
	Create(ctx context.Context, item *models.Item) error
	GetByID(ctx context.Context, id int) (*models.Item, error)
	ListByBracket(ctx context.Context, bracketID int) ([]*models.Item, error)
	Update(ctx context.Context, id int, name string, completerFbID *string) (*models.Item, error)
	AssignPairing(ctx context.Context, exec SQLExecutor, itemID int, pairingID int) error
}

type postgresItemRepository struct {
	db *sql.DB
}

func NewPostgresItemRepository(db *sql.DB) ItemRepository {
	return &postgresItemRepository{db: db}
}

const itemColumns = `id, name, bracket_id, owner_fb_id, completer_fb_id, pairing_id`

func scanItem(row rowScanner) (*models.Item, error) {
	it := &models.Item{}
	if err := row.Scan(&it.ID, &it.Name, &it.BracketID, &it.OwnerFbID, &it.CompleterFbID, &it.PairingID); err != nil {
		return nil, err
	}
	return it, nil
}

func (r *postgresItemRepository) Create(ctx context.Context, it *models.Item) error {
	query := `
		INSERT INTO brackets_items (name, bracket_id, owner_fb_id)
		VALUES ($1, $2, $3)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query, it.Name, it.BracketID, it.OwnerFbID).Scan(&it.ID)
	if err != nil {
		return r.handleItemError(err, "create")
	}
	return nil
}

func (r *postgresItemRepository) GetByID(ctx context.Context, id int) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM brackets_items WHERE id = $1`
	it, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return it, nil
}

func (r *postgresItemRepository) ListByBracket(ctx context.Context, bracketID int) ([]*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM brackets_items WHERE bracket_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, bracketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items for bracket %d: %w", bracketID, err)
	}
	defer rows.Close()

	items := make([]*models.Item, 0)
	for rows.Next() {
		it, scanErr := scanItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan item: %w", scanErr)
		}
		items = append(items, it)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during item rows iteration: %w", err)
	}
	return items, nil
}

func (r *postgresItemRepository) Update(ctx context.Context, id int, name string, completerFbID *string) (*models.Item, error) {
	query := `
		UPDATE brackets_items SET name = $1, completer_fb_id = $2
		WHERE id = $3
		RETURNING ` + itemColumns
	it, err := scanItem(r.db.QueryRowContext(ctx, query, name, completerFbID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, r.handleItemError(err, "update")
	}
	return it, nil
}

func (r *postgresItemRepository) AssignPairing(ctx context.Context, exec SQLExecutor, itemID int, pairingID int) error {
	result, err := pickExecutor(r.db, exec).ExecContext(ctx,
		`UPDATE brackets_items SET pairing_id = $1 WHERE id = $2`, pairingID, itemID)
	if err != nil {
		return fmt.Errorf("failed to assign item %d to pairing %d: %w", itemID, pairingID, err)
	}
	return checkAffectedRows(result, ErrItemNotFound)
}

func (r *postgresItemRepository) handleItemError(err error, op string) error {
	if constraint, ok := pqViolation(err, codeForeignKeyViolation); ok {
		switch constraint {
		case "brackets_items_bracket_id_fkey":
			return ErrItemInvalidBracket
		case "brackets_items_owner_fb_id_fkey", "brackets_items_completer_fb_id_fkey":
			return ErrItemInvalidUser
		}
	}
	return fmt.Errorf("failed to %s item: %w", op, err)
}
