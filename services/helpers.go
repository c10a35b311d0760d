package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Dosada05/shared-brackets/models"
	"github.com/Dosada05/shared-brackets/storage"
)

// withTx runs fn inside a transaction: commit on success, rollback on error or panic.
func withTx(ctx context.Context, db *sql.DB, logger *slog.Logger, fn func(tx *sql.Tx) error) (txErr error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.ErrorContext(ctx, "rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	txErr = fn(tx)
	return txErr
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func populateCoverURL(b *models.Bracket, uploader storage.FileUploader) {
	if b == nil || b.CoverKey == nil || *b.CoverKey == "" || uploader == nil {
		return
	}
	if url := uploader.GetPublicURL(*b.CoverKey); url != "" {
		b.CoverURL = &url
	}
}

// extensionForCover accepts only the image types a webview can render.
func extensionForCover(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		return "", ErrUnsupportedCover
	}
}
