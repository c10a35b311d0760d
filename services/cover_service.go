package services

import (
	"context"
	"io"
	"log/slog"

	"github.com/Dosada05/shared-brackets/repositories"
	"github.com/Dosada05/shared-brackets/storage"
)

type CoverService interface {
	// SetCover stores a new cover image and returns its public URL.
	SetCover(ctx context.Context, bracketID int, contentType string, image io.Reader) (string, error)
}

type coverService struct {
	bracketRepo repositories.BracketRepository
	uploader    storage.FileUploader
	logger      *slog.Logger
}

// NewCoverService accepts a nil uploader; every upload then fails with ErrCoversDisabled.
func NewCoverService(bracketRepo repositories.BracketRepository, uploader storage.FileUploader, logger *slog.Logger) CoverService {
	return &coverService{bracketRepo: bracketRepo, uploader: uploader, logger: logger}
}

func (s *coverService) SetCover(ctx context.Context, bracketID int, contentType string, image io.Reader) (string, error) {
	if s.uploader == nil {
		return "", ErrCoversDisabled
	}
	ext, err := extensionForCover(contentType)
	if err != nil {
		return "", err
	}

	b, err := s.bracketRepo.GetByID(ctx, bracketID)
	if err != nil {
		return "", mapRepositoryError(err)
	}

	key := storage.CoverKey(bracketID, ext)
	result, err := s.uploader.Upload(ctx, key, contentType, image)
	if err != nil {
		return "", err
	}

	if err = s.bracketRepo.UpdateCoverKey(ctx, bracketID, &result.Key); err != nil {
		if delErr := s.uploader.Delete(ctx, result.Key); delErr != nil {
			s.logger.WarnContext(ctx, "failed to remove orphaned cover", slog.String("key", result.Key), slog.Any("error", delErr))
		}
		return "", mapRepositoryError(err)
	}

	if old := derefString(b.CoverKey); old != "" && old != result.Key {
		if delErr := s.uploader.Delete(ctx, old); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete previous cover", slog.String("key", old), slog.Any("error", delErr))
		}
	}

	return s.uploader.GetPublicURL(result.Key), nil
}
