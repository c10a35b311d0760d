package services

import (
	"context"
	"log/slog"

	"github.com/Dosada05/shared-brackets/models"
)

// BracketNotifier is told when a bracket gets its first owner.
type BracketNotifier interface {
	BracketCreated(ctx context.Context, bracket *models.Bracket, owner *models.User)
}

type logNotifier struct {
	logger *slog.Logger
	appURL string
}

// NewLogNotifier records "bracket created" notices in the structured log.
func NewLogNotifier(logger *slog.Logger, appURL string) BracketNotifier {
	return &logNotifier{logger: logger, appURL: appURL}
}

func (n *logNotifier) BracketCreated(ctx context.Context, b *models.Bracket, owner *models.User) {
	n.logger.InfoContext(ctx, "bracket created",
		slog.Int("bracket_id", b.ID),
		slog.String("title", b.Title),
		slog.String("owner_fb_id", owner.FbID),
		slog.String("share_image", n.appURL+"/media/button-cover.png"),
	)
}
