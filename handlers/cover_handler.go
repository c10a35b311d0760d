package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Dosada05/shared-brackets/middleware"
)

const maxCoverSize = 5 << 20 // 5 MB

type CoverSetter interface {
	SetCover(ctx context.Context, bracketID int, contentType string, image io.Reader) (string, error)
}

// CoverBroadcaster tells a bracket's connected viewers about a new cover.
type CoverBroadcaster interface {
	BroadcastCover(bracketID int, url string)
}

type CoverHandler struct {
	covers      CoverSetter
	broadcaster CoverBroadcaster
	logger      *slog.Logger
}

func NewCoverHandler(covers CoverSetter, broadcaster CoverBroadcaster, logger *slog.Logger) *CoverHandler {
	return &CoverHandler{covers: covers, broadcaster: broadcaster, logger: logger}
}

// Upload обрабатывает PUT /api/brackets/{bracketID}/cover (multipart, поле "cover").
func (h *CoverHandler) Upload(w http.ResponseWriter, r *http.Request) {
	bracketID, err := getIDFromURL(r, "bracketID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	ticketBracketID, err := middleware.GetTicketBracketIDFromContext(r.Context())
	if err != nil {
		errorResponse(w, r, http.StatusUnauthorized, "missing socket ticket")
		return
	}
	if ticketBracketID != bracketID {
		forbiddenResponse(w, r, "ticket was issued for another bracket")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCoverSize+1024)
	if err := r.ParseMultipartForm(maxCoverSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			errorResponse(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("cover must not exceed %d bytes", maxCoverSize))
			return
		}
		badRequestResponse(w, r, fmt.Errorf("invalid multipart form: %w", err))
		return
	}

	file, header, err := r.FormFile("cover")
	if err != nil {
		badRequestResponse(w, r, fmt.Errorf("missing 'cover' file: %w", err))
		return
	}
	defer file.Close()

	url, err := h.covers.SetCover(r.Context(), bracketID, header.Header.Get("Content-Type"), file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.broadcaster.BroadcastCover(bracketID, url)
	h.logger.Info("bracket cover updated", slog.Int("bracket_id", bracketID))

	if err := writeJSON(w, http.StatusOK, jsonResponse{"coverUrl": url}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
