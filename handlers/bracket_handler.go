package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/shared-brackets/models"
	"github.com/Dosada05/shared-brackets/services"
)

// BracketPageService is what the page and listing endpoints need.
type BracketPageService interface {
	Create(ctx context.Context, title *string) (*models.Bracket, error)
	Get(ctx context.Context, id int) (*models.Bracket, error)
	GetWithUsers(ctx context.Context, id int) (*models.BracketWithUsers, error)
	ListForUser(ctx context.Context, fbID string, filter services.BracketFilter, offset int) (*models.BracketPage, error)
}

// TicketSigner issues socket tickets for a bracket.
type TicketSigner interface {
	Issue(bracketID int) (string, error)
}

// SocketAddressConfig decides what address the page connects its socket to.
type SocketAddressConfig struct {
	Demo  bool
	Local bool
	Port  int
}

type BracketHandler struct {
	brackets BracketPageService
	tickets  TicketSigner
	socket   SocketAddressConfig
	logger   *slog.Logger
}

func NewBracketHandler(brackets BracketPageService, tickets TicketSigner, socket SocketAddressConfig, logger *slog.Logger) *BracketHandler {
	return &BracketHandler{
		brackets: brackets,
		tickets:  tickets,
		socket:   socket,
		logger:   logger,
	}
}

type bootstrapResponse struct {
	BracketID     int    `json:"bracket_id"`
	SocketAddress string `json:"socket_address"`
	SocketToken   string `json:"socket_token"`
	Demo          bool   `json:"demo"`
}

// New creates a bracket and returns the page bootstrap for it.
func (h *BracketHandler) New(w http.ResponseWriter, r *http.Request) {
	b, err := h.brackets.Create(r.Context(), nil)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.logger.Info("bracket created", slog.Int("bracket_id", b.ID))
	h.bootstrap(w, r, b.ID, http.StatusCreated)
}

// Show returns the page bootstrap for an existing bracket.
func (h *BracketHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "bracketID")
	if err != nil {
		notFoundResponse(w, r)
		return
	}
	if _, err := h.brackets.Get(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.bootstrap(w, r, id, http.StatusOK)
}

func (h *BracketHandler) bootstrap(w http.ResponseWriter, r *http.Request, bracketID, status int) {
	token, err := h.tickets.Issue(bracketID)
	if err != nil {
		serverErrorResponse(w, r, fmt.Errorf("issue socket ticket: %w", err))
		return
	}
	resp := bootstrapResponse{
		BracketID:     bracketID,
		SocketAddress: socketAddress(r, h.socket),
		SocketToken:   token,
		Demo:          h.socket.Demo,
	}
	if err := writeJSON(w, status, resp, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// socketAddress points local demos at the plain server port, everything else
// at the TLS-terminated host.
func socketAddress(r *http.Request, cfg SocketAddressConfig) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if cfg.Demo && cfg.Local {
		return fmt.Sprintf("ws://%s/ws", net.JoinHostPort(host, strconv.Itoa(cfg.Port)))
	}
	return fmt.Sprintf("wss://%s/ws", r.Host)
}

// GetWithUsers обрабатывает GET /api/brackets/{bracketID}
func (h *BracketHandler) GetWithUsers(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "bracketID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	b, err := h.brackets.GetWithUsers(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, b, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListForUser обрабатывает GET /api/users/{fbID}/brackets?filter=&offset=
func (h *BracketHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	fbID := chi.URLParam(r, "fbID")
	if fbID == "" {
		badRequestResponse(w, r, fmt.Errorf("missing fbID in URL path"))
		return
	}

	filter, err := services.ParseBracketFilter(r.URL.Query().Get("filter"))
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			badRequestResponse(w, r, fmt.Errorf("invalid offset: %q", v))
			return
		}
	}

	page, err := h.brackets.ListForUser(r.Context(), fbID, filter, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, page, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
