package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/shared-brackets/brackets"
	"github.com/Dosada05/shared-brackets/models"
	"github.com/Dosada05/shared-brackets/services"
)

const defaultEventTimeout = 10 * time.Second

// The gateway needs only these slices of the services.
type (
	SocketBracketService interface {
		Get(ctx context.Context, id int) (*models.Bracket, error)
		GetAllItems(ctx context.Context, id int) ([]*models.Item, error)
		GetAllUsers(ctx context.Context, id int) ([]*models.User, error)
		GetOwner(ctx context.Context, id int) (*models.User, error)
		AddUser(ctx context.Context, bracketID int, fbID string) (*models.Membership, bool, error)
		TransferOwner(ctx context.Context, bracketID int, requesterFbID, fbID string) (*models.Membership, error)
		SetTitle(ctx context.Context, bracketID int, title *string) (*models.Bracket, error)
	}

	SocketItemService interface {
		Create(ctx context.Context, bracketID int, ownerFbID, name string) (*models.Item, error)
		Update(ctx context.Context, bracketID, id int, name string, completerFbID *string) (*models.ItemUpdate, error)
	}

	SocketUserService interface {
		FindOrCreate(ctx context.Context, fbID string, name, profilePic *string) (*models.User, error)
	}

	SocketTournamentService interface {
		Start(ctx context.Context, bracketID int, requesterFbID string) ([]models.PairingView, error)
		Tree(ctx context.Context, bracketID int) ([]models.PairingView, error)
		CastVote(ctx context.Context, bracketID, pairingID int, fbID string, itemID int) (*services.VoteResult, error)
	}
)

type GatewayServices struct {
	Brackets    SocketBracketService
	Items       SocketItemService
	Users       SocketUserService
	Tournaments SocketTournamentService
}

// EventRecorder counts handled events by name and ack status.
type EventRecorder interface {
	EventHandled(event, status string)
}

// Gateway dispatches client events of the real-time channel and fans the
// resulting changes out to the bracket's room.
type Gateway struct {
	hub          *brackets.Hub
	sessions     *brackets.SessionRegistry
	svc          GatewayServices
	validate     *validator.Validate
	metrics      EventRecorder
	logger       *slog.Logger
	eventTimeout time.Duration
}

func NewGateway(hub *brackets.Hub, sessions *brackets.SessionRegistry, svc GatewayServices, metrics EventRecorder, logger *slog.Logger) *Gateway {
	return &Gateway{
		hub:          hub,
		sessions:     sessions,
		svc:          svc,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		metrics:      metrics,
		logger:       logger,
		eventTimeout: defaultEventTimeout,
	}
}

type joinPayload struct {
	SenderID   string  `json:"senderId" validate:"required,max=64"`
	BracketID  int     `json:"bracketId" validate:"required,gt=0"`
	Name       *string `json:"name" validate:"omitempty,max=200"`
	ProfilePic *string `json:"profilePic" validate:"omitempty,url"`
}

type itemAddPayload struct {
	Name string `json:"name" validate:"max=500"`
}

type itemUpdatePayload struct {
	ID            int     `json:"id" validate:"required,gt=0"`
	Name          string  `json:"name" validate:"max=500"`
	CompleterFbID *string `json:"completerFbId" validate:"omitempty,max=64"`
}

type titlePayload struct {
	Title *string `json:"title" validate:"omitempty,max=200"`
}

type ownerPayload struct {
	UserID string `json:"userId" validate:"required,max=64"`
}

type votePayload struct {
	PairingID int `json:"pairingId" validate:"required,gt=0"`
	ItemID    int `json:"itemId" validate:"required,gt=0"`
}

type initPayload struct {
	models.Bracket
	Items    []*models.Item       `json:"items"`
	Users    []models.Profile     `json:"users"`
	OwnerID  string               `json:"ownerId"`
	Pairings []models.PairingView `json:"pairings"`
}

type coverPayload struct {
	CoverURL string `json:"coverUrl"`
}

func (g *Gateway) HandleMessage(c *brackets.Client, raw []byte) {
	var msg brackets.InboundMessage
	if err := decodeJSON(raw, &msg); err != nil || msg.Type == "" {
		g.logger.Debug("malformed socket frame", slog.String("conn_id", c.ID.String()), slog.Any("error", err))
		g.finish(c, "unknown", "", brackets.StatusInvalid)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.eventTimeout)
	defer cancel()

	var status string
	switch msg.Type {
	case brackets.EventUserJoin:
		status = g.onJoin(ctx, c, msg.Payload)
	case brackets.EventItemAdd:
		status = g.withSession(ctx, c, msg.Payload, g.onItemAdd)
	case brackets.EventItemUpdate:
		status = g.withSession(ctx, c, msg.Payload, g.onItemUpdate)
	case brackets.EventTitleUpdate:
		status = g.withSession(ctx, c, msg.Payload, g.onTitleUpdate)
	case brackets.EventOwnerSet:
		status = g.withSession(ctx, c, msg.Payload, g.onOwnerSet)
	case brackets.EventTournamentStart:
		status = g.withSession(ctx, c, msg.Payload, g.onTournamentStart)
	case brackets.EventVoteCast:
		status = g.withSession(ctx, c, msg.Payload, g.onVoteCast)
	default:
		status = brackets.StatusInvalid
		msg.Type = "unknown"
	}
	g.finish(c, msg.Type, msg.Ack, status)
}

func (g *Gateway) finish(c *brackets.Client, event, ack, status string) {
	if g.metrics != nil {
		g.metrics.EventHandled(event, status)
	}
	g.hub.SendTo(c, brackets.AckMessage(ack, status))
}

// HandleDisconnect drops the connection's session and tells the room who is still online.
func (g *Gateway) HandleDisconnect(c *brackets.Client) {
	g.hub.LeaveRoom(c)
	sess, ok := g.sessions.Remove(c.ID)
	if !ok {
		g.logger.Warn("disconnect of a socket without a session", slog.String("conn_id", c.ID.String()))
		return
	}
	g.hub.BroadcastToRoom(sess.BracketID, brackets.WebSocketMessage{
		Type:    brackets.EmitUsersOnline,
		Payload: g.sessions.OnlineUsers(sess.BracketID),
	})
}

// BroadcastCover tells a bracket's viewers about a new cover image.
func (g *Gateway) BroadcastCover(bracketID int, url string) {
	g.hub.BroadcastToRoom(bracketID, brackets.WebSocketMessage{Type: brackets.EmitSetCover, Payload: coverPayload{CoverURL: url}})
}

func (g *Gateway) onJoin(ctx context.Context, c *brackets.Client, raw json.RawMessage) string {
	var p joinPayload
	if !g.decode(raw, &p) {
		return brackets.StatusInvalid
	}
	if p.BracketID != c.BracketID {
		return brackets.StatusForbidden
	}

	var (
		bracket *models.Bracket
		items   []*models.Item
		owner   *models.User
		user    *models.User
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		bracket, err = g.svc.Brackets.Get(egCtx, p.BracketID)
		return err
	})
	eg.Go(func() (err error) {
		items, err = g.svc.Brackets.GetAllItems(egCtx, p.BracketID)
		return err
	})
	eg.Go(func() error {
		o, err := g.svc.Brackets.GetOwner(egCtx, p.BracketID)
		if errors.Is(err, services.ErrNoOwner) {
			return nil
		}
		owner = o
		return err
	})
	eg.Go(func() (err error) {
		user, err = g.svc.Users.FindOrCreate(egCtx, p.SenderID, p.Name, p.ProfilePic)
		return err
	})
	if err := eg.Wait(); err != nil {
		return g.statusFor(err, brackets.EventUserJoin)
	}

	_, granted, err := g.svc.Brackets.AddUser(ctx, bracket.ID, user.FbID)
	if err != nil {
		return g.statusFor(err, brackets.EventUserJoin)
	}
	if granted {
		owner = user
		g.hub.BroadcastToRoom(bracket.ID, brackets.WebSocketMessage{Type: brackets.EmitSetOwnerID, Payload: user.FbID})
	}

	g.sessions.Register(c.ID, brackets.Session{BracketID: bracket.ID, UserFbID: user.FbID})

	users, err := g.svc.Brackets.GetAllUsers(ctx, bracket.ID)
	if err != nil {
		return g.statusFor(err, brackets.EventUserJoin)
	}
	pairings, err := g.svc.Tournaments.Tree(ctx, bracket.ID)
	if err != nil {
		return g.statusFor(err, brackets.EventUserJoin)
	}

	g.hub.JoinRoom(c, bracket.ID)

	online := make(map[string]bool)
	for _, id := range g.sessions.OnlineUsers(bracket.ID) {
		online[id] = true
	}
	profiles := make([]models.Profile, 0, len(users))
	for _, u := range users {
		profile := models.ProfileOf(u)
		profile.Online = online[u.FbID]
		profiles = append(profiles, profile)
	}

	viewer := models.ProfileOf(user)
	viewer.Online = true
	g.hub.BroadcastToRoomExcept(bracket.ID, c, brackets.WebSocketMessage{Type: brackets.EmitUserJoin, Payload: viewer})

	ownerID := user.FbID
	if owner != nil {
		ownerID = owner.FbID
	}
	g.hub.SendTo(c, brackets.WebSocketMessage{Type: brackets.EmitInit, Payload: initPayload{
		Bracket:  *bracket,
		Items:    items,
		Users:    profiles,
		OwnerID:  ownerID,
		Pairings: pairings,
	}})

	g.logger.Info("user joined bracket", slog.Int("bracket_id", bracket.ID), slog.String("fb_id", user.FbID), slog.Bool("owner_granted", granted))
	return brackets.StatusOK
}

type sessionHandler func(ctx context.Context, c *brackets.Client, sess brackets.Session, raw json.RawMessage) string

func (g *Gateway) withSession(ctx context.Context, c *brackets.Client, raw json.RawMessage, next sessionHandler) string {
	sess, ok := g.sessions.Get(c.ID)
	if !ok {
		return brackets.StatusNotJoined
	}
	return next(ctx, c, sess, raw)
}

func (g *Gateway) onItemAdd(ctx context.Context, _ *brackets.Client, sess brackets.Session, raw json.RawMessage) string {
	var p itemAddPayload
	if !g.decode(raw, &p) {
		return brackets.StatusInvalid
	}
	item, err := g.svc.Items.Create(ctx, sess.BracketID, sess.UserFbID, p.Name)
	if err != nil {
		return g.statusFor(err, brackets.EventItemAdd)
	}
	g.hub.BroadcastToRoom(sess.BracketID, brackets.WebSocketMessage{Type: brackets.EmitItemAdd, Payload: item})
	return brackets.StatusOK
}

func (g *Gateway) onItemUpdate(ctx context.Context, _ *brackets.Client, sess brackets.Session, raw json.RawMessage) string {
	var p itemUpdatePayload
	if !g.decode(raw, &p) {
		return brackets.StatusInvalid
	}
	upd, err := g.svc.Items.Update(ctx, sess.BracketID, p.ID, p.Name, p.CompleterFbID)
	if err != nil {
		return g.statusFor(err, brackets.EventItemUpdate)
	}
	g.hub.BroadcastToRoom(sess.BracketID, brackets.WebSocketMessage{Type: brackets.EmitItemUpdate, Payload: upd})
	return brackets.StatusOK
}

func (g *Gateway) onTitleUpdate(ctx context.Context, c *brackets.Client, sess brackets.Session, raw json.RawMessage) string {
	var p titlePayload
	if !g.decode(raw, &p) {
		return brackets.StatusInvalid
	}
	b, err := g.svc.Brackets.SetTitle(ctx, sess.BracketID, p.Title)
	if err != nil {
		return g.statusFor(err, brackets.EventTitleUpdate)
	}
	// Автор изменения уже видит новый заголовок
	g.hub.BroadcastToRoomExcept(sess.BracketID, c, brackets.WebSocketMessage{Type: brackets.EmitTitleUpdate, Payload: b.Title})
	return brackets.StatusOK
}

func (g *Gateway) onOwnerSet(ctx context.Context, _ *brackets.Client, sess brackets.Session, raw json.RawMessage) string {
	var p ownerPayload
	if !g.decode(raw, &p) {
		return brackets.StatusInvalid
	}
	if _, err := g.svc.Brackets.TransferOwner(ctx, sess.BracketID, sess.UserFbID, p.UserID); err != nil {
		return g.statusFor(err, brackets.EventOwnerSet)
	}
	g.hub.BroadcastToRoom(sess.BracketID, brackets.WebSocketMessage{Type: brackets.EmitSetOwnerID, Payload: p.UserID})
	return brackets.StatusOK
}

func (g *Gateway) onTournamentStart(ctx context.Context, _ *brackets.Client, sess brackets.Session, _ json.RawMessage) string {
	tree, err := g.svc.Tournaments.Start(ctx, sess.BracketID, sess.UserFbID)
	if err != nil {
		return g.statusFor(err, brackets.EventTournamentStart)
	}
	g.hub.BroadcastToRoom(sess.BracketID, brackets.WebSocketMessage{Type: brackets.EmitPairingsSet, Payload: tree})
	return brackets.StatusOK
}

func (g *Gateway) onVoteCast(ctx context.Context, _ *brackets.Client, sess brackets.Session, raw json.RawMessage) string {
	var p votePayload
	if !g.decode(raw, &p) {
		return brackets.StatusInvalid
	}
	res, err := g.svc.Tournaments.CastVote(ctx, sess.BracketID, p.PairingID, sess.UserFbID, p.ItemID)
	if err != nil {
		return g.statusFor(err, brackets.EventVoteCast)
	}
	g.hub.BroadcastToRoom(sess.BracketID, brackets.WebSocketMessage{Type: brackets.EmitVoteUpdate, Payload: res})
	return brackets.StatusOK
}

// decode treats a missing or null payload as an empty object.
func (g *Gateway) decode(raw json.RawMessage, dst interface{}) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	if err := decodeJSON(trimmed, dst); err != nil {
		return false
	}
	return g.validate.Struct(dst) == nil
}

func (g *Gateway) statusFor(err error, event string) string {
	switch {
	case errors.Is(err, services.ErrBracketNotFound):
		return brackets.StatusNoBracket
	case errors.Is(err, services.ErrForbiddenOperation):
		return brackets.StatusForbidden
	case errors.Is(err, services.ErrValidationFailed),
		errors.Is(err, services.ErrItemNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrPairingNotFound),
		errors.Is(err, services.ErrNotEntrant),
		errors.Is(err, services.ErrNotEnoughItems),
		errors.Is(err, services.ErrTournamentStarted):
		return brackets.StatusInvalid
	default:
		g.logger.Error("socket event failed", slog.String("event", event), slog.Any("error", err))
		return brackets.StatusError
	}
}
