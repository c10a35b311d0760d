package services

import (
	"errors"

	"github.com/Dosada05/shared-brackets/repositories"
)

// Общие ошибки сервисного слоя; HTTP и сокет-шлюз маппят их в ответы.
var (
	ErrBracketNotFound = errors.New("bracket not found")
	ErrItemNotFound    = errors.New("item not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrPairingNotFound = errors.New("pairing not found")
	ErrNoOwner         = errors.New("bracket has no owner")

	ErrValidationFailed   = errors.New("validation failed")
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	ErrNotEnoughItems    = errors.New("at least two items are required to start a tournament")
	ErrTournamentStarted = errors.New("tournament has already been started")
	ErrNotEntrant        = errors.New("item is not an entrant of this pairing")

	ErrCoversDisabled   = errors.New("cover uploads are not configured")
	ErrUnsupportedCover = errors.New("cover must be a jpeg, png, gif or webp image")
)

// mapRepositoryError translates repository sentinels into service errors and
// leaves anything else wrapped as is.
func mapRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrBracketNotFound):
		return ErrBracketNotFound
	case errors.Is(err, repositories.ErrItemNotFound):
		return ErrItemNotFound
	case errors.Is(err, repositories.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrPairingNotFound):
		return ErrPairingNotFound
	case errors.Is(err, repositories.ErrNoOwner):
		return ErrNoOwner
	case errors.Is(err, repositories.ErrItemInvalidBracket):
		return ErrBracketNotFound
	case errors.Is(err, repositories.ErrItemInvalidUser),
		errors.Is(err, repositories.ErrMembershipInvalid),
		errors.Is(err, repositories.ErrVoteInvalid):
		return ErrValidationFailed
	default:
		return err
	}
}
