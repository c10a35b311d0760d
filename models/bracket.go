package models

import "time"

// DefaultBracketTitle is applied when a bracket is created or retitled without a title.
const DefaultBracketTitle = "Custom Bracket"

// Bracket is a shared list, or a tournament once pairings are generated.
type Bracket struct {
	ID        int       `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	CoverKey  *string   `json:"-" db:"cover_key"`
	CoverURL  *string   `json:"coverUrl,omitempty" db:"-"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// BracketWithUsers is a bracket together with the ids of everyone subscribed to it.
// SubscriberIDs is always an array, empty when nobody joined yet.
type BracketWithUsers struct {
	Bracket
	SubscriberIDs []string `json:"subscriberIds"`
}

// BracketPage is one page of a user's brackets.
type BracketPage struct {
	Brackets   []*Bracket `json:"brackets"`
	Total      int        `json:"total"`
	NextOffset *int       `json:"next_offset,omitempty"`
}
