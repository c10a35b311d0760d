package models

// Item is an entry of a bracket. In tournament mode items compete in pairings
// and are called members by the view layer.
type Item struct {
	ID            int     `json:"id" db:"id"`
	Name          string  `json:"name" db:"name"`
	BracketID     int     `json:"bracketId" db:"bracket_id"`
	OwnerFbID     string  `json:"ownerFbId" db:"owner_fb_id"`
	CompleterFbID *string `json:"completerFbId" db:"completer_fb_id"`
	PairingID     *int    `json:"pairingId,omitempty" db:"pairing_id"`
}

// ItemUpdate is the subset of an item broadcast after an edit.
type ItemUpdate struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	CompleterFbID *string `json:"completerFbId"`
}
