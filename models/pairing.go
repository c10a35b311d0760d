package models

// Pairing is a node of the elimination tree. Entrants are either items
// attached directly (pairing_id) or the winners of child pairings.
type Pairing struct {
	ID              int  `json:"id" db:"id"`
	BracketID       int  `json:"bracketId" db:"bracket_id"`
	ParentPairingID *int `json:"parentPairingId" db:"parent_pairing_id"`
	Round           int  `json:"round" db:"round"`
	Position        int  `json:"position" db:"position"`
}

// Vote is one user's pick in a pairing.
type Vote struct {
	ID        int    `json:"id" db:"id"`
	PairingID int    `json:"pairingId" db:"pairing_id"`
	UserFbID  string `json:"userFbId" db:"user_fb_id"`
	ItemID    int    `json:"itemId" db:"item_id"`
}

// Entrant is an item competing in a pairing together with its vote count.
type Entrant struct {
	ItemID int    `json:"itemId"`
	Name   string `json:"name"`
	Votes  int    `json:"votes"`
}

// PairingView is a pairing resolved against items and votes.
type PairingView struct {
	Pairing
	Entrants     []Entrant `json:"entrants"`
	WinnerItemID *int      `json:"winnerItemId"`
}
