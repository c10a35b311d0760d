package models

// Membership links a user to a bracket (users_brackets row).
type Membership struct {
	ID        int    `json:"id" db:"id"`
	BracketID int    `json:"bracketId" db:"bracket_id"`
	UserFbID  string `json:"userFbId" db:"user_fb_id"`
	Owner     bool   `json:"owner" db:"owner"`
}
