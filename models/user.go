package models

// User is identified by the external (Messenger page-scoped) id.
type User struct {
	ID         int     `json:"-" db:"id"`
	FbID       string  `json:"fbId" db:"fb_id"`
	Name       *string `json:"name,omitempty" db:"name"`
	ProfilePic *string `json:"profilePic,omitempty" db:"profile_pic"`
}

// Profile is the public view of a bracket subscriber.
type Profile struct {
	FbID       string `json:"fbId"`
	Name       string `json:"name"`
	ProfilePic string `json:"profilePic,omitempty"`
	Online     bool   `json:"online"`
}

// ProfileOf builds a profile, falling back to the external id as the name.
func ProfileOf(u *User) Profile {
	p := Profile{FbID: u.FbID, Name: u.FbID}
	if u.Name != nil && *u.Name != "" {
		p.Name = *u.Name
	}
	if u.ProfilePic != nil {
		p.ProfilePic = *u.ProfilePic
	}
	return p
}
