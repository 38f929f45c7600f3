package models

import "time"

// ApiToken is a GW2 API key registered by a user, along with the account
// details read from the API when it was added.
type ApiToken struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"-"`
	Token       string    `json:"-"` // Plaintext, only populated after unsealing
	Sealed      string    `json:"-"`
	Digest      string    `json:"-"`
	AccountName string    `json:"accountName"`
	AccountID   string    `json:"accountId"`
	Permissions []string  `json:"permissions"`
	World       int       `json:"world"`
	Guilds      []string  `json:"guilds"`
	Valid       bool      `json:"valid"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HasPermission reports whether the key was granted the given scope.
func (t *ApiToken) HasPermission(permission string) bool {
	for _, p := range t.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// InGuild reports whether the key's account is a member of guildID.
func (t *ApiToken) InGuild(guildID string) bool {
	for _, g := range t.Guilds {
		if g == guildID {
			return true
		}
	}
	return false
}
