package models

import "time"

// Gw2Guild is a guild claimed through the API key of one of its leaders.
type Gw2Guild struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Tag        *string   `json:"tag"`
	Favor      *int      `json:"favor"`
	Resonance  *int      `json:"resonance"`
	Aetherium  *int      `json:"aetherium"`
	Influence  *int      `json:"influence"`
	Level      *int      `json:"level"`
	MOTD       *string   `json:"motd"` // at most 1000 characters
	Privacy    *string   `json:"privacy"`
	ApiTokenID *int64    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Claimed reports whether an API key is still attached to the guild.
func (g *Gw2Guild) Claimed() bool {
	return g.ApiTokenID != nil
}
