package gw2

import (
	"encoding/json"
	"fmt"
)

// Responses are handed back as the raw upstream JSON. The types below pick
// out the few fields the armory reads itself.

// TokenInfo holds the tokeninfo fields stored alongside a key.
type TokenInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// TokenInfoWithAccount pairs the tokeninfo and account responses for one key.
type TokenInfoWithAccount struct {
	Info    json.RawMessage `json:"info"`
	Account map[string]any  `json:"account"`
}

// Standing is one side (current or best) of a pvp/standings entry.
type Standing struct {
	TotalPoints int  `json:"total_points"`
	Division    int  `json:"division"`
	Tier        int  `json:"tier"`
	Points      int  `json:"points"`
	Repeats     int  `json:"repeats"`
	Rating      *int `json:"rating,omitempty"`
	Decay       *int `json:"decay,omitempty"`
}

// PvpStanding is one season entry of pvp/standings.
type PvpStanding struct {
	Current  Standing `json:"current"`
	Best     Standing `json:"best"`
	SeasonID string   `json:"season_id"`
}

// DecodeTokenInfo reads the typed fields out of a tokeninfo body.
func DecodeTokenInfo(raw json.RawMessage) (*TokenInfo, error) {
	var info TokenInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("failed to decode tokeninfo: %w", err)
	}
	return &info, nil
}

// DecodePvpStandings reads the typed season entries out of a pvp/standings body.
func DecodePvpStandings(raw json.RawMessage) ([]PvpStanding, error) {
	var standings []PvpStanding
	if err := json.Unmarshal(raw, &standings); err != nil {
		return nil, fmt.Errorf("failed to decode pvp standings: %w", err)
	}
	return standings, nil
}
