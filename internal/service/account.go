package service

import (
	"context"
	"encoding/json"
)

// Live reads go straight to the GW2 API with one of the caller's keys and
// return the upstream body unchanged.

// Account reads the account behind one of the user's keys
func (s *Service) Account(ctx context.Context, userID, tokenID int64) (map[string]any, error) {
	token, err := s.tokenFor(ctx, userID, tokenID)
	if err != nil {
		return nil, err
	}
	account, err := s.gw2.ReadAccount(ctx, token.Token)
	if err != nil {
		return nil, s.checkRejected(ctx, token, err)
	}
	return account, nil
}

// Achievements reads the account's achievement progress
func (s *Service) Achievements(ctx context.Context, userID, tokenID int64) (json.RawMessage, error) {
	token, err := s.tokenFor(ctx, userID, tokenID)
	if err != nil {
		return nil, err
	}
	achievements, err := s.gw2.ReadAchievements(ctx, token.Token)
	if err != nil {
		return nil, s.checkRejected(ctx, token, err)
	}
	return achievements, nil
}

// Characters lists the character names on the account
func (s *Service) Characters(ctx context.Context, userID, tokenID int64) (json.RawMessage, error) {
	token, err := s.tokenFor(ctx, userID, tokenID)
	if err != nil {
		return nil, err
	}
	names, err := s.gw2.ReadCharacters(ctx, token.Token)
	if err != nil {
		return nil, s.checkRejected(ctx, token, err)
	}
	return names, nil
}

// Character reads one character by name
func (s *Service) Character(ctx context.Context, userID, tokenID int64, name string) (json.RawMessage, error) {
	token, err := s.tokenFor(ctx, userID, tokenID)
	if err != nil {
		return nil, err
	}
	character, err := s.gw2.ReadCharacter(ctx, token.Token, name)
	if err != nil {
		return nil, s.checkRejected(ctx, token, err)
	}
	return character, nil
}

// PvpGames reads the account's recent pvp games
func (s *Service) PvpGames(ctx context.Context, userID, tokenID int64) (json.RawMessage, error) {
	token, err := s.tokenFor(ctx, userID, tokenID)
	if err != nil {
		return nil, err
	}
	games, err := s.gw2.ReadPvpGames(ctx, token.Token)
	if err != nil {
		return nil, s.checkRejected(ctx, token, err)
	}
	return games, nil
}

// PvpStats reads the account's pvp stats
func (s *Service) PvpStats(ctx context.Context, userID, tokenID int64) (json.RawMessage, error) {
	token, err := s.tokenFor(ctx, userID, tokenID)
	if err != nil {
		return nil, err
	}
	stats, err := s.gw2.ReadPvpStats(ctx, token.Token)
	if err != nil {
		return nil, s.checkRejected(ctx, token, err)
	}
	return stats, nil
}
