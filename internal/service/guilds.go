package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gw2armory/armory-back/internal/models"
)

const permissionGuilds = "guilds"

// GuildClaim is what a user supplies when claiming a guild
type GuildClaim struct {
	ID   string
	Name string
	Tag  string
}

// ClaimGuild attaches one of the user's keys to a guild its account belongs to
func (s *Service) ClaimGuild(ctx context.Context, userID, tokenID int64, claim GuildClaim) (*models.Gw2Guild, error) {
	token, err := s.tokenFor(ctx, userID, tokenID)
	if err != nil {
		return nil, err
	}
	if !token.HasPermission(permissionGuilds) {
		return nil, fmt.Errorf("api token %d: %w", tokenID, models.ErrMissingPermission)
	}
	if !token.InGuild(claim.ID) {
		return nil, fmt.Errorf("guild %s: %w", claim.ID, models.ErrNotGuildMember)
	}

	guild := &models.Gw2Guild{
		ID:         claim.ID,
		Name:       claim.Name,
		ApiTokenID: &token.ID,
	}
	if claim.Tag != "" {
		guild.Tag = &claim.Tag
	}

	if err := s.store.UpsertGuild(ctx, guild); err != nil {
		return nil, err
	}

	s.log.Infof("Guild %s claimed by user %d with api token %d", guild.ID, userID, token.ID)
	return guild, nil
}

// GuildLogs reads the guild log with the key that claimed the guild. Only
// the owner of that key may read it.
func (s *Service) GuildLogs(ctx context.Context, userID int64, guildID string) (json.RawMessage, error) {
	guild, err := s.store.FindGuildByID(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if !guild.Claimed() {
		return nil, fmt.Errorf("guild %s has no api token: %w", guildID, models.ErrNotFound)
	}

	token, err := s.tokenFor(ctx, userID, *guild.ApiTokenID)
	if err != nil {
		return nil, err
	}

	logs, err := s.gw2.ReadGuildLogs(ctx, token.Token, guildID)
	if err != nil {
		return nil, s.checkRejected(ctx, token, err)
	}
	return logs, nil
}
