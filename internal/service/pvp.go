package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gw2armory/armory-back/internal/integrations/gw2"
	"github.com/gw2armory/armory-back/internal/models"
)

const permissionPvp = "pvp"

func standingsKey(userID int64) string {
	return fmt.Sprintf("pvp:standings:user:%d", userID)
}

// toPvpStandings flattens one upstream season entry into a row for tokenID.
func toPvpStandings(tokenID int64, st gw2.PvpStanding) models.PvpStandings {
	id := tokenID
	return models.PvpStandings{
		SeasonID:   st.SeasonID,
		ApiTokenID: &id,

		TotalPointsCurrent: st.Current.TotalPoints,
		DivisionCurrent:    st.Current.Division,
		PointsCurrent:      st.Current.Points,
		RepeatsCurrent:     st.Current.Repeats,
		RatingCurrent:      st.Current.Rating,
		DecayCurrent:       st.Current.Decay,

		TotalPointsBest: st.Best.TotalPoints,
		DivisionBest:    st.Best.Division,
		PointsBest:      st.Best.Points,
		RepeatsBest:     st.Best.Repeats,
		RatingBest:      st.Best.Rating,
		DecayBest:       st.Best.Decay,
	}
}

// LivePvpStandings reads the current standings from the API without storing them
func (s *Service) LivePvpStandings(ctx context.Context, userID, tokenID int64) (json.RawMessage, error) {
	token, err := s.tokenFor(ctx, userID, tokenID)
	if err != nil {
		return nil, err
	}
	standings, err := s.gw2.ReadPvpStandings(ctx, token.Token)
	if err != nil {
		return nil, s.checkRejected(ctx, token, err)
	}
	return standings, nil
}

// SyncUserPvpStandings refreshes the stored standings of one of the user's keys
func (s *Service) SyncUserPvpStandings(ctx context.Context, userID, tokenID int64) ([]models.PvpStandings, error) {
	token, err := s.tokenFor(ctx, userID, tokenID)
	if err != nil {
		return nil, err
	}
	return s.SyncPvpStandings(ctx, token)
}

// SyncPvpStandings reads pvp/standings with an unsealed key and upserts one
// row per season.
func (s *Service) SyncPvpStandings(ctx context.Context, token *models.ApiToken) ([]models.PvpStandings, error) {
	if !token.HasPermission(permissionPvp) {
		return nil, fmt.Errorf("api token %d: %w", token.ID, models.ErrMissingPermission)
	}

	raw, err := s.gw2.ReadPvpStandings(ctx, token.Token)
	if err != nil {
		return nil, s.checkRejected(ctx, token, err)
	}
	standings, err := gw2.DecodePvpStandings(raw)
	if err != nil {
		return nil, err
	}

	rows := make([]models.PvpStandings, 0, len(standings))
	for _, st := range standings {
		row := toPvpStandings(token.ID, st)
		if err := s.store.UpsertPvpStandings(ctx, &row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	s.invalidateStandings(ctx, token.UserID)
	s.log.Debugf("Synced %d pvp seasons for api token %d", len(rows), token.ID)
	return rows, nil
}

// SyncAllPvpStandings refreshes standings for every valid key with the pvp
// permission. Per-key failures are logged and skipped.
func (s *Service) SyncAllPvpStandings(ctx context.Context) (int, error) {
	tokens, err := s.store.ListValidApiTokens(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for i := range tokens {
		token := &tokens[i]
		if !token.HasPermission(permissionPvp) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := s.unseal(token); err != nil {
			s.log.Errorf("Skipping api token %d: %v", token.ID, err)
			continue
		}
		if _, err := s.SyncPvpStandings(ctx, token); err != nil {
			s.log.Warnf("Failed to sync pvp standings for api token %d: %v", token.ID, err)
			continue
		}
		synced++
	}

	s.log.Infof("Pvp standings synced for %d api tokens", synced)
	return synced, nil
}

// ListPvpStandings returns the stored standings for all of the user's keys
func (s *Service) ListPvpStandings(ctx context.Context, userID int64) ([]models.PvpStandings, error) {
	key := standingsKey(userID)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			return *cached, nil
		}
	}

	standings, err := s.store.ListPvpStandingsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if standings == nil {
		standings = []models.PvpStandings{}
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, &standings)
	}
	return standings, nil
}

func (s *Service) invalidateStandings(ctx context.Context, userID int64) {
	if s.cache != nil {
		s.cache.Delete(ctx, standingsKey(userID))
	}
}
