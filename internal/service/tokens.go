package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gw2armory/armory-back/internal/integrations/gw2"
	"github.com/gw2armory/armory-back/internal/models"
)

// accountSummary holds the account fields persisted next to a key. The
// account map has already been normalized to camelCase.
type accountSummary struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	World  int      `json:"world"`
	Guilds []string `json:"guilds"`
}

func summarizeAccount(account map[string]any) (accountSummary, error) {
	var summary accountSummary
	data, err := json.Marshal(account)
	if err != nil {
		return summary, fmt.Errorf("failed to encode account: %w", err)
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		return summary, fmt.Errorf("failed to decode account: %w", err)
	}
	return summary, nil
}

// AddToken validates a GW2 API key against the API and stores it for the user
func (s *Service) AddToken(ctx context.Context, userID int64, token string) (*models.ApiToken, error) {
	res, err := s.gw2.ReadTokenInfoWithAccount(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to validate api token: %w", err)
	}

	info, err := gw2.DecodeTokenInfo(res.Info)
	if err != nil {
		return nil, err
	}
	summary, err := summarizeAccount(res.Account)
	if err != nil {
		return nil, err
	}

	sealed, err := s.sealer.Seal(token)
	if err != nil {
		return nil, fmt.Errorf("failed to seal api token: %w", err)
	}

	apiToken := &models.ApiToken{
		UserID:      userID,
		Sealed:      sealed,
		Digest:      s.sealer.Digest(token),
		AccountName: summary.Name,
		AccountID:   summary.ID,
		Permissions: info.Permissions,
		World:       summary.World,
		Guilds:      summary.Guilds,
	}
	if apiToken.Permissions == nil {
		apiToken.Permissions = []string{}
	}
	if apiToken.Guilds == nil {
		apiToken.Guilds = []string{}
	}

	if err := s.store.CreateApiToken(ctx, apiToken); err != nil {
		return nil, err
	}

	s.log.Infof("Api token %d added for user %d: %s", apiToken.ID, userID, apiToken.AccountName)
	return apiToken, nil
}

// ListTokens returns the keys a user has added
func (s *Service) ListTokens(ctx context.Context, userID int64) ([]models.ApiToken, error) {
	tokens, err := s.store.ListApiTokensByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		tokens = []models.ApiToken{}
	}
	return tokens, nil
}

// RemoveToken deletes one of the user's keys, including keys the API rejected
func (s *Service) RemoveToken(ctx context.Context, userID, tokenID int64) error {
	if _, err := s.ownedToken(ctx, userID, tokenID); err != nil {
		return err
	}
	if err := s.store.DeleteApiToken(ctx, tokenID); err != nil {
		return err
	}
	s.invalidateStandings(ctx, userID)
	s.log.Infof("Api token %d removed by user %d", tokenID, userID)
	return nil
}

// ownedToken loads a key and checks that userID owns it
func (s *Service) ownedToken(ctx context.Context, userID, tokenID int64) (*models.ApiToken, error) {
	token, err := s.store.FindApiTokenByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if token.UserID != userID {
		return nil, fmt.Errorf("api token %d: %w", tokenID, models.ErrForbidden)
	}
	return token, nil
}

// tokenFor loads a valid key owned by userID and unseals it. Keys the API
// rejected are not sent upstream again.
func (s *Service) tokenFor(ctx context.Context, userID, tokenID int64) (*models.ApiToken, error) {
	token, err := s.ownedToken(ctx, userID, tokenID)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("api token %d: %w", tokenID, models.ErrTokenInvalid)
	}
	if err := s.unseal(token); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *Service) unseal(token *models.ApiToken) error {
	plain, err := s.sealer.Open(token.Sealed)
	if err != nil {
		return fmt.Errorf("failed to unseal api token %d: %w", token.ID, err)
	}
	token.Token = plain
	return nil
}

// checkRejected marks a key invalid when the API refused the key itself and
// lets the owner know. A 403 for a missing scope or guild rank keeps the key.
// err is returned unchanged.
func (s *Service) checkRejected(ctx context.Context, token *models.ApiToken, err error) error {
	var statusErr *gw2.StatusError
	if !errors.As(err, &statusErr) || !statusErr.KeyRejected() {
		return err
	}

	s.log.Warnf("Api token %d rejected by gw2 api: %v", token.ID, statusErr)
	if invErr := s.store.InvalidateApiToken(ctx, token.ID); invErr != nil {
		s.log.Errorf("Failed to invalidate api token %d: %v", token.ID, invErr)
	}

	if s.notifier == nil {
		return err
	}
	user, userErr := s.store.FindUserByID(ctx, token.UserID)
	if userErr != nil {
		s.log.Errorf("Failed to load owner of api token %d: %v", token.ID, userErr)
		return err
	}
	if mailErr := s.notifier.SendTokenInvalidated(user.Email, user.Alias, token.AccountName); mailErr != nil {
		s.log.Errorf("Failed to notify user %d: %v", user.ID, mailErr)
	}
	return err
}
