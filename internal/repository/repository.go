package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gw2armory/armory-back/internal/models"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

type scanner interface {
	Scan(dest ...any) error
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (alias, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, user.Alias, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", user.Email, models.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const userColumns = `id, alias, email, password_hash, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Alias, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindUserByEmail retrieves a user by email
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindUserByID retrieves a user by id
func (r *Repository) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// CreateApiToken stores a sealed API key. Keys are unique by digest.
func (r *Repository) CreateApiToken(ctx context.Context, token *models.ApiToken) error {
	query := `
		INSERT INTO gw2_api_tokens (user_id, token_sealed, token_digest, account_name, account_id, permissions, world, guilds, valid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, valid, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		token.UserID, token.Sealed, token.Digest, token.AccountName, token.AccountID,
		pq.Array(token.Permissions), token.World, pq.Array(token.Guilds),
	).Scan(&token.ID, &token.Valid, &token.CreatedAt, &token.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("api token: %w", models.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create api token: %w", err)
	}
	return nil
}

const tokenColumns = `id, user_id, token_sealed, token_digest, account_name, account_id, permissions, world, guilds, valid, created_at, updated_at`

func scanApiToken(row scanner) (*models.ApiToken, error) {
	token := &models.ApiToken{}
	err := row.Scan(
		&token.ID, &token.UserID, &token.Sealed, &token.Digest, &token.AccountName, &token.AccountID,
		pq.Array(&token.Permissions), &token.World, pq.Array(&token.Guilds), &token.Valid,
		&token.CreatedAt, &token.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (r *Repository) queryApiTokens(ctx context.Context, query string, args ...any) ([]models.ApiToken, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list api tokens: %w", err)
	}
	defer rows.Close()

	var tokens []models.ApiToken
	for rows.Next() {
		token, err := scanApiToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api token: %w", err)
		}
		tokens = append(tokens, *token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list api tokens: %w", err)
	}
	return tokens, nil
}

// FindApiTokenByID retrieves an API key by id
func (r *Repository) FindApiTokenByID(ctx context.Context, id int64) (*models.ApiToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM gw2_api_tokens WHERE id = $1`
	token, err := scanApiToken(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("api token %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find api token: %w", err)
	}
	return token, nil
}

// ListApiTokensByUser returns every key a user has added, newest first
func (r *Repository) ListApiTokensByUser(ctx context.Context, userID int64) ([]models.ApiToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM gw2_api_tokens WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryApiTokens(ctx, query, userID)
}

// ListValidApiTokens returns every key that has not been rejected by the API
func (r *Repository) ListValidApiTokens(ctx context.Context) ([]models.ApiToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM gw2_api_tokens WHERE valid ORDER BY id`
	return r.queryApiTokens(ctx, query)
}

// InvalidateApiToken flags a key the API no longer accepts
func (r *Repository) InvalidateApiToken(ctx context.Context, id int64) error {
	query := `UPDATE gw2_api_tokens SET valid = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to invalidate api token: %w", err)
	}
	return expectAffected(res, fmt.Sprintf("api token %d", id))
}

// DeleteApiToken removes a key. Guilds and standings keep their rows with a null key.
func (r *Repository) DeleteApiToken(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM gw2_api_tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete api token: %w", err)
	}
	return expectAffected(res, fmt.Sprintf("api token %d", id))
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return nil
}

// UpsertPvpStandings inserts or refreshes the standings of one key for one season
func (r *Repository) UpsertPvpStandings(ctx context.Context, s *models.PvpStandings) error {
	query := `
		INSERT INTO pvp_standings (
			season_id, api_token_id,
			total_points_current, division_current, points_current, repeats_current, rating_current, decay_current,
			total_points_best, division_best, points_best, repeats_best, rating_best, decay_best,
			eu_rank, na_rank, gw2a_rank, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (api_token_id, season_id) DO UPDATE SET
			total_points_current = EXCLUDED.total_points_current,
			division_current = EXCLUDED.division_current,
			points_current = EXCLUDED.points_current,
			repeats_current = EXCLUDED.repeats_current,
			rating_current = EXCLUDED.rating_current,
			decay_current = EXCLUDED.decay_current,
			total_points_best = EXCLUDED.total_points_best,
			division_best = EXCLUDED.division_best,
			points_best = EXCLUDED.points_best,
			repeats_best = EXCLUDED.repeats_best,
			rating_best = EXCLUDED.rating_best,
			decay_best = EXCLUDED.decay_best,
			eu_rank = COALESCE(EXCLUDED.eu_rank, pvp_standings.eu_rank),
			na_rank = COALESCE(EXCLUDED.na_rank, pvp_standings.na_rank),
			gw2a_rank = COALESCE(EXCLUDED.gw2a_rank, pvp_standings.gw2a_rank),
			updated_at = CURRENT_TIMESTAMP
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		s.SeasonID, s.ApiTokenID,
		s.TotalPointsCurrent, s.DivisionCurrent, s.PointsCurrent, s.RepeatsCurrent, s.RatingCurrent, s.DecayCurrent,
		s.TotalPointsBest, s.DivisionBest, s.PointsBest, s.RepeatsBest, s.RatingBest, s.DecayBest,
		s.EuRank, s.NaRank, s.Gw2aRank,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert pvp standings: %w", err)
	}
	return nil
}

// ListPvpStandingsByUser returns the stored standings for every key of a user
func (r *Repository) ListPvpStandingsByUser(ctx context.Context, userID int64) ([]models.PvpStandings, error) {
	query := `
		SELECT s.id, s.season_id, s.api_token_id,
			COALESCE(s.total_points_current, 0), COALESCE(s.division_current, 0), COALESCE(s.points_current, 0),
			COALESCE(s.repeats_current, 0), s.rating_current, s.decay_current,
			COALESCE(s.total_points_best, 0), COALESCE(s.division_best, 0), COALESCE(s.points_best, 0),
			COALESCE(s.repeats_best, 0), s.rating_best, s.decay_best,
			s.eu_rank, s.na_rank, s.gw2a_rank, s.created_at, s.updated_at
		FROM pvp_standings s
		JOIN gw2_api_tokens t ON t.id = s.api_token_id
		WHERE t.user_id = $1
		ORDER BY s.season_id, s.api_token_id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pvp standings: %w", err)
	}
	defer rows.Close()

	standings := []models.PvpStandings{}
	for rows.Next() {
		var s models.PvpStandings
		if err := rows.Scan(
			&s.ID, &s.SeasonID, &s.ApiTokenID,
			&s.TotalPointsCurrent, &s.DivisionCurrent, &s.PointsCurrent, &s.RepeatsCurrent, &s.RatingCurrent, &s.DecayCurrent,
			&s.TotalPointsBest, &s.DivisionBest, &s.PointsBest, &s.RepeatsBest, &s.RatingBest, &s.DecayBest,
			&s.EuRank, &s.NaRank, &s.Gw2aRank, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pvp standings: %w", err)
		}
		standings = append(standings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list pvp standings: %w", err)
	}
	return standings, nil
}

// UpsertGuild claims a guild for an API key, creating the row if needed
func (r *Repository) UpsertGuild(ctx context.Context, g *models.Gw2Guild) error {
	query := `
		INSERT INTO gw2_guilds (id, name, tag, favor, resonance, aetherium, influence, level, motd, privacy, api_token_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			tag = EXCLUDED.tag,
			favor = COALESCE(EXCLUDED.favor, gw2_guilds.favor),
			resonance = COALESCE(EXCLUDED.resonance, gw2_guilds.resonance),
			aetherium = COALESCE(EXCLUDED.aetherium, gw2_guilds.aetherium),
			influence = COALESCE(EXCLUDED.influence, gw2_guilds.influence),
			level = COALESCE(EXCLUDED.level, gw2_guilds.level),
			motd = COALESCE(EXCLUDED.motd, gw2_guilds.motd),
			privacy = COALESCE(EXCLUDED.privacy, gw2_guilds.privacy),
			api_token_id = EXCLUDED.api_token_id,
			updated_at = CURRENT_TIMESTAMP
		RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		g.ID, g.Name, g.Tag, g.Favor, g.Resonance, g.Aetherium, g.Influence, g.Level, g.MOTD, g.Privacy, g.ApiTokenID,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert guild: %w", err)
	}
	return nil
}

// FindGuildByID retrieves a guild by its GW2 id
func (r *Repository) FindGuildByID(ctx context.Context, id string) (*models.Gw2Guild, error) {
	query := `
		SELECT id, name, tag, favor, resonance, aetherium, influence, level, motd, privacy, api_token_id, created_at, updated_at
		FROM gw2_guilds
		WHERE id = $1`
	g := &models.Gw2Guild{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.Name, &g.Tag, &g.Favor, &g.Resonance, &g.Aetherium, &g.Influence, &g.Level,
		&g.MOTD, &g.Privacy, &g.ApiTokenID, &g.CreatedAt, &g.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("guild %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find guild: %w", err)
	}
	return g, nil
}
