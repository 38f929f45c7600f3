package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gw2armory/armory-back/internal/config"
	"github.com/gw2armory/armory-back/internal/integrations/gw2"
	"github.com/gw2armory/armory-back/internal/models"
	"github.com/gw2armory/armory-back/internal/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Store is the persistence the service depends on
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id int64) (*models.User, error)

	CreateApiToken(ctx context.Context, token *models.ApiToken) error
	FindApiTokenByID(ctx context.Context, id int64) (*models.ApiToken, error)
	ListApiTokensByUser(ctx context.Context, userID int64) ([]models.ApiToken, error)
	ListValidApiTokens(ctx context.Context) ([]models.ApiToken, error)
	InvalidateApiToken(ctx context.Context, id int64) error
	DeleteApiToken(ctx context.Context, id int64) error

	UpsertPvpStandings(ctx context.Context, s *models.PvpStandings) error
	ListPvpStandingsByUser(ctx context.Context, userID int64) ([]models.PvpStandings, error)

	UpsertGuild(ctx context.Context, g *models.Gw2Guild) error
	FindGuildByID(ctx context.Context, id string) (*models.Gw2Guild, error)
}

// Gw2API is the subset of the GW2 API client used by the service
type Gw2API interface {
	ReadAccount(ctx context.Context, token string) (map[string]any, error)
	ReadAchievements(ctx context.Context, token string) (json.RawMessage, error)
	ReadCharacter(ctx context.Context, token, name string) (json.RawMessage, error)
	ReadCharacters(ctx context.Context, token string) (json.RawMessage, error)
	ReadPvpGames(ctx context.Context, token string) (json.RawMessage, error)
	ReadPvpStandings(ctx context.Context, token string) (json.RawMessage, error)
	ReadPvpStats(ctx context.Context, token string) (json.RawMessage, error)
	ReadGuildLogs(ctx context.Context, token, guildID string) (json.RawMessage, error)
	ReadTokenInfoWithAccount(ctx context.Context, token string) (*gw2.TokenInfoWithAccount, error)
}

// Notifier tells users about keys the API stopped accepting
type Notifier interface {
	SendTokenInvalidated(to, alias, accountName string) error
}

// StandingsCache caches the stored standings of a user
type StandingsCache interface {
	Get(ctx context.Context, key string) (*[]models.PvpStandings, bool)
	Set(ctx context.Context, key string, value *[]models.PvpStandings)
	Delete(ctx context.Context, key string)
}

// Service handles business logic
type Service struct {
	store    Store
	gw2      Gw2API
	sealer   *utils.TokenSealer
	notifier Notifier
	cache    StandingsCache
	log      *logrus.Logger
	config   *config.Config
}

// NewService initializes a new service
func NewService(store Store, api Gw2API, sealer *utils.TokenSealer, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{store: store, gw2: api, sealer: sealer, log: log, config: cfg}
}

// WithNotifier enables emails about rejected keys
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// WithCache enables caching of stored standings
func (s *Service) WithCache(c StandingsCache) *Service {
	s.cache = c
	return s
}

// Register creates a new user with hashed password
func (s *Service) Register(ctx context.Context, alias, email, password string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Alias:        alias,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.FindUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return "", models.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", models.ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(user.ID, 10),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tokenString, nil
}
