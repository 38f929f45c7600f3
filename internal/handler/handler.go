package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gw2armory/armory-back/internal/integrations/gw2"
	"github.com/gw2armory/armory-back/internal/middleware"
	"github.com/gw2armory/armory-back/internal/models"
	"github.com/gw2armory/armory-back/internal/service"
	"github.com/sirupsen/logrus"
)

// Armory is the service surface the handlers call into.
type Armory interface {
	Register(ctx context.Context, alias, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)

	AddToken(ctx context.Context, userID int64, token string) (*models.ApiToken, error)
	ListTokens(ctx context.Context, userID int64) ([]models.ApiToken, error)
	RemoveToken(ctx context.Context, userID, tokenID int64) error

	Account(ctx context.Context, userID, tokenID int64) (map[string]any, error)
	Achievements(ctx context.Context, userID, tokenID int64) (json.RawMessage, error)
	Characters(ctx context.Context, userID, tokenID int64) (json.RawMessage, error)
	Character(ctx context.Context, userID, tokenID int64, name string) (json.RawMessage, error)
	PvpGames(ctx context.Context, userID, tokenID int64) (json.RawMessage, error)
	PvpStats(ctx context.Context, userID, tokenID int64) (json.RawMessage, error)
	LivePvpStandings(ctx context.Context, userID, tokenID int64) (json.RawMessage, error)
	SyncUserPvpStandings(ctx context.Context, userID, tokenID int64) ([]models.PvpStandings, error)
	ListPvpStandings(ctx context.Context, userID int64) ([]models.PvpStandings, error)

	ClaimGuild(ctx context.Context, userID, tokenID int64, claim service.GuildClaim) (*models.Gw2Guild, error)
	GuildLogs(ctx context.Context, userID int64, guildID string) (json.RawMessage, error)
}

// Handler serves the armory HTTP API
type Handler struct {
	svc Armory
	log *logrus.Logger
}

// NewHandler initializes a new handler
func NewHandler(svc Armory, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts the public routes on r and the rest behind auth.
func (h *Handler) Routes(r *mux.Router, auth mux.MiddlewareFunc) {
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")

	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(auth)
	authRouter.HandleFunc("/tokens", h.AddToken).Methods("POST")
	authRouter.HandleFunc("/tokens", h.ListTokens).Methods("GET")
	authRouter.HandleFunc("/tokens/{id:[0-9]+}", h.RemoveToken).Methods("DELETE")
	authRouter.HandleFunc("/tokens/{id:[0-9]+}/account", h.Account).Methods("GET")
	authRouter.HandleFunc("/tokens/{id:[0-9]+}/achievements", h.Achievements).Methods("GET")
	authRouter.HandleFunc("/tokens/{id:[0-9]+}/characters", h.Characters).Methods("GET")
	authRouter.HandleFunc("/tokens/{id:[0-9]+}/characters/{name}", h.Character).Methods("GET")
	authRouter.HandleFunc("/tokens/{id:[0-9]+}/pvp/games", h.PvpGames).Methods("GET")
	authRouter.HandleFunc("/tokens/{id:[0-9]+}/pvp/stats", h.PvpStats).Methods("GET")
	authRouter.HandleFunc("/tokens/{id:[0-9]+}/pvp/standings", h.LivePvpStandings).Methods("GET")
	authRouter.HandleFunc("/tokens/{id:[0-9]+}/pvp/standings/sync", h.SyncPvpStandings).Methods("POST")
	authRouter.HandleFunc("/pvp/standings", h.ListPvpStandings).Methods("GET")
	authRouter.HandleFunc("/guilds", h.ClaimGuild).Methods("POST")
	authRouter.HandleFunc("/guilds/{id}/logs", h.GuildLogs).Methods("GET")
}

// Health reports that the server is up
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

// respondServiceError maps service and upstream errors onto HTTP statuses.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var statusErr *gw2.StatusError
	switch {
	case errors.Is(err, models.ErrNotFound):
		respondError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, models.ErrForbidden):
		respondError(w, http.StatusForbidden, "You can only use your own API keys")
	case errors.Is(err, models.ErrAlreadyExists):
		respondError(w, http.StatusConflict, "Already exists")
	case errors.Is(err, models.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, models.ErrMissingPermission):
		respondError(w, http.StatusUnprocessableEntity, "The API key is missing a required permission")
	case errors.Is(err, models.ErrNotGuildMember):
		respondError(w, http.StatusUnprocessableEntity, "The API key's account is not a member of that guild")
	case errors.Is(err, models.ErrTokenInvalid):
		respondError(w, http.StatusUnprocessableEntity, "The API key was rejected by the Guild Wars 2 API, remove it and add a new one")
	case errors.As(err, &statusErr) && statusErr.KeyRejected():
		respondError(w, http.StatusUnprocessableEntity, "The Guild Wars 2 API rejected the API key")
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusForbidden:
		respondError(w, http.StatusUnprocessableEntity, "The API key has no access to this resource")
	case errors.As(err, &statusErr):
		h.log.Warnf("%s %s: %v", r.Method, r.URL.Path, err)
		respondError(w, http.StatusBadGateway, "The Guild Wars 2 API request failed")
	default:
		h.log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeBody decodes and validates a JSON request body. It writes the error
// response itself and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if validationErrors := ValidateRequest(dst); validationErrors != nil {
		respondJSON(w, http.StatusBadRequest, BadRequestErrorResponse{
			Message: "Invalid request data",
			Details: validationErrors,
		})
		return false
	}
	return true
}

// userAndToken reads the authenticated user and the {id} path variable.
func userAndToken(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authorization required")
		return 0, 0, false
	}
	tokenID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid token id")
		return 0, 0, false
	}
	return userID, tokenID, true
}

type RegisterRequest struct {
	Alias    string `json:"alias" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.svc.Register(r.Context(), req.Alias, req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}
