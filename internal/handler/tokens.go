package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gw2armory/armory-back/internal/middleware"
	"github.com/gw2armory/armory-back/internal/service"
)

type AddTokenRequest struct {
	Token string `json:"token" validate:"required,min=20,max=128"`
}

type ClaimGuildRequest struct {
	TokenID int64  `json:"tokenId" validate:"required,gt=0"`
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name" validate:"required,max=255"`
	Tag     string `json:"tag" validate:"max=10"`
}

// AddToken validates a GW2 API key and stores it for the caller
func (h *Handler) AddToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}
	var req AddTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	token, err := h.svc.AddToken(r.Context(), userID, req.Token)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, token)
}

// ListTokens lists the caller's keys
func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}
	tokens, err := h.svc.ListTokens(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tokens)
}

// RemoveToken deletes one of the caller's keys
func (h *Handler) RemoveToken(w http.ResponseWriter, r *http.Request) {
	userID, tokenID, ok := userAndToken(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveToken(r.Context(), userID, tokenID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Account proxies the account behind a key
func (h *Handler) Account(w http.ResponseWriter, r *http.Request) {
	userID, tokenID, ok := userAndToken(w, r)
	if !ok {
		return
	}
	account, err := h.svc.Account(r.Context(), userID, tokenID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

// Achievements proxies the account's achievement progress
func (h *Handler) Achievements(w http.ResponseWriter, r *http.Request) {
	userID, tokenID, ok := userAndToken(w, r)
	if !ok {
		return
	}
	achievements, err := h.svc.Achievements(r.Context(), userID, tokenID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, achievements)
}

// Characters proxies the account's character names
func (h *Handler) Characters(w http.ResponseWriter, r *http.Request) {
	userID, tokenID, ok := userAndToken(w, r)
	if !ok {
		return
	}
	names, err := h.svc.Characters(r.Context(), userID, tokenID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, names)
}

// Character proxies one character by name
func (h *Handler) Character(w http.ResponseWriter, r *http.Request) {
	userID, tokenID, ok := userAndToken(w, r)
	if !ok {
		return
	}
	character, err := h.svc.Character(r.Context(), userID, tokenID, mux.Vars(r)["name"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, character)
}

// PvpGames proxies the account's recent pvp games
func (h *Handler) PvpGames(w http.ResponseWriter, r *http.Request) {
	userID, tokenID, ok := userAndToken(w, r)
	if !ok {
		return
	}
	games, err := h.svc.PvpGames(r.Context(), userID, tokenID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, games)
}

// PvpStats proxies the account's pvp stats
func (h *Handler) PvpStats(w http.ResponseWriter, r *http.Request) {
	userID, tokenID, ok := userAndToken(w, r)
	if !ok {
		return
	}
	stats, err := h.svc.PvpStats(r.Context(), userID, tokenID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// LivePvpStandings proxies the current pvp standings without storing them
func (h *Handler) LivePvpStandings(w http.ResponseWriter, r *http.Request) {
	userID, tokenID, ok := userAndToken(w, r)
	if !ok {
		return
	}
	standings, err := h.svc.LivePvpStandings(r.Context(), userID, tokenID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, standings)
}

// SyncPvpStandings refreshes the stored standings of a key
func (h *Handler) SyncPvpStandings(w http.ResponseWriter, r *http.Request) {
	userID, tokenID, ok := userAndToken(w, r)
	if !ok {
		return
	}
	standings, err := h.svc.SyncUserPvpStandings(r.Context(), userID, tokenID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, standings)
}

// ListPvpStandings returns the stored standings for all of the caller's keys
func (h *Handler) ListPvpStandings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}
	standings, err := h.svc.ListPvpStandings(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, standings)
}

// ClaimGuild attaches one of the caller's keys to a guild
func (h *Handler) ClaimGuild(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}
	var req ClaimGuildRequest
	if !decodeBody(w, r, &req) {
		return
	}
	guild, err := h.svc.ClaimGuild(r.Context(), userID, req.TokenID, service.GuildClaim{
		ID:   req.ID,
		Name: req.Name,
		Tag:  req.Tag,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, guild)
}

// GuildLogs proxies the log of a claimed guild
func (h *Handler) GuildLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}
	logs, err := h.svc.GuildLogs(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}
