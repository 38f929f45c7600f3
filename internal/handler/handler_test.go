package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/gw2armory/armory-back/internal/config"
	"github.com/gw2armory/armory-back/internal/integrations/gw2"
	"github.com/gw2armory/armory-back/internal/middleware"
	"github.com/gw2armory/armory-back/internal/models"
	"github.com/gw2armory/armory-back/internal/service"
	"github.com/sirupsen/logrus"
)

type fakeArmory struct {
	registerFn   func(alias, email, password string) (*models.User, error)
	loginFn      func(email, password string) (string, error)
	addTokenFn   func(userID int64, token string) (*models.ApiToken, error)
	listTokensFn func(userID int64) ([]models.ApiToken, error)
	removeFn     func(userID, tokenID int64) error
	accountFn    func(userID, tokenID int64) (map[string]any, error)
	characterFn  func(userID, tokenID int64, name string) (json.RawMessage, error)
	pvpGamesFn   func(userID, tokenID int64) (json.RawMessage, error)
	syncFn       func(userID, tokenID int64) ([]models.PvpStandings, error)
	standingsFn  func(userID int64) ([]models.PvpStandings, error)
	claimFn      func(userID, tokenID int64, claim service.GuildClaim) (*models.Gw2Guild, error)
	guildLogsFn  func(userID int64, guildID string) (json.RawMessage, error)
}

func (f *fakeArmory) Register(_ context.Context, alias, email, password string) (*models.User, error) {
	return f.registerFn(alias, email, password)
}

func (f *fakeArmory) Login(_ context.Context, email, password string) (string, error) {
	return f.loginFn(email, password)
}

func (f *fakeArmory) AddToken(_ context.Context, userID int64, token string) (*models.ApiToken, error) {
	return f.addTokenFn(userID, token)
}

func (f *fakeArmory) ListTokens(_ context.Context, userID int64) ([]models.ApiToken, error) {
	return f.listTokensFn(userID)
}

func (f *fakeArmory) RemoveToken(_ context.Context, userID, tokenID int64) error {
	return f.removeFn(userID, tokenID)
}

func (f *fakeArmory) Account(_ context.Context, userID, tokenID int64) (map[string]any, error) {
	return f.accountFn(userID, tokenID)
}

func (f *fakeArmory) Achievements(context.Context, int64, int64) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (f *fakeArmory) Characters(context.Context, int64, int64) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (f *fakeArmory) Character(_ context.Context, userID, tokenID int64, name string) (json.RawMessage, error) {
	return f.characterFn(userID, tokenID, name)
}

func (f *fakeArmory) PvpGames(_ context.Context, userID, tokenID int64) (json.RawMessage, error) {
	return f.pvpGamesFn(userID, tokenID)
}

func (f *fakeArmory) PvpStats(context.Context, int64, int64) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (f *fakeArmory) LivePvpStandings(context.Context, int64, int64) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (f *fakeArmory) SyncUserPvpStandings(_ context.Context, userID, tokenID int64) ([]models.PvpStandings, error) {
	return f.syncFn(userID, tokenID)
}

func (f *fakeArmory) ListPvpStandings(_ context.Context, userID int64) ([]models.PvpStandings, error) {
	return f.standingsFn(userID)
}

func (f *fakeArmory) ClaimGuild(_ context.Context, userID, tokenID int64, claim service.GuildClaim) (*models.Gw2Guild, error) {
	return f.claimFn(userID, tokenID, claim)
}

func (f *fakeArmory) GuildLogs(_ context.Context, userID int64, guildID string) (json.RawMessage, error) {
	return f.guildLogsFn(userID, guildID)
}

const testUserID int64 = 7

// asUser stands in for the JWT middleware and authenticates every request as testUserID.
func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), testUserID)))
	})
}

func newTestRouter(svc Armory) *mux.Router {
	log := logrus.New()
	log.SetOutput(io.Discard)
	r := mux.NewRouter()
	NewHandler(svc, log).Routes(r, asUser)
	return r
}

func doRequest(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, newTestRouter(&fakeArmory{}), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		registerFn func(alias, email, password string) (*models.User, error)
		wantStatus int
	}{
		{
			name: "created",
			body: RegisterRequest{Alias: "madou", Email: "madou@example.com", Password: "hunter22"},
			registerFn: func(alias, email, _ string) (*models.User, error) {
				return &models.User{ID: 1, Alias: alias, Email: email}, nil
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "invalid email",
			body:       RegisterRequest{Alias: "madou", Email: "nope", Password: "hunter22"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       "not an object",
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "duplicate",
			body: RegisterRequest{Alias: "madou", Email: "madou@example.com", Password: "hunter22"},
			registerFn: func(string, string, string) (*models.User, error) {
				return nil, models.ErrAlreadyExists
			},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeArmory{registerFn: func(alias, email, password string) (*models.User, error) {
				if tt.registerFn == nil {
					t.Fatal("service should not be called")
				}
				return tt.registerFn(alias, email, password)
			}}
			rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/register", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
		})
	}
}

func TestRegisterValidationDetails(t *testing.T) {
	rec := doRequest(t, newTestRouter(&fakeArmory{}), http.MethodPost, "/register",
		RegisterRequest{Alias: "ab", Email: "madou@example.com", Password: "hunter22"})

	var res BadRequestErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Details) != 1 || res.Details[0].Field != "Alias" || res.Details[0].Type != "min" {
		t.Errorf("details = %+v", res.Details)
	}
}

func TestLogin(t *testing.T) {
	svc := &fakeArmory{loginFn: func(email, password string) (string, error) {
		if password != "hunter22" {
			return "", models.ErrInvalidCredentials
		}
		return "jwt", nil
	}}
	r := newTestRouter(svc)

	rec := doRequest(t, r, http.MethodPost, "/login", LoginRequest{Email: "madou@example.com", Password: "hunter22"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var res map[string]string
	json.NewDecoder(rec.Body).Decode(&res)
	if res["token"] != "jwt" {
		t.Errorf("token = %q", res["token"])
	}

	rec = doRequest(t, r, http.MethodPost, "/login", LoginRequest{Email: "madou@example.com", Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestProtectedRoutesRequireJWT(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	r := mux.NewRouter()
	NewHandler(&fakeArmory{}, log).Routes(r, middleware.AuthMiddleware(&config.Config{JWTSecret: "secret"}))

	for _, path := range []string{"/tokens", "/tokens/1/account", "/pvp/standings", "/guilds/abc/logs"} {
		rec := doRequest(t, r, http.MethodGet, path, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s: status = %d, want 401", path, rec.Code)
		}
	}

	if rec := doRequest(t, r, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestAddToken(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "added", wantStatus: http.StatusCreated},
		{name: "rejected key", err: &gw2.StatusError{StatusCode: http.StatusUnauthorized, Resource: "tokeninfo"}, wantStatus: http.StatusUnprocessableEntity},
		{name: "api down", err: &gw2.StatusError{StatusCode: http.StatusServiceUnavailable, Resource: "account"}, wantStatus: http.StatusBadGateway},
		{name: "duplicate", err: models.ErrAlreadyExists, wantStatus: http.StatusConflict},
		{name: "transport", err: errors.New("dial tcp: connection refused"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeArmory{addTokenFn: func(userID int64, token string) (*models.ApiToken, error) {
				if userID != testUserID {
					t.Errorf("userID = %d, want %d", userID, testUserID)
				}
				if tt.err != nil {
					return nil, tt.err
				}
				return &models.ApiToken{ID: 3, UserID: userID, Token: token, AccountName: "madou.1234"}, nil
			}}
			rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/tokens",
				AddTokenRequest{Token: "ABCDEF00-1111-2222-3333-444455556666"})
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.err == nil && bytes.Contains(rec.Body.Bytes(), []byte("ABCDEF00")) {
				t.Error("response leaks the api key")
			}
		})
	}
}

func TestRemoveToken(t *testing.T) {
	var gotTokenID int64
	svc := &fakeArmory{removeFn: func(_, tokenID int64) error {
		gotTokenID = tokenID
		if tokenID == 9 {
			return models.ErrForbidden
		}
		return nil
	}}
	r := newTestRouter(svc)

	if rec := doRequest(t, r, http.MethodDelete, "/tokens/4", nil); rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if gotTokenID != 4 {
		t.Errorf("tokenID = %d, want 4", gotTokenID)
	}
	if rec := doRequest(t, r, http.MethodDelete, "/tokens/9", nil); rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if rec := doRequest(t, r, http.MethodDelete, "/tokens/abc", nil); rec.Code != http.StatusNotFound {
		t.Errorf("non-numeric id: status = %d, want 404", rec.Code)
	}
}

func TestAccount(t *testing.T) {
	svc := &fakeArmory{accountFn: func(_, tokenID int64) (map[string]any, error) {
		if tokenID == 2 {
			return nil, models.ErrNotFound
		}
		return map[string]any{"name": "madou.1234", "world": float64(1001)}, nil
	}}
	r := newTestRouter(svc)

	rec := doRequest(t, r, http.MethodGet, "/tokens/1/account", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var account map[string]any
	json.NewDecoder(rec.Body).Decode(&account)
	if account["name"] != "madou.1234" {
		t.Errorf("account = %v", account)
	}

	if rec := doRequest(t, r, http.MethodGet, "/tokens/2/account", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCharacterNameIsDecoded(t *testing.T) {
	const body = `{"name":"Dead Cat","backstory":["a"],"build_tabs":[1]}`
	var gotName string
	svc := &fakeArmory{characterFn: func(_, _ int64, name string) (json.RawMessage, error) {
		gotName = name
		return json.RawMessage(body), nil
	}}

	rec := doRequest(t, newTestRouter(svc), http.MethodGet, "/tokens/1/characters/Dead%20Cat", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotName != "Dead Cat" {
		t.Errorf("name = %q, want %q", gotName, "Dead Cat")
	}
	if got := strings.TrimSpace(rec.Body.String()); got != body {
		t.Errorf("body = %s, want %s", got, body)
	}
}

func TestPvpGamesErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "upstream failure", err: &gw2.StatusError{StatusCode: http.StatusInternalServerError, Resource: "pvp/games"}, wantStatus: http.StatusBadGateway},
		{name: "missing scope", err: &gw2.StatusError{StatusCode: http.StatusForbidden, Resource: "pvp/games", Body: []byte(`{"text":"requires scope pvp"}`)}, wantStatus: http.StatusUnprocessableEntity},
		{name: "key already rejected", err: models.ErrTokenInvalid, wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeArmory{pvpGamesFn: func(int64, int64) (json.RawMessage, error) { return nil, tt.err }}
			rec := doRequest(t, newTestRouter(svc), http.MethodGet, "/tokens/1/pvp/games", nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestPvpStandings(t *testing.T) {
	svc := &fakeArmory{
		syncFn: func(_, tokenID int64) ([]models.PvpStandings, error) {
			if tokenID == 5 {
				return nil, models.ErrMissingPermission
			}
			return []models.PvpStandings{{ApiTokenID: &tokenID, SeasonID: "S1"}}, nil
		},
		standingsFn: func(int64) ([]models.PvpStandings, error) {
			return []models.PvpStandings{{ID: 1, SeasonID: "S1"}}, nil
		},
	}
	r := newTestRouter(svc)

	if rec := doRequest(t, r, http.MethodPost, "/tokens/1/pvp/standings/sync", nil); rec.Code != http.StatusOK {
		t.Errorf("sync status = %d, want 200", rec.Code)
	}
	if rec := doRequest(t, r, http.MethodPost, "/tokens/5/pvp/standings/sync", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("sync without permission status = %d, want 422", rec.Code)
	}

	rec := doRequest(t, r, http.MethodGet, "/pvp/standings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var standings []models.PvpStandings
	json.NewDecoder(rec.Body).Decode(&standings)
	if len(standings) != 1 || standings[0].SeasonID != "S1" {
		t.Errorf("standings = %+v", standings)
	}
}

func TestClaimGuild(t *testing.T) {
	tests := []struct {
		name       string
		body       ClaimGuildRequest
		err        error
		wantStatus int
	}{
		{name: "claimed", body: ClaimGuildRequest{TokenID: 1, ID: "g-1", Name: "Lost Prophets", Tag: "LP"}, wantStatus: http.StatusOK},
		{name: "missing token id", body: ClaimGuildRequest{ID: "g-1", Name: "Lost Prophets"}, wantStatus: http.StatusBadRequest},
		{name: "not a member", body: ClaimGuildRequest{TokenID: 1, ID: "g-2", Name: "Other"}, err: models.ErrNotGuildMember, wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeArmory{claimFn: func(_, _ int64, claim service.GuildClaim) (*models.Gw2Guild, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return &models.Gw2Guild{ID: claim.ID, Name: claim.Name}, nil
			}}
			rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/guilds", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
		})
	}
}

func TestGuildLogs(t *testing.T) {
	svc := &fakeArmory{guildLogsFn: func(_ int64, guildID string) (json.RawMessage, error) {
		if guildID == "unclaimed" {
			return nil, models.ErrNotFound
		}
		return json.RawMessage(`[{"id":1,"type":"joined"}]`), nil
	}}
	r := newTestRouter(svc)

	if rec := doRequest(t, r, http.MethodGet, "/guilds/g-1/logs", nil); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec := doRequest(t, r, http.MethodGet, "/guilds/unclaimed/logs", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
