package gw2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gw2armory/armory-back/internal/casing"
	"github.com/gw2armory/armory-back/internal/config"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

// Resource templates relative to {endpoint}v2/. {id} is replaced at call time.
const (
	resourceAccount      = "account"
	resourceAchievements = "account/achievements"
	resourceCharacter    = "characters/{id}"
	resourceCharacters   = "characters"
	resourcePvpGames     = "pvp/games"
	resourcePvpStandings = "pvp/standings"
	resourcePvpStats     = "pvp/stats"
	resourceGuildLogs    = "guild/{id}/log"
	resourceTokenInfo    = "tokeninfo"
)

// Client reads account data from the Guild Wars 2 API on behalf of a key holder.
// It keeps no state between calls and is safe for concurrent use.
type Client struct {
	endpoint string
	client   *http.Client
	log      *logrus.Logger
}

// NewClient initializes a new GW2 API client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		endpoint: cfg.Gw2Endpoint,
		client: &http.Client{
			Timeout:   cfg.Gw2Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Resource   string
	Body       []byte
}

// invalidKeyText is the error text the API sends for keys it does not recognise.
const invalidKeyText = "invalid access token"

func (e *StatusError) text() string {
	var payload struct {
		Text string `json:"text"`
	}
	if json.Unmarshal(e.Body, &payload) != nil {
		return ""
	}
	return payload.Text
}

func (e *StatusError) Error() string {
	if text := e.text(); text != "" {
		return fmt.Sprintf("gw2 %s: unexpected status code %d: %s", e.Resource, e.StatusCode, text)
	}
	return fmt.Sprintf("gw2 %s: unexpected status code %d", e.Resource, e.StatusCode)
}

// KeyRejected reports whether the API refused the key itself. A 403 for a
// missing scope or guild rank leaves the key usable and is not a rejection.
func (e *StatusError) KeyRejected() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return true
	case http.StatusForbidden:
		return strings.EqualFold(strings.TrimSpace(e.text()), invalidKeyText)
	default:
		return false
	}
}

func withID(resource, id string) string {
	return strings.Replace(resource, "{id}", url.PathEscape(id), 1)
}

// get issues one GET for resource and decodes the body into out. Errors are
// returned as produced by the transport or decoder.
func (c *Client) get(ctx context.Context, token, resource string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"v2/"+resource, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	c.log.WithFields(logrus.Fields{
		"resource": resource,
		"status":   resp.StatusCode,
		"bytes":    len(body),
	}).Debug("gw2 api response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Resource: resource, Body: body}
	}

	return json.Unmarshal(body, out)
}

// getRaw returns the response body for resource unchanged, after checking it is valid JSON.
func (c *Client) getRaw(ctx context.Context, token, resource string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, token, resource, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ReadAccount returns the account resource with its top-level keys in camelCase.
func (c *Client) ReadAccount(ctx context.Context, token string) (map[string]any, error) {
	var account map[string]any
	if err := c.get(ctx, token, resourceAccount, &account); err != nil {
		return nil, err
	}
	return casing.NormalizeKeys(account), nil
}

// ReadAchievements returns the account's achievement progress.
func (c *Client) ReadAchievements(ctx context.Context, token string) (json.RawMessage, error) {
	return c.getRaw(ctx, token, resourceAchievements)
}

// ReadCharacter returns one character by name.
func (c *Client) ReadCharacter(ctx context.Context, token, name string) (json.RawMessage, error) {
	return c.getRaw(ctx, token, withID(resourceCharacter, name))
}

// ReadCharacters returns the character names on the account.
func (c *Client) ReadCharacters(ctx context.Context, token string) (json.RawMessage, error) {
	return c.getRaw(ctx, token, resourceCharacters)
}

// gameID accepts both the string ids the live API returns and bare numbers.
type gameID string

func (g *gameID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*g = gameID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*g = gameID(n.String())
	return nil
}

// ReadPvpGames lists the recent game ids and then fetches those games. When
// there are no recent games the id list is returned and the second request is skipped.
func (c *Client) ReadPvpGames(ctx context.Context, token string) (json.RawMessage, error) {
	listed, err := c.getRaw(ctx, token, resourcePvpGames)
	if err != nil {
		return nil, err
	}
	var ids []gameID
	if err := json.Unmarshal(listed, &ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return listed, nil
	}

	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = url.QueryEscape(string(id))
	}
	return c.getRaw(ctx, token, resourcePvpGames+"?ids="+strings.Join(escaped, ","))
}

// ReadPvpStandings returns the ranked standings per season.
func (c *Client) ReadPvpStandings(ctx context.Context, token string) (json.RawMessage, error) {
	return c.getRaw(ctx, token, resourcePvpStandings)
}

// ReadPvpStats returns the account's pvp rank and win/loss record.
func (c *Client) ReadPvpStats(ctx context.Context, token string) (json.RawMessage, error) {
	return c.getRaw(ctx, token, resourcePvpStats)
}

// ReadGuildLogs needs a key belonging to the guild leader.
func (c *Client) ReadGuildLogs(ctx context.Context, token, guildID string) (json.RawMessage, error) {
	return c.getRaw(ctx, token, withID(resourceGuildLogs, guildID))
}

// ReadTokenInfo returns the key's name and permissions.
func (c *Client) ReadTokenInfo(ctx context.Context, token string) (json.RawMessage, error) {
	return c.getRaw(ctx, token, resourceTokenInfo)
}

// ReadTokenInfoWithAccount fetches tokeninfo and account concurrently and
// returns both side by side. The first failure wins.
func (c *Client) ReadTokenInfoWithAccount(ctx context.Context, token string) (*TokenInfoWithAccount, error) {
	var result TokenInfoWithAccount
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		info, err := c.ReadTokenInfo(gctx, token)
		if err != nil {
			return err
		}
		result.Info = info
		return nil
	})
	g.Go(func() error {
		account, err := c.ReadAccount(gctx, token)
		if err != nil {
			return err
		}
		result.Account = account
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &result, nil
}
