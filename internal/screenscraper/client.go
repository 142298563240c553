package screenscraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"rommedia/internal/logging"
	"rommedia/internal/services"
)

const (
	maxBodyBytes = 16 << 20

	endpointGameInfo   = "jeuInfos.php"
	endpointGameSearch = "jeuRecherche.php"
	endpointUserInfo   = "ssuserInfos.php"
)

// HTTPDoer is the transport the client sends requests through.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Credentials identifies the developer, the software, and optionally the user.
type Credentials struct {
	DevID       string
	DevPassword string
	Software    string
	Username    string
	Password    string
}

// Client talks to the ScreenScraper api2 endpoints.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient HTTPDoer
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a ScreenScraper client.
func New(baseURL string, creds Credentials, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("screenscraper base url required")
	}
	if strings.TrimSpace(creds.DevID) == "" || strings.TrimSpace(creds.DevPassword) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "screenscraper", "new", "developer credentials required", nil)
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "screenscraper")
	return client, nil
}

// GameInfo identifies a ROM by its hashes, size, system, and file name.
func (c *Client) GameInfo(ctx context.Context, q GameQuery) (*GameResult, error) {
	params := url.Values{}
	params.Set("romtype", "rom")
	if q.CRC != "" {
		params.Set("crc", strings.ToUpper(q.CRC))
	}
	if q.MD5 != "" {
		params.Set("md5", q.MD5)
	}
	if q.SHA1 != "" {
		params.Set("sha1", q.SHA1)
	}
	if q.Size > 0 {
		params.Set("romtaille", strconv.FormatInt(q.Size, 10))
	}
	if q.SystemID > 0 {
		params.Set("systemeid", strconv.Itoa(q.SystemID))
	}
	if q.RomName != "" {
		params.Set("romnom", q.RomName)
	}

	body, err := c.get(ctx, endpointGameInfo, params)
	if err != nil {
		return nil, err
	}
	response := gjson.GetBytes(body, "response")
	jeu := response.Get("jeu")
	if !jeu.IsObject() {
		return nil, services.Wrap(services.ErrMalformedResponse, "screenscraper", endpointGameInfo, "response.jeu missing", nil)
	}
	game := parseGame(jeu)
	if game.ID == 0 {
		return nil, services.Wrap(services.ErrNotFound, "screenscraper", endpointGameInfo, "empty game", nil)
	}
	return &GameResult{Game: game, Quota: parseQuota(response.Get("ssuser"))}, nil
}

// SearchGames looks up games by title within an optional system.
func (c *Client) SearchGames(ctx context.Context, query string, systemID int) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("recherche", query)
	if systemID > 0 {
		params.Set("systemeid", strconv.Itoa(systemID))
	}

	body, err := c.get(ctx, endpointGameSearch, params)
	if err != nil {
		return nil, err
	}
	response := gjson.GetBytes(body, "response")
	jeux := response.Get("jeux")
	if jeux.Exists() && !jeux.IsArray() {
		return nil, services.Wrap(services.ErrMalformedResponse, "screenscraper", endpointGameSearch, "response.jeux is not a list", nil)
	}
	result := &SearchResult{Quota: parseQuota(response.Get("ssuser"))}
	for _, jeu := range jeux.Array() {
		game := parseGame(jeu)
		// Empty searches come back as [{}].
		if game.ID == 0 {
			continue
		}
		result.Games = append(result.Games, game)
	}
	return result, nil
}

// UserInfo returns the account's quota counters.
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	body, err := c.get(ctx, endpointUserInfo, url.Values{})
	if err != nil {
		return nil, err
	}
	user := gjson.GetBytes(body, "response.ssuser")
	if !user.IsObject() {
		return nil, services.Wrap(services.ErrMalformedResponse, "screenscraper", endpointUserInfo, "response.ssuser missing", nil)
	}
	return &UserInfo{
		ID:                  user.Get("id").String(),
		Level:               int(user.Get("niveau").Int()),
		Quota:               parseQuota(user),
		RequestsKOToday:     int(user.Get("requestskotoday").Int()),
		MaxRequestsKOPerDay: int(user.Get("maxrequestskoperday").Int()),
	}, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	params.Set("devid", c.creds.DevID)
	params.Set("devpassword", c.creds.DevPassword)
	params.Set("softname", c.creds.Software)
	params.Set("output", "json")
	if c.creds.Username != "" {
		params.Set("ssid", c.creds.Username)
		params.Set("sspassword", c.creds.Password)
	}

	endpointURL, err := url.Parse(c.baseURL + "/" + endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse screenscraper url: %w", err)
	}
	endpointURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrTransientLookup, "screenscraper", endpoint, fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrTransientLookup, "screenscraper", endpoint, "read body", err)
	}

	c.logger.Debug("screenscraper request",
		logging.String("endpoint", endpoint),
		logging.Int("status", resp.StatusCode),
		logging.Duration("latency", latency),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(endpoint, resp.StatusCode, body)
	}
	if !gjson.ValidBytes(body) {
		if isNotFoundText(body) {
			return nil, services.Wrap(services.ErrNotFound, "screenscraper", endpoint, "rom not found", nil)
		}
		return nil, services.Wrap(services.ErrMalformedResponse, "screenscraper", endpoint, "invalid json body", &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       snippet(body),
		})
	}
	return body, nil
}
