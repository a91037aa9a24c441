// Package instapaper talks to the Instapaper Full API: xAuth login, bookmark
// enumeration across folders, and text retrieval.
package instapaper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/atlas-archive/atlas/internal/errhandler"
	collyfetcher "github.com/atlas-archive/atlas/internal/fetcher/colly"
	"github.com/atlas-archive/atlas/internal/policy/backoff"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://www.instapaper.com/api/1"

// ErrMissingCredentials is returned when any of the four credentials is empty.
var ErrMissingCredentials = errors.New("instapaper credentials are incomplete")

// Config holds API credentials and the endpoint root.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Username       string
	Password       string
}

// Validate checks the credentials are present.
func (c Config) Validate() error {
	var missing []string
	for name, v := range map[string]string{
		"consumer key":    c.ConsumerKey,
		"consumer secret": c.ConsumerSecret,
		"username":        c.Username,
		"password":        c.Password,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMissingCredentials, strings.Join(sortStrings(missing), ", "))
	}
	return nil
}

// Doer performs HTTP exchanges.
type Doer interface {
	Fetch(ctx context.Context, request collyfetcher.Request) (collyfetcher.Response, error)
}

// Pacer spaces consecutive API calls.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Client is an authenticated Instapaper API client.
type Client struct {
	cfg         Config
	http        Doer
	pacer       Pacer
	retry       *backoff.Policy
	signer      *Signer
	logger      *zap.Logger
	token       string
	tokenSecret string
}

// NewClient validates cfg and returns an unauthenticated client.
func NewClient(cfg Config, doer Doer, pacer Pacer, retry *backoff.Policy, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if retry == nil {
		retry = backoff.NewExponential(errhandler.ShouldRetry)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   doer,
		pacer:  pacer,
		retry:  retry,
		signer: NewSigner(cfg.ConsumerKey, cfg.ConsumerSecret),
		logger: logger,
	}, nil
}

// Authenticate exchanges username and password for an access token (xAuth).
func (c *Client) Authenticate(ctx context.Context) error {
	body, err := c.call(ctx, "oauth/access_token", map[string]string{
		"x_auth_username": c.cfg.Username,
		"x_auth_password": c.cfg.Password,
		"x_auth_mode":     "client_auth",
	})
	if err != nil {
		return errhandler.Wrap(errhandler.CategoryAuth, "xauth", err)
	}
	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return errhandler.Wrap(errhandler.CategoryAuth, "xauth", fmt.Errorf("parse token response: %w", err))
	}
	token, secret := values.Get("oauth_token"), values.Get("oauth_token_secret")
	if token == "" || secret == "" {
		return errhandler.Wrap(errhandler.CategoryAuth, "xauth", errors.New("token response missing oauth_token"))
	}
	c.token, c.tokenSecret = token, secret
	c.logger.Info("instapaper authenticated", zap.String("username", c.cfg.Username))
	return nil
}

// Authenticated reports whether a token pair is held.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// ListBookmarks returns one bookmarks/list page for folder, excluding ids in have.
func (c *Client) ListBookmarks(ctx context.Context, folder string, have []int64, limit int) ([]Bookmark, error) {
	params := map[string]string{
		"limit":     strconv.Itoa(limit),
		"folder_id": folder,
	}
	if len(have) > 0 {
		ids := make([]string, 0, len(have))
		for _, id := range have {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		params["have"] = strings.Join(ids, ",")
	}
	body, err := c.call(ctx, "bookmarks/list", params)
	if err != nil {
		return nil, err
	}
	return decodeBookmarks(body)
}

// ListFolders returns the account's custom folders.
func (c *Client) ListFolders(ctx context.Context) ([]Folder, error) {
	body, err := c.call(ctx, "folders/list", nil)
	if err != nil {
		return nil, err
	}
	var raw []Folder
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errhandler.Wrap(errhandler.CategoryParse, "folders/list", err)
	}
	folders := raw[:0]
	for _, f := range raw {
		if f.Type == "" || f.Type == "folder" {
			folders = append(folders, f)
		}
	}
	return folders, nil
}

// GetText returns the processed text of a bookmark.
func (c *Client) GetText(ctx context.Context, bookmarkID int64) (string, error) {
	body, err := c.call(ctx, "bookmarks/get_text", map[string]string{
		"bookmark_id": strconv.FormatInt(bookmarkID, 10),
	})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// call signs and POSTs to endpoint, pacing and retrying transient failures.
func (c *Client) call(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if params == nil {
		params = map[string]string{}
	}
	target := c.cfg.BaseURL + "/" + endpoint
	var body []byte
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		if c.pacer != nil {
			if err := c.pacer.Wait(ctx); err != nil {
				return err
			}
		}
		auth := c.signer.Authorization(http.MethodPost, target, params, c.token, c.tokenSecret)
		resp, err := c.http.Fetch(ctx, collyfetcher.Request{
			URL:     target,
			Method:  http.MethodPost,
			Form:    params,
			Headers: http.Header{"Authorization": {auth}},
		})
		if err != nil {
			return errhandler.Wrap(errhandler.CategoryNetwork, endpoint, err)
		}
		if !resp.OK() {
			c.logger.Warn("instapaper call failed",
				zap.String("endpoint", endpoint),
				zap.Int("status", resp.StatusCode),
				zap.String("detail", apiErrorMessage(resp.Body)))
			return &errhandler.HTTPError{StatusCode: resp.StatusCode, URL: target}
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("instapaper %s: %w", endpoint, err)
	}
	return body, nil
}

func apiErrorMessage(body []byte) string {
	var items []struct {
		Type    string `json:"type"`
		Code    int    `json:"error_code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &items) == nil {
		for _, it := range items {
			if it.Type == "error" {
				return fmt.Sprintf("%d %s", it.Code, it.Message)
			}
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
