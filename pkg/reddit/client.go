// Package reddit is a small read-only client for Reddit's OAuth API using
// app-only (client credentials) authentication.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/tickerpulse/pkg/models"
)

const (
	DefaultAuthURL   = "https://www.reddit.com/api/v1/access_token"
	DefaultAPIURL    = "https://oauth.reddit.com"
	DefaultUserAgent = "tickerpulse/1.0"

	pageSize     = 100
	tokenSlack   = time.Minute
	errBodyLimit = 512
)

var (
	// ErrMissingCredentials means no client id or secret was configured.
	ErrMissingCredentials = errors.New("reddit credentials not configured")
	// ErrRateLimited is returned on HTTP 429.
	ErrRateLimited = errors.New("reddit rate limited")
)

// Config configures a Client.
type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	AuthURL      string
	APIURL       string
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Client fetches listings. It is safe for concurrent use; the access token
// is shared and refreshed shortly before it expires.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	c := &Client{cfg: cfg, http: cfg.HTTPClient, logger: cfg.Logger, now: time.Now}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

// Top returns the top posts of sub within tf.
func (c *Client) Top(ctx context.Context, sub string, tf models.Timeframe, limit int) ([]models.Post, error) {
	q := url.Values{"t": {string(tf)}}
	return c.posts(ctx, "/r/"+url.PathEscape(sub)+"/top", q, limit)
}

// Hot returns the current hot listing of sub.
func (c *Client) Hot(ctx context.Context, sub string, limit int) ([]models.Post, error) {
	return c.posts(ctx, "/r/"+url.PathEscape(sub)+"/hot", url.Values{}, limit)
}

// Search returns posts in sub matching query within tf.
func (c *Client) Search(ctx context.Context, sub, query string, tf models.Timeframe, limit int) ([]models.Post, error) {
	q := url.Values{
		"q":           {query},
		"restrict_sr": {"1"},
		"sort":        {"relevance"},
		"t":           {string(tf)},
	}
	return c.posts(ctx, "/r/"+url.PathEscape(sub)+"/search", q, limit)
}

// Comments returns up to limit top-level comments of a post, best first.
// "Load more" stubs are skipped.
func (c *Client) Comments(ctx context.Context, sub, postID string, limit int) ([]models.Comment, error) {
	q := url.Values{
		"limit": {strconv.Itoa(limit)},
		"sort":  {"top"},
		"depth": {"1"},
	}
	var pages []listing
	if err := c.get(ctx, "/r/"+url.PathEscape(sub)+"/comments/"+url.PathEscape(postID), q, &pages); err != nil {
		return nil, fmt.Errorf("comments %s: %w", postID, err)
	}
	if len(pages) < 2 {
		return nil, nil
	}

	var out []models.Comment
	for _, child := range pages[1].Data.Children {
		if child.Kind != "t1" || len(out) >= limit {
			continue
		}
		var rc rawComment
		if err := json.Unmarshal(child.Data, &rc); err != nil {
			return nil, fmt.Errorf("decode comment: %w", err)
		}
		out = append(out, models.Comment{ID: rc.ID, PostID: postID, Body: rc.Body, Score: rc.Score})
	}
	return out, nil
}

// posts pages through a listing until limit posts were collected or the
// listing ends.
func (c *Client) posts(ctx context.Context, path string, q url.Values, limit int) ([]models.Post, error) {
	q.Set("raw_json", "1")
	var out []models.Post
	after := ""
	for len(out) < limit {
		n := limit - len(out)
		if n > pageSize {
			n = pageSize
		}
		q.Set("limit", strconv.Itoa(n))
		if after != "" {
			q.Set("after", after)
		}

		var l listing
		if err := c.get(ctx, path, q, &l); err != nil {
			return out, fmt.Errorf("listing %s: %w", path, err)
		}
		for _, child := range l.Data.Children {
			if child.Kind != "t3" {
				continue
			}
			var rp rawPost
			if err := json.Unmarshal(child.Data, &rp); err != nil {
				return out, fmt.Errorf("decode post: %w", err)
			}
			out = append(out, rp.post())
		}
		after = l.Data.After
		if after == "" || len(l.Data.Children) == 0 {
			break
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	for attempt := 0; ; attempt++ {
		tok, err := c.accessToken(ctx)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+path+"?"+q.Encode(), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set("User-Agent", c.cfg.UserAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}

		// An expired or revoked token gets one fresh try.
		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			c.resetToken()
			continue
		}
		err = decode(resp, out)
		resp.Body.Close()
		return err
	}
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("reddit auth: %w", err)
	}
	defer resp.Body.Close()

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		Error       string `json:"error"`
	}
	if err := decode(resp, &tok); err != nil {
		return "", fmt.Errorf("reddit auth: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("reddit auth: no access token (%s)", tok.Error)
	}

	c.token = tok.AccessToken
	c.expires = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSlack)
	c.logger.Debug("Reddit token refreshed", zap.Int("expires_in", tok.ExpiresIn))
	return c.token, nil
}

func (c *Client) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func decode(resp *http.Response, out any) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type listing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type rawPost struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Flair       string  `json:"link_flair_text"`
	URL         string  `json:"url"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

func (p rawPost) post() models.Post {
	return models.Post{
		ID:        p.ID,
		Subreddit: p.Subreddit,
		Title:     p.Title,
		Body:      p.Selftext,
		Flair:     p.Flair,
		URL:       p.URL,
		Score:     p.Score,
		Comments:  p.NumComments,
		CreatedAt: time.Unix(int64(p.CreatedUTC), 0).UTC(),
	}
}

type rawComment struct {
	ID    string `json:"id"`
	Body  string `json:"body"`
	Score int    `json:"score"`
}
