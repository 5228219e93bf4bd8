package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	liveSourceName     = "reddit"
	liveBaseURL        = "https://oauth.reddit.com"
	liveTokenURL       = "https://www.reddit.com/api/v1/access_token"
	liveTimeout        = 30 * time.Second
	livePageLimit      = 100
	liveDefaultCap     = 1000
	liveDefaultRetries = 3
)

// Credentials are the application-only OAuth credentials of the live API.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	UserAgent    string `json:"user_agent"`
}

// Validate returns a *CredentialsError naming every missing field.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "client_id")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		missing = append(missing, "client_secret")
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		missing = append(missing, "user_agent")
	}
	if len(missing) > 0 {
		return &CredentialsError{Missing: missing}
	}
	return nil
}

// LiveConfig configures the live forum API client.
type LiveConfig struct {
	Credentials Credentials
	BaseURL     string
	TokenURL    string
	FetchCap    int // most recent posts returned per call
	MaxRetries  int
	Timeout     time.Duration
}

// LiveSource reads the forum's "new" listing directly. It has no replication
// lag but can only reach back FetchCap posts, so it patches recent data only.
type LiveSource struct {
	client     *http.Client
	oauth      clientcredentials.Config
	agent      string
	timeout    time.Duration
	baseURL    string
	fetchCap   int
	maxRetries int
}

// NewLive creates a live feed adapter. Missing credentials fail here rather than per call.
func NewLive(cfg LiveConfig) (*LiveSource, error) {
	if err := cfg.Credentials.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = liveBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = liveTokenURL
	}
	if cfg.FetchCap <= 0 {
		cfg.FetchCap = liveDefaultCap
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = liveDefaultRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = liveTimeout
	}

	ls := &LiveSource{
		oauth: clientcredentials.Config{
			ClientID:     cfg.Credentials.ClientID,
			ClientSecret: cfg.Credentials.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		agent:      cfg.Credentials.UserAgent,
		timeout:    cfg.Timeout,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		fetchCap:   cfg.FetchCap,
		maxRetries: cfg.MaxRetries,
	}
	ls.client = ls.oauthClient(http.DefaultTransport)
	return ls, nil
}

// oauthClient builds an HTTP client that authenticates through rt and
// stamps the configured User-Agent on token and API requests alike.
func (ls *LiveSource) oauthClient(rt http.RoundTripper) *http.Client {
	base := &http.Client{
		Timeout:   ls.timeout,
		Transport: &userAgentTransport{base: rt, agent: ls.agent},
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := ls.oauth.Client(ctx)
	client.Timeout = ls.timeout
	return client
}

func (ls *LiveSource) Name() string {
	return liveSourceName
}

// FetchCap returns the maximum number of posts one FetchWindow call returns.
func (ls *LiveSource) FetchCap() int {
	return ls.fetchCap
}

// FetchWindow walks the newest-first listing and returns up to FetchCap posts
// created within w, newest first. It stops early once the listing passes w.Start.
func (ls *LiveSource) FetchWindow(ctx context.Context, forum string, w Window, fields []string) ([]Post, error) {
	if w.Empty() {
		return nil, nil
	}
	fields = WithCoreFields(fields)

	var (
		posts  []Post
		cursor string
	)
	for len(posts) < ls.fetchCap {
		page, err := withRetry(ctx, ls.maxRetries, func() (liveListing, error) {
			return ls.fetchPage(ctx, forum, cursor)
		})
		if err != nil {
			return nil, &UnavailableError{Source: liveSourceName, Forum: forum, Window: w, Err: err}
		}

		for _, child := range page.Data.Children {
			p, err := postFromRecord(child.Data, fields)
			if err != nil {
				continue
			}
			if p.CreatedAt >= w.End {
				continue
			}
			if p.CreatedAt < w.Start {
				return posts, nil
			}
			posts = append(posts, p)
			if len(posts) == ls.fetchCap {
				return posts, nil
			}
		}

		cursor = page.Data.After
		if cursor == "" || len(page.Data.Children) == 0 {
			break
		}
	}

	return posts, nil
}

func (ls *LiveSource) fetchPage(ctx context.Context, forum, cursor string) (liveListing, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(livePageLimit))
	q.Set("raw_json", "1")
	if cursor != "" {
		q.Set("after", cursor)
	}

	u := fmt.Sprintf("%s/r/%s/new?%s", ls.baseURL, url.PathEscape(forum), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return liveListing{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := ls.client.Do(req)
	if err != nil {
		return liveListing{}, fmt.Errorf("fetch r/%s: %w", forum, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return liveListing{}, fmt.Errorf("r/%s: %w", forum, &statusError{Code: resp.StatusCode})
	}

	var listing liveListing
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&listing); err != nil {
		return liveListing{}, fmt.Errorf("decode r/%s: %w", forum, err)
	}
	return listing, nil
}

type liveListing struct {
	Data struct {
		After    string      `json:"after"`
		Children []liveChild `json:"children"`
	} `json:"data"`
}

type liveChild struct {
	Kind string         `json:"kind"`
	Data map[string]any `json:"data"`
}
