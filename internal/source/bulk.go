package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	bulkSourceName      = "arcticshift"
	bulkBaseURL         = "https://arctic-shift.photon-reddit.com"
	bulkTimeout         = 30 * time.Second
	bulkUserAgent       = "autodd/1.0"
	bulkDefaultPageSize = 100
	bulkDefaultRetries  = 3
	bulkMaxLimit        = 1000 // largest page the index serves
)

// BulkConfig configures one historical index client bound to one egress path.
type BulkConfig struct {
	BaseURL    string        // defaults to the public ArcticShift endpoint
	Proxy      string        // proxy URL; empty means a direct connection
	PageSize   int           // records per request
	MaxRetries int           // attempts per page before giving up
	Timeout    time.Duration // per-request timeout
}

// BulkSource queries a Pushshift-style historical index. It is cheap for long
// windows but lags behind the live forum by several minutes.
type BulkSource struct {
	client     *http.Client
	baseURL    string
	proxy      string
	pageSize   int
	maxRetries int
}

// NewBulk creates a historical index adapter that sends every request through cfg.Proxy.
func NewBulk(cfg BulkConfig) (*BulkSource, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = bulkBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = bulkDefaultPageSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = bulkDefaultRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = bulkTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil || proxyURL.Host == "" {
			return nil, fmt.Errorf("bulk: invalid proxy %q", redactProxy(cfg.Proxy))
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &BulkSource{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &userAgentTransport{base: transport, agent: bulkUserAgent},
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		proxy:      cfg.Proxy,
		pageSize:   cfg.PageSize,
		maxRetries: cfg.MaxRetries,
	}, nil
}

func (b *BulkSource) Name() string {
	return bulkSourceName
}

// Egress returns the proxy this adapter is bound to, with credentials masked.
func (b *BulkSource) Egress() string {
	if b.proxy == "" {
		return "direct"
	}
	return redactProxy(b.proxy)
}

// FetchWindow pages backwards from w.End until the index runs dry or w.Start is reached.
func (b *BulkSource) FetchWindow(ctx context.Context, forum string, w Window, fields []string) ([]Post, error) {
	if w.Empty() {
		return nil, nil
	}
	fields = WithCoreFields(fields)

	var (
		posts  []Post
		seen   = make(map[string]bool)
		before = w.End
	)
	collect := func(page []map[string]any) (newest, oldest int64) {
		newest, oldest = w.Start-1, before
		for _, rec := range page {
			p, err := postFromRecord(rec, fields)
			if err != nil || p.CreatedAt < w.Start || p.CreatedAt >= w.End {
				continue
			}
			newest = max(newest, p.CreatedAt)
			oldest = min(oldest, p.CreatedAt)
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			posts = append(posts, p)
		}
		return newest, oldest
	}

	for before > w.Start {
		page, err := withRetry(ctx, b.maxRetries, func() ([]map[string]any, error) {
			return b.fetchPage(ctx, forum, w.Start, before, b.pageSize, fields)
		})
		if err != nil {
			return nil, &UnavailableError{Source: bulkSourceName, Forum: forum, Window: w, Err: err}
		}

		newest, oldest := collect(page)
		if len(page) < b.pageSize || newest < w.Start {
			break
		}

		if newest > oldest {
			// the oldest second may continue on the next page; seen drops the repeats
			before = oldest + 1
			continue
		}

		// A full page inside one second cannot be paged by time. Read the
		// whole second with a growing limit instead.
		if err := b.fetchSecond(ctx, forum, oldest, fields, collect); err != nil {
			return nil, &UnavailableError{Source: bulkSourceName, Forum: forum, Window: w, Err: err}
		}
		before = oldest
	}

	return posts, nil
}

// fetchSecond reads every post created at second sec.
func (b *BulkSource) fetchSecond(ctx context.Context, forum string, sec int64, fields []string, collect func([]map[string]any) (int64, int64)) error {
	for limit := b.pageSize * 2; ; limit *= 2 {
		limit = min(limit, bulkMaxLimit)
		page, err := withRetry(ctx, b.maxRetries, func() ([]map[string]any, error) {
			return b.fetchPage(ctx, forum, sec, sec+1, limit, fields)
		})
		if err != nil {
			return err
		}
		collect(page)
		if len(page) < limit {
			return nil
		}
		if limit == bulkMaxLimit {
			return fmt.Errorf("r/%s: more than %d posts at %d, cannot page within one second", forum, bulkMaxLimit, sec)
		}
	}
}

func (b *BulkSource) fetchPage(ctx context.Context, forum string, after, before int64, limit int, fields []string) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("subreddit", forum)
	q.Set("after", strconv.FormatInt(after-1, 10))
	q.Set("before", strconv.FormatInt(before, 10))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort", "desc")
	q.Set("fields", strings.Join(fields, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/posts/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch r/%s: %w", forum, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("r/%s: %w", forum, &statusError{Code: resp.StatusCode})
	}

	var body bulkResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode r/%s: %w", forum, err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("r/%s: %w", forum, errors.New(body.Error))
	}
	return body.Data, nil
}

type bulkResponse struct {
	Data  []map[string]any `json:"data"`
	Error string           `json:"error"`
}

// userAgentTransport injects a User-Agent header into every request.
type userAgentTransport struct {
	base  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}

// redactProxy masks the password of a proxy URL for display.
func redactProxy(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
