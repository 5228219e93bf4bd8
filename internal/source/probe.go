package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	probeBaseURL = "https://www.reddit.com"
	probeTimeout = 15 * time.Second
)

// ProbeResult summarizes a forum's public feed.
type ProbeResult struct {
	Forum   string
	Entries int
	Newest  time.Time // zero when the feed has no dated entries
}

// Probe checks that a forum exists and is publishing by reading its public
// Atom feed. It needs no credentials and touches neither retrieval source.
type Probe struct {
	baseURL string
	client  *http.Client
}

// NewProbe creates a feed probe. An empty baseURL uses the public forum host.
func NewProbe(baseURL string, agent string) *Probe {
	if baseURL == "" {
		baseURL = probeBaseURL
	}
	if agent == "" {
		agent = bulkUserAgent
	}
	return &Probe{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   probeTimeout,
			Transport: &userAgentTransport{base: http.DefaultTransport, agent: agent},
		},
	}
}

// Check fetches the newest-first feed of forum.
func (p *Probe) Check(ctx context.Context, forum string) (ProbeResult, error) {
	fp := gofeed.NewParser()
	fp.Client = p.client

	feedURL := fmt.Sprintf("%s/r/%s/new/.rss", p.baseURL, forum)
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("probe r/%s: %w", forum, err)
	}

	res := ProbeResult{Forum: forum, Entries: len(feed.Items)}
	for _, item := range feed.Items {
		ts := itemPublishedTime(item)
		if ts.After(res.Newest) {
			res.Newest = ts
		}
	}
	return res, nil
}

func itemPublishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}
