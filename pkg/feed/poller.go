// Package feed retrieves the item listing from the watched JSON feed.
package feed

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/Adda-Baaj/cine-khobor/internal/domain"
	"github.com/Adda-Baaj/cine-khobor/pkg/httpclient"
	json "github.com/goccy/go-json"
)

// Poller fetches the current item list from a single feed endpoint.
type Poller struct {
	url       string
	userAgent string
	client    httpclient.Client
}

// NewPoller builds a poller for url. The User-Agent is sent with every request
// because some sources reject default agents.
func NewPoller(url, userAgent string, client httpclient.Client) *Poller {
	return &Poller{
		url:       strings.TrimSpace(url),
		userAgent: strings.TrimSpace(userAgent),
		client:    client,
	}
}

// listing mirrors {data:{children:[{data:{...}}]}}.
type listing struct {
	Data struct {
		Children []struct {
			Data post `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type post struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Created  float64 `json:"created"`
	SelfText string  `json:"selftext"`
}

// Fetch performs one GET against the feed and returns its items in feed order.
// Network failures and non-200 statuses wrap domain.ErrTransport; an
// undecodable body wraps domain.ErrParse.
func (p *Poller) Fetch(ctx context.Context) ([]domain.Item, error) {
	headers := map[string]string{"Accept": "application/json"}
	if p.userAgent != "" {
		headers["User-Agent"] = p.userAgent
	}

	resp, err := p.client.Get(ctx, p.url, headers)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch feed: %w", domain.ErrTransport, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: feed returned status %d body: %s", domain.ErrTransport, resp.StatusCode(), responseSnippet(body))
	}

	return parseListing(body)
}

func parseListing(body []byte) ([]domain.Item, error) {
	var doc listing
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode feed: %v", domain.ErrParse, err)
	}

	items := make([]domain.Item, 0, len(doc.Data.Children))
	for _, child := range doc.Data.Children {
		id := strings.TrimSpace(child.Data.ID)
		if id == "" {
			continue
		}
		items = append(items, domain.Item{
			ID:        id,
			Title:     strings.TrimSpace(child.Data.Title),
			CreatedAt: unixSeconds(child.Data.Created),
			Body:      child.Data.SelfText,
		})
	}
	return items, nil
}

func unixSeconds(v float64) time.Time {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
