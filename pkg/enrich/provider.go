// Package enrich adds poster, rating and synopsis metadata to a reference.
package enrich

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adda-Baaj/cine-khobor/internal/domain"
	"github.com/Adda-Baaj/cine-khobor/internal/logger"
	"github.com/Adda-Baaj/cine-khobor/internal/metrics"
	"github.com/Adda-Baaj/cine-khobor/pkg/httpclient"
	"github.com/Adda-Baaj/cine-khobor/pkg/links"
	"github.com/PuerkitoBio/goquery"
)

const (
	maxHTMLBodyBytes  = 2 << 20 // 2 MiB
	maxImageBodyBytes = 10 << 20

	DefaultLookupURL = "https://www.imdb.com/title/{id}/"
)

// Options configures a Provider.
type Options struct {
	// PostersDir is the staging directory for downloaded posters.
	PostersDir string
	// LookupURL is the poster lookup page; "{id}" is replaced by the title id.
	LookupURL string
	Rules     Rules
	Log       logger.Logger
}

// Provider enriches qualifying references. Every step is best-effort.
type Provider struct {
	client    httpclient.Client
	dir       string
	lookupURL string
	rules     Rules
	headers   map[string]string
	log       logger.Logger

	maxImageBytes int
}

// NewProvider constructs a Provider that issues all requests through client.
func NewProvider(client httpclient.Client, opts Options) *Provider {
	lookup := strings.TrimSpace(opts.LookupURL)
	if lookup == "" {
		lookup = DefaultLookupURL
	}
	dir := strings.TrimSpace(opts.PostersDir)
	if dir == "" {
		dir = "posters"
	}
	log := logger.Ensure(opts.Log)
	rules := opts.Rules
	if rules.Poster.Selector == "" && rules.Rating.Selector == "" && rules.Synopsis.Selector == "" {
		rules = DefaultRules()
	} else if err := rules.compile(); err != nil {
		log.WarnObj("invalid scrape rules; using defaults", "enrich_rules_error", map[string]any{
			"error": err.Error(),
		})
		rules = DefaultRules()
	}

	return &Provider{
		client:    client,
		dir:       dir,
		lookupURL: lookup,
		rules:     rules,
		headers:   map[string]string{"Accept-Language": "en-US,en;q=0.8"},
		log:       log,

		maxImageBytes: maxImageBodyBytes,
	}
}

// Enrich never fails: a failed poster step leaves PosterPath empty and failed
// rating/synopsis steps yield domain.NotAvailable.
func (p *Provider) Enrich(ctx context.Context, ref domain.Reference) domain.EnrichmentRecord {
	rec := domain.EnrichmentRecord{
		Rating:      domain.NotAvailable,
		Description: domain.NotAvailable,
	}

	titleID, err := links.ParseTitleID(ref.URL)
	if err != nil {
		p.warn("poster", ref.URL, err)
	} else {
		rec.TitleID = titleID
		if path, err := p.fetchPoster(ctx, titleID); err != nil {
			p.warn("poster", ref.URL, err)
		} else {
			rec.PosterPath = path
		}
	}

	if v, err := p.scrape(ctx, subPage(ref.URL, "ratings"), p.rules.Rating); err != nil {
		p.warn("rating", ref.URL, err)
	} else {
		rec.Rating = v
	}

	if v, err := p.scrape(ctx, subPage(ref.URL, "plotsummary"), p.rules.Synopsis); err != nil {
		p.warn("synopsis", ref.URL, err)
	} else {
		rec.Description = v
	}

	return rec
}

func (p *Provider) warn(field, refURL string, err error) {
	metrics.EnrichmentFallbacks.WithLabelValues(field).Inc()
	p.log.WarnObj("enrichment step failed", "enrich_error", map[string]any{
		"stage": field,
		"url":   refURL,
		"error": err.Error(),
	})
}

// scrape fetches pageURL and applies rule. No match is a ParseError.
func (p *Provider) scrape(ctx context.Context, pageURL string, rule Rule) (string, error) {
	doc, err := p.fetchDocument(ctx, pageURL)
	if err != nil {
		return "", err
	}
	val := rule.Apply(doc)
	if val == "" {
		return "", fmt.Errorf("%w: selector %q matched nothing on %s", domain.ErrParse, rule.Selector, pageURL)
	}
	return val, nil
}

func (p *Provider) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := p.get(ctx, pageURL, maxHTMLBodyBytes)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", domain.ErrParse, err)
	}
	return doc, nil
}

func (p *Provider) get(ctx context.Context, target string, limit int) ([]byte, error) {
	resp, err := p.client.Get(ctx, target, p.headers)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", domain.ErrTransport, target, err)
	}
	if resp.StatusCode() != http.StatusOK {
		snippet := strings.TrimSpace(string(resp.Body()))
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, fmt.Errorf("%w: %s returned status %d body: %s", domain.ErrTransport, target, resp.StatusCode(), snippet)
	}
	body := resp.Body()
	if len(body) > limit {
		return nil, fmt.Errorf("%w: %s body is %d bytes, limit %d", domain.ErrParse, target, len(body), limit)
	}
	return body, nil
}

// fetchPoster resolves the poster URL from the lookup page and stores the image
// as <dir>/<titleID>.jpg.
func (p *Provider) fetchPoster(ctx context.Context, titleID string) (string, error) {
	lookup := strings.ReplaceAll(p.lookupURL, "{id}", url.PathEscape(titleID))

	doc, err := p.fetchDocument(ctx, lookup)
	if err != nil {
		return "", err
	}
	imageURL := resolveURL(p.rules.Poster.Apply(doc), lookup)
	if imageURL == "" {
		return "", fmt.Errorf("%w: no poster url on %s", domain.ErrParse, lookup)
	}

	img, err := p.get(ctx, imageURL, p.maxImageBytes)
	if err != nil {
		return "", err
	}
	if len(img) == 0 {
		return "", fmt.Errorf("%w: empty poster body from %s", domain.ErrParse, imageURL)
	}

	dest := filepath.Join(p.dir, titleID+".jpg")
	if err := writeFileAtomic(dest, img); err != nil {
		return "", err
	}
	return dest, nil
}

func writeFileAtomic(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create posters dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("create poster temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write poster: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close poster: %w", err)
	}
	if err := os.Rename(name, dest); err != nil {
		os.Remove(name)
		return fmt.Errorf("store poster: %w", err)
	}
	return nil
}

// subPage returns <ref without query>/<name>/.
func subPage(refURL, name string) string {
	candidate := strings.TrimSpace(refURL)
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return strings.TrimRight(candidate, "/") + "/" + name + "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/") + "/" + name + "/"
	return u.String()
}

func resolveURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}
