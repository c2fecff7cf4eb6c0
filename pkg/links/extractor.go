// Package links finds and classifies the reference URL inside an item body.
package links

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/Adda-Baaj/cine-khobor/internal/domain"
	"mvdan.cc/xurls/v2"
)

const (
	DefaultTarget = "imdb.com"
	trailingPunct = ".,;:!?)]"
)

// DefaultDenyDomains lists link aggregators and redirectors whose URLs often
// embed a target link without being one.
var DefaultDenyDomains = []string{"l.facebook.com", "out.reddit.com", "t.co", "bit.ly"}

// Extractor classifies the first URL in a text block.
type Extractor struct {
	target string
	deny   []string
	finder *regexp.Regexp
}

// NewExtractor builds an Extractor accepting hosts that contain target and
// rejecting hosts on the deny list (exact match or subdomain).
func NewExtractor(target string, deny []string) *Extractor {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		target = DefaultTarget
	}

	cleaned := make([]string, 0, len(deny))
	for _, d := range deny {
		d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
		d = strings.TrimPrefix(d, "www.")
		if d != "" {
			cleaned = append(cleaned, d)
		}
	}

	return &Extractor{
		target: target,
		deny:   cleaned,
		finder: xurls.Relaxed(),
	}
}

// Classify inspects only the first URL in text. Email addresses are not URLs
// and are skipped. The deny list is checked before the target marker, so a
// URL matching both is rejected.
func (e *Extractor) Classify(text string) domain.Reference {
	raw := e.firstURL(text)
	if raw == "" {
		return domain.Reference{Class: domain.RefNone}
	}

	ref := domain.Reference{URL: raw, Class: domain.RefNone}
	host, err := hostOf(raw)
	if err != nil || host == "" {
		return ref
	}
	ref.Host = host

	switch {
	case e.denied(host):
		ref.Class = domain.RefRejected
	case strings.Contains(host, e.target):
		ref.Class = domain.RefQualifying
	}
	return ref
}

func (e *Extractor) firstURL(text string) string {
	for _, m := range e.finder.FindAllString(text, -1) {
		if isEmailLike(m) {
			continue
		}
		if raw := strings.TrimRight(m, trailingPunct); raw != "" {
			return raw
		}
	}
	return ""
}

// isEmailLike reports matches such as "press@imdb.com" or "mailto:a@b.com".
func isEmailLike(m string) bool {
	lower := strings.ToLower(m)
	if strings.HasPrefix(lower, "mailto:") {
		return true
	}
	if strings.Contains(m, "://") {
		return false
	}
	authority, _, _ := strings.Cut(m, "/")
	return strings.Contains(authority, "@")
}

// Extract returns the reference and whether it qualifies for enrichment.
func (e *Extractor) Extract(text string) (domain.Reference, bool) {
	ref := e.Classify(text)
	return ref, ref.Qualifying()
}

func (e *Extractor) denied(host string) bool {
	for _, d := range e.deny {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func hostOf(raw string) (string, error) {
	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www."), nil
}

var titleIDPattern = regexp.MustCompile(`^tt\d+$`)

// ParseTitleID returns the per-title identifier from a URL shaped like
// .../title/<id>/..., where <id> is "tt" followed by digits.
func ParseTitleID(rawURL string) (string, error) {
	candidate := strings.TrimSpace(rawURL)
	if candidate == "" {
		return "", fmt.Errorf("%w: empty reference url", domain.ErrExtraction)
	}
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: parse %q: %v", domain.ErrExtraction, rawURL, err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] != "title" {
			continue
		}
		if id := segments[i+1]; titleIDPattern.MatchString(id) {
			return id, nil
		}
		return "", fmt.Errorf("%w: malformed title id %q in %q", domain.ErrExtraction, segments[i+1], rawURL)
	}
	return "", fmt.Errorf("%w: no /title/<id> segment in %q", domain.ErrExtraction, rawURL)
}
