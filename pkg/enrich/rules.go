package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"
)

// Rule locates one value in an HTML page: the first node matching Selector,
// its Attr (or text when Attr is empty), optionally narrowed by the first
// capture group of Pattern.
type Rule struct {
	Selector string `json:"selector" yaml:"selector"`
	Attr     string `json:"attr" yaml:"attr"`
	Pattern  string `json:"pattern" yaml:"pattern"`

	re *regexp.Regexp
}

// Rules groups the scrape rules used by the provider.
type Rules struct {
	Poster   Rule `json:"poster" yaml:"poster"`
	Rating   Rule `json:"rating" yaml:"rating"`
	Synopsis Rule `json:"synopsis" yaml:"synopsis"`
}

// DefaultRules matches the current IMDb markup.
func DefaultRules() Rules {
	rules := Rules{
		Poster: Rule{
			Selector: `meta[property="og:image"]`,
			Attr:     "content",
		},
		Rating: Rule{
			Selector: `[data-testid="rating-button__aggregate-rating__score"] span, [data-testid="hero-rating-bar__aggregate-rating__score"] span`,
			Pattern:  `(\d+(?:\.\d+)?)`,
		},
		Synopsis: Rule{
			Selector: `[data-testid="sub-section-synopsis"] .ipc-html-content-inner-div, [data-testid="sub-section-summaries"] .ipc-html-content-inner-div`,
		},
	}
	// Defaults are static and known to compile.
	_ = rules.compile()
	return rules
}

// LoadRules reads rules from a YAML or JSON file. Rules missing from the file
// keep their defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()

	path = strings.TrimSpace(path)
	if path == "" {
		return rules, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read scrape rules: %w", err)
	}

	var fromFile Rules
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(raw, &fromFile)
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(raw, &fromFile)
	default:
		return rules, errors.New("scrape rules format not recognized (expected YAML or JSON)")
	}
	if err != nil {
		return rules, fmt.Errorf("decode scrape rules: %w", err)
	}

	rules.Poster = mergeRule(rules.Poster, fromFile.Poster)
	rules.Rating = mergeRule(rules.Rating, fromFile.Rating)
	rules.Synopsis = mergeRule(rules.Synopsis, fromFile.Synopsis)

	if err := rules.compile(); err != nil {
		return DefaultRules(), err
	}
	return rules, nil
}

func mergeRule(def, override Rule) Rule {
	if strings.TrimSpace(override.Selector) == "" {
		return def
	}
	return Rule{
		Selector: strings.TrimSpace(override.Selector),
		Attr:     strings.TrimSpace(override.Attr),
		Pattern:  strings.TrimSpace(override.Pattern),
	}
}

func (r *Rules) compile() error {
	for name, rule := range map[string]*Rule{"poster": &r.Poster, "rating": &r.Rating, "synopsis": &r.Synopsis} {
		rule.re = nil
		if rule.Pattern == "" {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("%s pattern: %w", name, err)
		}
		rule.re = re
	}
	return nil
}

// Apply evaluates the rule against doc and returns "" when nothing matched.
func (r Rule) Apply(doc *goquery.Document) string {
	if doc == nil || r.Selector == "" {
		return ""
	}
	node := doc.Find(r.Selector).First()
	if node.Length() == 0 {
		return ""
	}

	var val string
	if r.Attr != "" {
		v, ok := node.Attr(r.Attr)
		if !ok {
			return ""
		}
		val = v
	} else {
		val = node.Text()
	}
	val = strings.Join(strings.Fields(val), " ")

	if r.re != nil {
		m := r.re.FindStringSubmatch(val)
		switch {
		case m == nil:
			return ""
		case len(m) > 1:
			val = m[1]
		default:
			val = m[0]
		}
	}
	return strings.TrimSpace(val)
}
