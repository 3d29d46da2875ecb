// Package render turns notification message keys into localized copy.
package render

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Message is one localized title/message pair.
type Message struct {
	Title   string `yaml:"title"`
	Message string `yaml:"message"`
}

// Catalog renders messages for the closest supported locale.
type Catalog struct {
	locales  []string
	messages map[string]map[string]Message
	matcher  language.Matcher
}

// Default loads the embedded catalog with fallback as the preferred locale.
func Default(fallback string) (*Catalog, error) {
	return Load(defaultCatalog, fallback)
}

// Load parses a YAML catalog of locale -> key -> message. fallback must be
// one of its locales; it is used when nothing closer matches.
func Load(data []byte, fallback string) (*Catalog, error) {
	var raw map[string]map[string]Message
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("render: decode catalog: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("render: catalog is empty")
	}
	fallback = strings.ToLower(strings.TrimSpace(fallback))
	if _, ok := raw[fallback]; !ok {
		return nil, fmt.Errorf("render: fallback locale %q not in catalog", fallback)
	}

	locales := make([]string, 0, len(raw))
	for l := range raw {
		if l != fallback {
			locales = append(locales, l)
		}
	}
	sort.Strings(locales)
	// The matcher falls back to the first supported tag.
	locales = append([]string{fallback}, locales...)

	tags := make([]language.Tag, 0, len(locales))
	for _, l := range locales {
		tag, err := language.Parse(l)
		if err != nil {
			return nil, fmt.Errorf("render: locale %q: %w", l, err)
		}
		tags = append(tags, tag)
	}
	return &Catalog{
		locales:  locales,
		messages: raw,
		matcher:  language.NewMatcher(tags),
	}, nil
}

// Locales lists supported locales, fallback first.
func (c *Catalog) Locales() []string {
	return append([]string(nil), c.locales...)
}

// Match returns the supported locale closest to locale.
func (c *Catalog) Match(locale string) string {
	_, idx := language.MatchStrings(c.matcher, locale)
	if idx < 0 || idx >= len(c.locales) {
		return c.locales[0]
	}
	return c.locales[idx]
}

// Render returns the title and message for key in the locale closest to
// locale. Missing translations fall back to the fallback locale; unknown
// keys render the key itself as the title.
func (c *Catalog) Render(locale, key string, params map[string]string) (string, string) {
	msg, ok := c.messages[c.Match(locale)][key]
	if !ok {
		msg, ok = c.messages[c.locales[0]][key]
	}
	if !ok {
		return key, ""
	}
	r := replacer(params)
	return r.Replace(msg.Title), r.Replace(msg.Message)
}

func replacer(params map[string]string) *strings.Replacer {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", params[k])
	}
	return strings.NewReplacer(pairs...)
}
