// Package extractor reduces fetched pages to the text used for change detection.
package extractor

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"PageWatcher/internal/config"
	"PageWatcher/internal/domain"
	"PageWatcher/internal/ports"
)

const (
	defaultMaxLength = 5000
	nonContent       = "script, style, noscript, template"
)

// DefaultSelectors resolves a domain-default selector for a page.
type DefaultSelectors interface {
	DefaultSelector(rawURL string) string
}

// Extractor implements ports.Extractor with goquery.
type Extractor struct {
	defaults  DefaultSelectors
	maxLength int
}

var _ ports.Extractor = (*Extractor)(nil)

// New builds an extractor; defaults may be nil.
func New(defaults DefaultSelectors, cfg config.ExtractorConfig) *Extractor {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = defaultMaxLength
	}
	return &Extractor{defaults: defaults, maxLength: cfg.MaxLength}
}

// Extract returns normalized, truncated comparison text. Feed results use the
// latest entry's link and title; pages go through the selector precedence
// resource rule, domain default, whole document.
func (e *Extractor) Extract(rawURL string, result domain.FetchResult, rule string) (string, error) {
	if result.SourceKind == domain.SourceMirrorFeed && result.Entry != nil {
		return e.finish(result.Entry.Link + "\n" + result.Entry.Title), nil
	}

	selector := strings.TrimSpace(rule)
	if selector == "" && e.defaults != nil {
		selector = e.defaults.DefaultSelector(rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.Raw))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	doc.Find(nonContent).Remove()

	if selector == "" {
		return e.finish(documentText(doc)), nil
	}
	if err := ValidateSelector(selector); err != nil {
		return "", err
	}
	return e.finish(selectionText(doc.Find(selector))), nil
}

// ValidateSelector rejects selectors that cannot be compiled.
func ValidateSelector(selector string) error {
	if _, err := cascadia.ParseGroup(selector); err != nil {
		return fmt.Errorf("%w: selector %q: %v", domain.ErrInvalidResource, selector, err)
	}
	return nil
}

func documentText(doc *goquery.Document) string {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return doc.Text()
	}
	return body.Text()
}

// selectionText concatenates the text of every match followed by the link
// targets found inside the matches.
func selectionText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Each(func(_ int, s *goquery.Selection) {
		b.WriteString(s.Text())
		b.WriteByte(' ')
	})

	links := sel.Find("a[href]").AddSelection(sel.Filter("a[href]"))
	links.Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			b.WriteString(strings.TrimSpace(href))
			b.WriteByte(' ')
		}
	})
	return b.String()
}

func (e *Extractor) finish(text string) string {
	return truncate(collapseSpace(text), e.maxLength)
}

func collapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}
