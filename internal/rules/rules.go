package rules

import (
	"fmt"
	"net/url"
	"strings"

	"PageWatcher/internal/config"
)

// Mirror maps a page URL to alternate feed endpoints, best first.
type Mirror interface {
	Name() string
	Resolve(u *url.URL) []string
}

// Registry keeps a mapping from mirror names to their implementations.
type Registry struct {
	mirrors map[string]Mirror
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{mirrors: map[string]Mirror{}}
}

// NewDefaultRegistry registers every built-in mirror.
func NewDefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(RedditMirror{})
	reg.Register(YouTubeMirror{})
	reg.Register(GitHubMirror{})
	reg.Register(ArxivMirror{})
	return reg
}

// Register adds or replaces a mirror implementation.
func (r *Registry) Register(mirror Mirror) {
	if r.mirrors == nil {
		r.mirrors = map[string]Mirror{}
	}
	r.mirrors[mirror.Name()] = mirror
}

// Resolve returns a mirror by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Mirror, error) {
	if mirror, ok := r.mirrors[name]; ok {
		return mirror, nil
	}
	return nil, fmt.Errorf("mirror %s is not registered", name)
}

// DomainRule holds per-domain defaults. Mirror may be nil.
type DomainRule struct {
	Suffix   string
	Selector string
	Mirror   Mirror
}

// Matches reports whether host equals the suffix or is a subdomain of it.
func (d DomainRule) Matches(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	suffix := strings.ToLower(strings.TrimPrefix(d.Suffix, "."))
	if suffix == "" {
		return false
	}
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

// Table is an ordered domain-suffix table; the first match wins.
type Table struct {
	rules []DomainRule
}

// NewTable keeps rules in the given order.
func NewTable(rules ...DomainRule) *Table {
	return &Table{rules: rules}
}

// BuildTable resolves configured domains against the mirror registry.
func BuildTable(reg *Registry, domains []config.DomainConfig) (*Table, error) {
	rules := make([]DomainRule, 0, len(domains))
	for _, d := range domains {
		rule := DomainRule{Suffix: d.Suffix, Selector: d.Selector}
		if d.Mirror != "" {
			mirror, err := reg.Resolve(d.Mirror)
			if err != nil {
				return nil, fmt.Errorf("domain %s: %w", d.Suffix, err)
			}
			rule.Mirror = mirror
		}
		rules = append(rules, rule)
	}
	return NewTable(rules...), nil
}

// Lookup returns the first rule matching the URL host.
func (t *Table) Lookup(rawURL string) (DomainRule, bool) {
	if t == nil {
		return DomainRule{}, false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return DomainRule{}, false
	}
	for _, rule := range t.rules {
		if rule.Matches(u.Hostname()) {
			return rule, true
		}
	}
	return DomainRule{}, false
}

// Mirrors returns alternate feed URLs for rawURL in priority order.
func (t *Table) Mirrors(rawURL string) []string {
	rule, ok := t.Lookup(rawURL)
	if !ok || rule.Mirror == nil {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return rule.Mirror.Resolve(u)
}

// DefaultSelector returns the domain-default extraction rule, if any.
func (t *Table) DefaultSelector(rawURL string) string {
	rule, ok := t.Lookup(rawURL)
	if !ok {
		return ""
	}
	return rule.Selector
}
