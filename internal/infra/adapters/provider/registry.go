package provider

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"telegram-virtual-number/internal/config"
	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/ports/adapter"
)

var _ adapter.ProviderRegistry = (*Registry)(nil)

// Registry resolves vendor keys to adapters in configuration order.
type Registry struct {
	order     []string
	display   map[string]string
	providers map[string]adapter.Provider
}

// NewRegistry builds an adapter for every enabled key. Each adapter owns one
// pooled http.Client for its lifetime.
func NewRegistry(cfg config.ProvidersConfig, logger *zerolog.Logger) (*Registry, error) {
	display := ParseDisplay(cfg.Display)
	var ps []adapter.Provider
	for _, key := range ParseEnabled(cfg.Enabled) {
		name := displayOr(display, key)
		switch key {
		case KeyNumberland:
			ps = append(ps, NewNumberland(cfg.Numberland, name, nil, logger))
		case KeyOnlineSim:
			ps = append(ps, NewOnlineSim(cfg.OnlineSim, name, nil, logger))
		default:
			return nil, fmt.Errorf("%w: %q in providers.enabled", domain.ErrUnknownProvider, key)
		}
	}
	if len(ps) == 0 {
		return nil, fmt.Errorf("%w: no provider enabled", domain.ErrConfiguration)
	}
	return NewStaticRegistry(display, ps...), nil
}

// NewStaticRegistry wraps already built adapters; the argument order is the
// enabled order.
func NewStaticRegistry(display map[string]string, ps ...adapter.Provider) *Registry {
	r := &Registry{display: map[string]string{}, providers: map[string]adapter.Provider{}}
	for k, v := range display {
		r.display[k] = v
	}
	for _, p := range ps {
		key := normKey(p.Key())
		if _, dup := r.providers[key]; dup {
			continue
		}
		r.order = append(r.order, key)
		r.providers[key] = p
	}
	return r
}

func (r *Registry) Get(key string) (adapter.Provider, error) {
	p, ok := r.providers[normKey(key)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, key)
	}
	return p, nil
}

func (r *Registry) Enabled() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) DisplayName(key string) string {
	return displayOr(r.display, normKey(key))
}

// Default is the first enabled key.
func (r *Registry) Default() string {
	if len(r.order) == 0 {
		return ""
	}
	return r.order[0]
}

// ParseEnabled splits "numberland, onlinesim" keeping order and dropping
// blanks and duplicates.
func ParseEnabled(raw string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		k := normKey(part)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// ParseDisplay parses "key:Name|key2:Name2". A part without a colon maps the
// key to itself.
func ParseDisplay(raw string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(raw, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, found := strings.Cut(part, ":")
		k = normKey(k)
		v = strings.TrimSpace(v)
		if k == "" {
			continue
		}
		if !found || v == "" {
			v = k
		}
		out[k] = v
	}
	return out
}

func displayOr(m map[string]string, key string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return key
}

func normKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
