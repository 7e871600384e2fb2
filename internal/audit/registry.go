package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory opens an Appender for cfg.
type Factory func(ctx context.Context, cfg Config) (Appender, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. It panics on an empty kind,
// a nil factory or a duplicate registration.
func Register(kind string, f Factory) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" || f == nil {
		panic("audit: Register with empty kind or nil factory")
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := factories[kind]; dup {
		panic("audit: Register called twice for kind " + kind)
	}
	factories[kind] = f
}

// New opens the Appender registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Appender, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	regMu.RLock()
	f, ok := factories[kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("audit: unsupported kind %q (registered: %s)", cfg.Kind, strings.Join(ListKinds(), ", "))
	}
	cfg.Kind = kind
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
