// Package naming picks an unused destination name in the document store.
//
// Resolution probes the store for the desired name and, while it is occupied,
// steps to the next name in the suffix order:
//
//	VENTA     -> VENTA_1
//	VENTA_1   -> VENTA_2
//	A_B_9     -> A_B_10
//
// The probe and the first write are not atomic. Two runs started at the same
// time against the same store can both pick the same name; runs are expected
// to be started one at a time.
package naming

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
)

// ErrExistenceCheck wraps any failure of the existence probe.
var ErrExistenceCheck = errors.New("destination existence check failed")

// ErrTooManyProbes is returned when a probe limit is set and exhausted.
var ErrTooManyProbes = errors.New("destination probe limit reached")

// Prober reports whether a destination already holds data.
type Prober interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, name string) (bool, error)

// Exists implements Prober.
func (f ProberFunc) Exists(ctx context.Context, name string) (bool, error) { return f(ctx, name) }

// Increment returns the name that follows name. The part after the last
// underscore is incremented when it is all ASCII digits; otherwise "_1" is
// appended. A name that does not end in digits always gains a new numeric
// segment, so repeated increments never cycle.
func Increment(name string) string {
	parts := strings.Split(name, "_")
	last := parts[len(parts)-1]
	if !isDigits(last) {
		return name + "_1"
	}
	n, _ := new(big.Int).SetString(last, 10)
	parts[len(parts)-1] = n.Add(n, big.NewInt(1)).String()
	return strings.Join(parts, "_")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Resolver finds the first unused name at or after a base name.
type Resolver struct {
	Prober Prober

	// MaxProbes bounds the number of existence checks. Zero means no bound.
	MaxProbes int
}

// Resolve returns base, or the first name reachable from base by Increment
// for which the prober reported "unused". Probe errors are returned wrapped
// in ErrExistenceCheck and are not retried.
func (r Resolver) Resolve(ctx context.Context, base string) (string, error) {
	if r.Prober == nil {
		return "", fmt.Errorf("naming: prober must not be nil")
	}
	name := base
	for probes := 1; ; probes++ {
		used, err := r.Prober.Exists(ctx, name)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrExistenceCheck, name, err)
		}
		if !used {
			return name, nil
		}
		if r.MaxProbes > 0 && probes >= r.MaxProbes {
			return "", fmt.Errorf("%w: %d names tried from %q", ErrTooManyProbes, probes, base)
		}
		log.Printf("naming: destination=%s in use, trying next", name)
		name = Increment(name)
	}
}

// Resolve is Resolver{Prober: p}.Resolve.
func Resolve(ctx context.Context, p Prober, base string) (string, error) {
	return Resolver{Prober: p}.Resolve(ctx, base)
}
