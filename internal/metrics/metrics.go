package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Labels are the dimensions of a counter sample
type Labels map[string]string

// Registry keeps counters for the /metrics endpoints and mirrors every
// increment to an OpenTelemetry counter of the same name.
// A nil *Registry is valid and drops everything.
type Registry struct {
	meter metric.Meter

	mu          sync.RWMutex
	counters    map[string]*atomic.Int64 // series key -> value
	instruments map[string]metric.Int64Counter
}

// NewRegistry creates a registry whose OTel instruments come from the global
// meter provider under the given meter name.
func NewRegistry(meterName string) *Registry {
	return &Registry{
		meter:       otel.GetMeterProvider().Meter(meterName),
		counters:    make(map[string]*atomic.Int64),
		instruments: make(map[string]metric.Int64Counter),
	}
}

// seriesKey renders name{k=v,...} with labels sorted by key.
func seriesKey(name string, labels Labels) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%s", k, labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

// Inc adds n to the counter identified by name and labels.
func (r *Registry) Inc(ctx context.Context, name string, labels Labels, n int64) {
	if r == nil {
		return
	}
	r.series(seriesKey(name, labels)).Add(n)

	if inst := r.instrument(name); inst != nil {
		attrs := make([]attribute.KeyValue, 0, len(labels))
		for k, v := range labels {
			attrs = append(attrs, attribute.String(k, v))
		}
		inst.Add(ctx, n, metric.WithAttributes(attrs...))
	}
}

// Value returns the current value of one series.
func (r *Registry) Value(name string, labels Labels) int64 {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	c := r.counters[seriesKey(name, labels)]
	r.mu.RUnlock()
	if c == nil {
		return 0
	}
	return c.Load()
}

func (r *Registry) series(key string) *atomic.Int64 {
	r.mu.RLock()
	c := r.counters[key]
	r.mu.RUnlock()
	if c != nil {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c = r.counters[key]; c == nil {
		c = new(atomic.Int64)
		r.counters[key] = c
	}
	return c
}

func (r *Registry) instrument(name string) metric.Int64Counter {
	r.mu.RLock()
	inst := r.instruments[name]
	r.mu.RUnlock()
	if inst != nil {
		return inst
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if inst = r.instruments[name]; inst == nil {
		ctr, err := r.meter.Int64Counter(name)
		if err != nil {
			return nil
		}
		r.instruments[name] = ctr
		inst = ctr
	}
	return inst
}

// Snapshot returns every series with its current value.
func (r *Registry) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	if r == nil {
		return out
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k, v := range r.counters {
		out[k] = v.Load()
	}
	return out
}

// Lines returns "series value" lines sorted by series key.
func (r *Registry) Lines() []string {
	snap := r.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s %d", k, snap[k]))
	}
	return lines
}

// TextHandler serves the counters one series per line.
func (r *Registry) TextHandler(c echo.Context) error {
	var b strings.Builder
	for _, line := range r.Lines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return c.String(http.StatusOK, b.String())
}

// JSONHandler serves the counters as a JSON object.
func (r *Registry) JSONHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, r.Snapshot())
}
