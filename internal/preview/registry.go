package preview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"infrascan/internal/metrics"
	"infrascan/internal/models"
)

// ErrEmpty is returned when a preview is requested for an empty file
var ErrEmpty = errors.New("empty image data")

// Preview is a display copy of one uploaded image. Data must be treated as read-only.
type Preview struct {
	Owner       string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

type entry struct {
	preview Preview
	timer   *time.Timer
}

// Options tunes a Registry
type Options struct {
	// TTL bounds how long a preview outlives its owner forgetting to revoke it
	TTL time.Duration
	// MaxDimension is the thumbnail bound in pixels
	MaxDimension uint
	// MaxPixels bounds width*height of images that get decoded
	MaxPixels int64
}

// NewOptions returns the defaults.
func NewOptions() Options {
	return Options{TTL: time.Hour, MaxDimension: 600, MaxPixels: 50_000_000}
}

// Registry hands out revocable preview handles for uploaded images.
// Each handle is a random id that stays valid until it is revoked, its
// owner's previews are revoked, or its TTL runs out.
type Registry struct {
	opts Options
	reg  *metrics.Registry

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options, reg *metrics.Registry) *Registry {
	if opts.TTL <= 0 {
		opts.TTL = NewOptions().TTL
	}
	return &Registry{opts: opts, reg: reg, entries: make(map[string]*entry)}
}

// Create stores a preview of file for owner and returns its id. Files that
// cannot be decoded are kept as-is under their own content type; files over
// the pixel limit are refused with ErrTooManyPixels.
func (r *Registry) Create(ctx context.Context, owner string, file models.ImageFile) (string, error) {
	if len(file.Data) == 0 {
		return "", ErrEmpty
	}

	p := Preview{Owner: owner, ContentType: "image/jpeg", CreatedAt: time.Now()}
	thumb, err := Thumbnail(file.Data, r.opts.MaxDimension, r.opts.MaxPixels)
	if errors.Is(err, ErrTooManyPixels) {
		return "", err
	}
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("file", file.Name).Msg("serving original bytes as preview")
		p.ContentType = file.ContentType
		if p.ContentType == "" {
			p.ContentType, _ = models.DetectImageType(file.Data)
		}
		p.Data = append([]byte(nil), file.Data...)
	} else {
		p.Data = thumb
	}

	id := uuid.NewString()
	e := &entry{preview: p}
	r.mu.Lock()
	r.entries[id] = e
	e.timer = time.AfterFunc(r.opts.TTL, func() {
		r.remove(context.Background(), id, "expired")
	})
	r.mu.Unlock()

	log.Ctx(ctx).Debug().Str("preview_id", id).Int("bytes", len(p.Data)).Msg("preview created")
	r.reg.Inc(ctx, "previews_created_total", nil, 1)
	return id, nil
}

// Get returns the preview stored under id and restarts its TTL, so a
// preview that is still being displayed does not expire.
func (r *Registry) Get(id string) (Preview, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Preview{}, false
	}
	e.timer.Reset(r.opts.TTL)
	return e.preview, true
}

// Revoke invalidates id. Unknown ids are ignored.
func (r *Registry) Revoke(ctx context.Context, id string) {
	r.remove(ctx, id, "revoked")
}

// RevokeOwner invalidates every preview of owner and reports how many there were.
func (r *Registry) RevokeOwner(ctx context.Context, owner string) int {
	r.mu.RLock()
	var ids []string
	for id, e := range r.entries {
		if e.preview.Owner == owner {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	n := 0
	for _, id := range ids {
		if r.remove(ctx, id, "revoked") {
			n++
		}
	}
	return n
}

// Len reports the number of live previews.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close drops every preview and stops their timers.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		e.timer.Stop()
		delete(r.entries, id)
	}
}

func (r *Registry) remove(ctx context.Context, id, reason string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	e.timer.Stop()
	log.Ctx(ctx).Debug().Str("preview_id", id).Str("reason", reason).Msg("preview released")
	r.reg.Inc(ctx, "previews_revoked_total", metrics.Labels{"reason": reason}, 1)
	return true
}
