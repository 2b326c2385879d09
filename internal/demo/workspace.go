package demo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"infrascan/internal/models"
)

// FailureNotice is the only failure text a visitor ever sees.
const FailureNotice = "An error occurred during analysis. Make sure the analysis server is running."

var (
	ErrUnknownSlot = errors.New("unknown image slot")
	ErrEmptyFile   = errors.New("empty file")
	ErrNotAnImage  = errors.New("file is not an image")
	ErrClosed      = errors.New("workspace closed")

	ErrImageTooLarge = errors.New("image dimensions too large")
)

// DefaultMaxPixels bounds width*height of a selected image unless
// WithMaxPixels overrides it.
const DefaultMaxPixels int64 = 50_000_000

// Analyzer performs one analysis request for a pair of images.
type Analyzer interface {
	Analyze(ctx context.Context, past, current models.ImageFile) (models.AnalysisResult, error)
}

// PreviewStore creates and revokes preview references owned by a workspace.
type PreviewStore interface {
	Create(ctx context.Context, owner string, file models.ImageFile) (string, error)
	Revoke(ctx context.Context, id string)
}

// ImageSlot is a selected file plus its preview reference.
type ImageSlot struct {
	File      models.ImageFile
	PreviewID string
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithChangeHook registers fn to be called with the snapshot taken by every
// state change. fn runs outside the workspace lock, so calls from concurrent
// changes may arrive out of order.
func WithChangeHook(fn func(Snapshot)) Option {
	return func(w *Workspace) {
		w.onChange = fn
	}
}

// WithMaxPixels sets the largest width*height SelectImage accepts. Zero or
// less disables the check.
func WithMaxPixels(n int64) Option {
	return func(w *Workspace) {
		w.maxPixels = n
	}
}

// Workspace is the state container for one visitor's demo panel.
type Workspace struct {
	id        string
	analyzer  Analyzer
	previews  PreviewStore
	onChange  func(Snapshot)
	maxPixels int64

	mu          sync.Mutex
	slots       map[models.Slot]*ImageSlot
	state       RequestState
	result      *models.AnalysisResult
	notice      string
	showUploads bool
	generation  uint64
	cancel      context.CancelFunc
	closed      bool
}

// NewWorkspace creates an empty workspace owned by id.
func NewWorkspace(id string, analyzer Analyzer, previews PreviewStore, opts ...Option) *Workspace {
	w := &Workspace{
		id:        id,
		analyzer:  analyzer,
		previews:  previews,
		maxPixels: DefaultMaxPixels,
		slots:     make(map[models.Slot]*ImageSlot, len(models.Slots)),
		state:     Idle,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the owning session ID.
func (w *Workspace) ID() string {
	return w.id
}

// SelectImage stores file in slot, replacing any previous file. The previous
// preview is revoked before the new one is created; the other slot is left
// alone. Selecting while a request is in flight cancels that request and
// returns the workspace to Idle. Images whose header declares more than the
// pixel limit are rejected before any decoding and leave the slot untouched.
func (w *Workspace) SelectImage(ctx context.Context, slot models.Slot, file models.ImageFile) error {
	if _, ok := models.ParseSlot(string(slot)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	if len(file.Data) == 0 {
		return ErrEmptyFile
	}
	ct, ok := models.DetectImageType(file.Data)
	if !ok {
		return fmt.Errorf("%w: detected %s", ErrNotAnImage, ct)
	}
	file.ContentType = ct
	if w.maxPixels > 0 {
		// Formats the header reader does not know fall through to the raw preview.
		if wd, ht, err := file.Dimensions(); err == nil && int64(wd)*int64(ht) > w.maxPixels {
			return fmt.Errorf("%w: %dx%d", ErrImageTooLarge, wd, ht)
		}
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	changed := w.releaseSlotLocked(ctx, slot) || w.showUploads
	w.showUploads = false
	snap := w.snapshotLocked()
	w.mu.Unlock()
	if changed {
		w.notify(snap)
	}

	// Thumbnailing can be slow; it runs without the lock.
	id, err := w.previews.Create(ctx, w.id, file)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		if err == nil {
			w.previews.Revoke(ctx, id)
		}
		return ErrClosed
	}
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create preview: %w", err)
	}
	// A concurrent selection may have filled the slot in the meantime.
	w.releaseSlotLocked(ctx, slot)
	w.slots[slot] = &ImageSlot{File: file, PreviewID: id}
	w.showUploads = false
	snap = w.snapshotLocked()
	w.mu.Unlock()

	log.Ctx(ctx).Debug().
		Str("workspace", w.id).
		Str("slot", string(slot)).
		Str("file", file.Name).
		Int64("bytes", file.Size()).
		Msg("image selected")

	w.notify(snap)
	return nil
}

// releaseSlotLocked empties slot, revoking its preview and cancelling any
// in-flight request. It reports whether anything changed. Callers hold w.mu.
func (w *Workspace) releaseSlotLocked(ctx context.Context, slot models.Slot) bool {
	old, held := w.slots[slot]
	if held {
		if old.PreviewID != "" {
			w.previews.Revoke(ctx, old.PreviewID)
		}
		delete(w.slots, slot)
	}
	inFlight := w.state == InFlight
	if inFlight {
		w.invalidateLocked(ctx)
	}
	return held || inFlight
}

// invalidateLocked cancels the in-flight request. Callers hold w.mu.
func (w *Workspace) invalidateLocked(ctx context.Context) {
	next, err := Transition(w.state, EventInvalidate)
	if err != nil {
		return
	}
	w.state = next
	w.generation++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	log.Ctx(ctx).Info().Str("workspace", w.id).Msg("in-flight analysis invalidated")
}

// CanAnalyze reports whether both slots hold a file.
func (w *Workspace) CanAnalyze() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canAnalyzeLocked()
}

func (w *Workspace) canAnalyzeLocked() bool {
	for _, s := range models.Slots {
		if _, ok := w.slots[s]; !ok {
			return false
		}
	}
	return true
}

// Start begins an analysis in the background. It is a no-op returning false
// when a slot is empty, a request is already in flight, or the workspace is
// closed. The returned channel is closed once the request has settled.
//
// The request is detached from ctx's cancellation so it outlives the HTTP
// request that started it; it is cancelled by re-selection or Close instead.
func (w *Workspace) Start(ctx context.Context) (<-chan struct{}, bool) {
	w.mu.Lock()
	if w.closed || !w.canAnalyzeLocked() {
		w.mu.Unlock()
		return nil, false
	}
	next, err := Transition(w.state, EventStart)
	if err != nil {
		w.mu.Unlock()
		return nil, false
	}
	w.state = next
	w.result = nil
	w.notice = ""
	w.showUploads = false
	w.generation++
	gen := w.generation
	past := w.slots[models.SlotPast].File
	current := w.slots[models.SlotCurrent].File

	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel
	snap := w.snapshotLocked()
	w.mu.Unlock()
	done := make(chan struct{})

	log.Ctx(ctx).Info().
		Str("workspace", w.id).
		Uint64("generation", gen).
		Str("past", past.Name).
		Str("current", current.Name).
		Msg("analysis started")
	w.notify(snap)

	go func() {
		defer close(done)
		defer cancel()
		res, err := w.analyzer.Analyze(reqCtx, past, current)
		w.settle(reqCtx, gen, res, err)
	}()
	return done, true
}

func (w *Workspace) settle(ctx context.Context, gen uint64, res models.AnalysisResult, err error) {
	logger := log.Ctx(ctx).With().Str("workspace", w.id).Uint64("generation", gen).Logger()

	w.mu.Lock()
	if w.closed || gen != w.generation || w.state != InFlight {
		w.mu.Unlock()
		logger.Debug().Msg("stale analysis response dropped")
		return
	}
	w.cancel = nil
	if err != nil {
		w.state, _ = Transition(w.state, EventFail)
		w.notice = FailureNotice
		snap := w.snapshotLocked()
		w.mu.Unlock()
		logger.Warn().Err(err).Msg("analysis failed")
		w.notify(snap)
		return
	}
	w.state, _ = Transition(w.state, EventSucceed)
	w.result = &res
	w.showUploads = true
	snap := w.snapshotLocked()
	w.mu.Unlock()

	logger.Info().
		Float64("ssim", res.TextInfo.SSIM).
		Float64("difference", res.TextInfo.Difference).
		Msg("analysis succeeded")
	w.notify(snap)
}

// Close tears the workspace down: any in-flight request is cancelled and its
// response ignored, and both previews are revoked. Close is idempotent.
func (w *Workspace) Close(ctx context.Context) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.generation++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if w.state == InFlight {
		w.state, _ = Transition(w.state, EventInvalidate)
	}
	for slot, s := range w.slots {
		if s.PreviewID != "" {
			w.previews.Revoke(ctx, s.PreviewID)
		}
		delete(w.slots, slot)
	}
	w.mu.Unlock()
	log.Ctx(ctx).Debug().Str("workspace", w.id).Msg("workspace closed")
}

// Closed reports whether Close has been called.
func (w *Workspace) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// SlotView is the rendered form of one slot.
type SlotView struct {
	Slot      models.Slot `json:"slot"`
	Label     string      `json:"label"`
	FileName  string      `json:"fileName,omitempty"`
	PreviewID string      `json:"previewId,omitempty"`
	Populated bool        `json:"populated"`
}

// Snapshot is an immutable copy of the workspace for rendering.
type Snapshot struct {
	State       RequestState           `json:"state"`
	Slots       []SlotView             `json:"slots"`
	Result      *models.AnalysisResult `json:"result,omitempty"`
	Notice      string                 `json:"notice,omitempty"`
	ShowUploads bool                   `json:"showUploads"`
	CanAnalyze  bool                   `json:"canAnalyze"`
	Generation  uint64                 `json:"generation"`
}

// Slot returns the view of slot s.
func (s Snapshot) Slot(slot models.Slot) SlotView {
	for _, v := range s.Slots {
		if v.Slot == slot {
			return v
		}
	}
	return SlotView{Slot: slot, Label: slot.Label()}
}

// InFlight reports whether a request is pending.
func (s Snapshot) InFlight() bool {
	return s.State == InFlight
}

// Snapshot returns the current state. No result is exposed while in flight.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workspace) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:       w.state,
		Slots:       make([]SlotView, 0, len(models.Slots)),
		Notice:      w.notice,
		ShowUploads: w.showUploads,
		CanAnalyze:  !w.closed && w.canAnalyzeLocked() && w.state != InFlight,
		Generation:  w.generation,
	}
	for _, slot := range models.Slots {
		v := SlotView{Slot: slot, Label: slot.Label()}
		if s, ok := w.slots[slot]; ok {
			v.FileName = s.File.Name
			v.PreviewID = s.PreviewID
			v.Populated = true
		}
		snap.Slots = append(snap.Slots, v)
	}
	if w.result != nil && w.state != InFlight {
		r := *w.result
		snap.Result = &r
	}
	return snap
}

func (w *Workspace) notify(snap Snapshot) {
	if w.onChange != nil {
		w.onChange(snap)
	}
}
