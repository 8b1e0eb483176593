package preview

import "context"

// Option configures a Player during creation.
// Use functional options to customize Player behavior.
//
// Example:
//
//	// Deterministic executor drained by the caller
//	q := sequence.NewQueue()
//	p, err := preview.NewPlayer(comp, h, 800, 600, preview.WithExecutor(q))
//
//	// Paint into software surfaces
//	composer := surface.NewComposer()
//	p, err := preview.NewPlayer(comp, h, 800, 600,
//	    preview.WithSurfaceFactory(composer.NewSurface))
type Option func(*options)

// options holds optional configuration for Player creation.
type options struct {
	ctx            context.Context
	executor       Executor
	prefetch       int
	policy         FirstPaintPolicy
	onFirstPaint   func()
	maxScaleFactor float64
	flingFriction  float64
	surfaces       SurfaceFactory
	onTileError    func(BitmapRequest, error)
	rootZoom       bool
}

// defaultOptions returns the default player options.
func defaultOptions() options {
	return options{
		ctx:            context.Background(),
		executor:       nil, // An internal sequence.Queue if nil
		prefetch:       1,
		policy:         FirstPaintCenterTile,
		maxScaleFactor: 5,
		flingFriction:  4,
		surfaces:       nil, // Surfaces discard updates if nil
		rootZoom:       true,
	}
}

// WithContext sets the parent context of every tile request. Cancelling it
// abandons all outstanding requests.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithExecutor sets the executor tile completions are marshalled through.
// All player methods must be called on the goroutine the executor runs
// functions on.
//
// Without this option the player queues completions internally and the
// caller drains them with Player.RunPending.
func WithExecutor(e Executor) Option {
	return func(o *options) {
		o.executor = e
	}
}

// WithPrefetchMargin sets how many tiles beyond the visible area are
// requested on each side. Zero disables prefetching.
func WithPrefetchMargin(tiles int) Option {
	return func(o *options) {
		o.prefetch = max(tiles, 0)
	}
}

// WithFirstPaintPolicy sets which tiles of a frame's first bitmap generation
// must arrive before the frame counts as painted.
func WithFirstPaintPolicy(p FirstPaintPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithFirstPaintListener registers fn to be called once, on the owner
// goroutine, when the root frame first satisfies the first-paint policy.
func WithFirstPaintListener(fn func()) Option {
	return func(o *options) {
		o.onFirstPaint = fn
	}
}

// WithMaxScaleFactor limits zooming to factor times the initial fit-width
// scale. Values below 1 are raised to 1, which disables zooming in.
func WithMaxScaleFactor(factor float64) Option {
	return func(o *options) {
		o.maxScaleFactor = max(factor, 1)
	}
}

// WithFlingFriction sets the exponential decay rate of fling velocity, per
// second. Higher values stop flings sooner.
func WithFlingFriction(k float64) Option {
	return func(o *options) {
		if k > 0 {
			o.flingFriction = k
		}
	}
}

// WithSurfaceFactory sets the function creating the rendering surface of
// each frame.
func WithSurfaceFactory(f SurfaceFactory) Option {
	return func(o *options) {
		o.surfaces = f
	}
}

// WithTileErrorHandler registers fn to be called, on the owner goroutine,
// for each tile request that fails. Cancelled requests are not reported.
func WithTileErrorHandler(fn func(BitmapRequest, error)) Option {
	return func(o *options) {
		o.onTileError = fn
	}
}

// WithRootZoom enables or disables scale gestures. Sub-frames never scale
// independently; they follow the root.
func WithRootZoom(enabled bool) Option {
	return func(o *options) {
		o.rootZoom = enabled
	}
}
