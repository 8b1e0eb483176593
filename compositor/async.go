// Package compositor provides compositor implementations for the preview
// player.
//
// Async adapts a blocking Renderer into the asynchronous
// preview.Compositor contract, running at most a fixed number of renders at
// once. Memory is a Renderer over an in-memory synthetic document, used by
// the demo binary and by tests.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/url"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/gogpu/preview"
)

// ErrClosed is returned for requests made after Close.
var ErrClosed = errors.New("compositor: closed")

// Renderer produces tile bitmaps synchronously.
//
// Render returns the bitmap covering req.Clip, in the frame's scaled pixel
// space, sized exactly req.Clip.Size(). It should return promptly with
// ctx.Err() once ctx is cancelled. Renderer must be safe for concurrent use.
type Renderer interface {
	Render(ctx context.Context, req preview.BitmapRequest) (*image.RGBA, error)
	OnClick(frame preview.FrameID, x, y int) *url.URL
}

type hierarchySource interface {
	Hierarchy(ctx context.Context) (*preview.RawHierarchy, error)
}

// Async runs a Renderer on background goroutines.
//
// Every RequestBitmap starts a goroutine that waits for one of concurrency
// slots, renders and calls done. Requests whose context is cancelled while
// waiting give up without rendering.
//
// Thread safety: Async is safe for concurrent use.
type Async struct {
	r   Renderer
	sem *semaphore.Weighted

	// ctx is cancelled by Close to abandon all outstanding work.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsync wraps r. If concurrency is 0 or negative, GOMAXPROCS is used.
func NewAsync(r Renderer, concurrency int) *Async {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Async{
		r:      r,
		sem:    semaphore.NewWeighted(int64(concurrency)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// RequestBitmap implements preview.Compositor.
func (a *Async) RequestBitmap(ctx context.Context, req preview.BitmapRequest, done func(*image.RGBA, error)) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		done(nil, ErrClosed)
		return
	}
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(a.ctx, cancel)
		defer stop()

		if err := a.sem.Acquire(ctx, 1); err != nil {
			done(nil, err)
			return
		}
		defer a.sem.Release(1)

		if err := ctx.Err(); err != nil {
			done(nil, err)
			return
		}
		img, err := a.r.Render(ctx, req)
		if err != nil && !errors.Is(err, context.Canceled) {
			preview.Logger().Warn("compositor: render failed",
				slog.String("frame", req.Frame.Short()),
				slog.Any("clip", req.Clip),
				slog.Any("error", err))
		}
		done(img, err)
	}()
}

// OnClick implements preview.Compositor.
func (a *Async) OnClick(frame preview.FrameID, x, y int) *url.URL {
	return a.r.OnClick(frame, x, y)
}

// Hierarchy implements preview.Source when the wrapped Renderer can
// describe its frame tree.
func (a *Async) Hierarchy(ctx context.Context) (*preview.RawHierarchy, error) {
	hs, ok := a.r.(hierarchySource)
	if !ok {
		return nil, fmt.Errorf("compositor: %T has no frame hierarchy: %w",
			a.r, &preview.StatusError{Status: preview.StatusNoCapture})
	}
	return hs.Hierarchy(ctx)
}

// Close abandons outstanding requests, waits for their goroutines to exit
// and closes the Renderer if it implements io.Closer. Close is idempotent.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()

	if c, ok := a.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
