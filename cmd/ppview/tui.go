package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gogpu/preview"
	"github.com/gogpu/preview/internal/logging"
	"github.com/gogpu/preview/surface"
)

const (
	frameInterval = 16 * time.Millisecond
	zoomStep      = 1.25
	// chromeRows is the number of terminal rows below the preview.
	chromeRows = 2
)

var (
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	linkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// tilesReadyMsg signals that tile completions wait for RunPending.
type tilesReadyMsg struct{}

// frameMsg drives fling animation.
type frameMsg time.Time

type model struct {
	ctx      context.Context
	src      preview.Source
	composer *surface.Composer
	player   *preview.Player
	log      *slog.Logger

	keys  keyMap
	help  help.Model
	cells *cellRenderer

	// Terminal size in cells; the preview is cols x 2*(rows-chromeRows)
	// pixels.
	cols, rows int

	status    string
	inputOff  bool
	animating bool
	lastFrame time.Time
	err       error
}

func newModel(ctx context.Context, src preview.Source, composer *surface.Composer) *model {
	return &model{
		ctx:      ctx,
		src:      src,
		composer: composer,
		log:      logging.New("player"),
		keys:     defaultKeyMap(),
		help:     help.New(),
		cells:    newCellRenderer(),
	}
}

func runInteractive(ctx context.Context, src preview.Source, composer *surface.Composer) error {
	m := newModel(ctx, src, composer)
	defer m.close()
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("ppview: %w", err)
	}
	return m.err
}

func (m *model) Init() tea.Cmd {
	return nil
}

// viewportSize returns the preview size in pixels.
func (m *model) viewportSize() (int, int) {
	return m.cols, max(m.rows-chromeRows, 1) * 2
}

// center returns the middle of the preview in pixels.
func (m *model) center() (float64, float64) {
	w, h := m.viewportSize()
	return float64(w) / 2, float64(h) / 2
}

// waitForTiles blocks on the player's ready channel off the Update loop.
func (m *model) waitForTiles() tea.Cmd {
	ready := m.player.Ready()
	return func() tea.Msg {
		<-ready
		return tilesReadyMsg{}
	}
}

func (m *model) nextFrame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m, m.resize(msg.Width, msg.Height)

	case tilesReadyMsg:
		if m.player == nil {
			return m, nil
		}
		n := m.player.RunPending()
		m.log.Debug("applied tile completions", "count", n)
		return m, m.waitForTiles()

	case frameMsg:
		now := time.Time(msg)
		dt := now.Sub(m.lastFrame)
		m.lastFrame = now
		if m.player != nil && m.player.Advance(dt) {
			return m, m.nextFrame()
		}
		m.animating = false
		return m, nil

	case tea.MouseMsg:
		return m, m.handleMouse(msg)

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

// resize builds the player on the first size message and resizes it after.
func (m *model) resize(cols, rows int) tea.Cmd {
	m.cols, m.rows = cols, rows
	m.help.Width = cols
	w, h := m.viewportSize()
	if m.player != nil {
		if err := m.player.SetViewportSize(w, h); err != nil {
			m.status = err.Error()
		}
		return nil
	}

	p, err := preview.Load(m.ctx, m.src, w, h,
		preview.WithSurfaceFactory(m.composer.NewSurface),
		preview.WithFirstPaintListener(func() {
			m.status = "first paint"
		}),
		preview.WithTileErrorHandler(func(req preview.BitmapRequest, err error) {
			m.log.Warn("tile failed", "frame", req.Frame.Short(), "clip", req.Clip, "error", err)
		}))
	if err != nil {
		m.err = err
		return tea.Quit
	}
	m.player = p
	m.log.Info("player ready", "frames", p.Hierarchy().Len(), "viewport", fmt.Sprintf("%dx%d", w, h))
	return m.waitForTiles()
}

func (m *model) startAnimation() tea.Cmd {
	if m.animating {
		return nil
	}
	m.animating = true
	m.lastFrame = time.Now()
	return m.nextFrame()
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		return tea.Quit
	}
	if key.Matches(msg, m.keys.Help) {
		m.help.ShowAll = !m.help.ShowAll
		return nil
	}
	if m.player == nil {
		return nil
	}

	_, h := m.viewportSize()
	step := float64(h) / 4
	cx, cy := m.center()
	switch {
	case key.Matches(msg, m.keys.Up):
		m.player.ScrollBy(cx, cy, 0, -step)
	case key.Matches(msg, m.keys.Down):
		m.player.ScrollBy(cx, cy, 0, step)
	case key.Matches(msg, m.keys.Left):
		m.player.ScrollBy(cx, cy, -step, 0)
	case key.Matches(msg, m.keys.Right):
		m.player.ScrollBy(cx, cy, step, 0)
	case key.Matches(msg, m.keys.FlingUp):
		if m.player.Fling(cx, cy, 0, -float64(h)*4) {
			return m.startAnimation()
		}
	case key.Matches(msg, m.keys.FlingDn):
		if m.player.Fling(cx, cy, 0, float64(h)*4) {
			return m.startAnimation()
		}
	case key.Matches(msg, m.keys.ZoomIn):
		m.zoom(zoomStep, cx, cy)
	case key.Matches(msg, m.keys.ZoomOut):
		m.zoom(1/zoomStep, cx, cy)
	case key.Matches(msg, m.keys.Tap):
		m.tap(cx, cy)
	case key.Matches(msg, m.keys.Input):
		m.toggleInput()
	}
	return nil
}

func (m *model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if m.player == nil {
		return nil
	}
	// One cell is one pixel wide and two pixels tall.
	x, y := float64(msg.X)+0.5, float64(msg.Y*2)+1
	_, h := m.viewportSize()
	step := float64(h) / 8
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.player.ScrollBy(x, y, 0, -step)
	case msg.Button == tea.MouseButtonWheelDown:
		m.player.ScrollBy(x, y, 0, step)
	case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionRelease:
		m.tap(x, y)
	}
	return nil
}

func (m *model) zoom(factor, fx, fy float64) {
	if !m.player.BeginScale() {
		return
	}
	m.player.ScaleBy(factor, fx, fy)
	m.player.EndScale()
}

func (m *model) tap(x, y float64) {
	u, ok := m.player.Tap(x, y)
	if !ok {
		m.status = "no link"
		return
	}
	m.status = "link " + linkStyle.Render(u.String())
	m.log.Info("link tapped", "url", u.String())
}

func (m *model) toggleInput() {
	m.inputOff = !m.inputOff
	m.player.SetAcceptUserInput(!m.inputOff)
	if m.inputOff {
		m.status = "input off"
	} else {
		m.status = "input on"
	}
}

func (m *model) View() string {
	if m.player == nil {
		return mutedStyle.Render("loading preview…")
	}
	w, h := m.viewportSize()
	img := m.composer.Snapshot(m.player.Root().ID(), w, h)

	var b strings.Builder
	b.WriteString(m.cells.Render(img))
	b.WriteByte('\n')
	b.WriteString(statusStyle.Render(m.statusLine()))
	b.WriteByte('\n')
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *model) statusLine() string {
	pos := m.player.ScrollPosition()
	tiles := "loading"
	if m.player.RequiredTilesLoaded() {
		tiles = "ready"
	}
	line := fmt.Sprintf("scale %.2f  scroll %d,%d  tiles %s", m.player.Scale(), pos.X, pos.Y, tiles)
	if m.status != "" {
		line += "  " + m.status
	}
	return line
}

func (m *model) close() {
	if m.player == nil {
		return
	}
	if err := m.player.Close(); err != nil {
		m.log.Warn("close player", "error", err)
	}
}
