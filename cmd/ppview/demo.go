package main

import (
	"image"
	"image/color"
	"net/url"

	"github.com/gogpu/preview"
	"github.com/gogpu/preview/compositor"
)

func link(x0, y0, x1, y1 int, target string) compositor.Link {
	u, err := url.Parse(target)
	if err != nil {
		panic(err)
	}
	return compositor.Link{Rect: image.Rect(x0, y0, x1, y1), URL: u}
}

// demoDocument builds a long article page with a scrollable embed that
// itself nests a frame, and a fixed-size banner further down.
func demoDocument() compositor.Document {
	nested := &compositor.FrameSpec{
		ID:         preview.NewFrameID(),
		Width:      300,
		Height:     600,
		Background: color.RGBA{R: 0xff, G: 0xe0, B: 0xb2, A: 0xff},
		Links: []compositor.Link{
			link(0, 0, 300, 60, "https://example.com/embed/nested"),
		},
	}
	embed := &compositor.FrameSpec{
		ID:         preview.NewFrameID(),
		Width:      600,
		Height:     1200,
		Scroll:     image.Pt(0, 100),
		Background: color.RGBA{R: 0xc8, G: 0xe6, B: 0xc9, A: 0xff},
		Links: []compositor.Link{
			link(0, 100, 600, 180, "https://example.com/embed"),
			link(20, 900, 580, 960, "https://example.com/embed/more"),
		},
		SubFrames: []compositor.SubFrameSpec{
			{Clip: image.Rect(50, 300, 350, 500), Frame: nested},
		},
	}
	banner := &compositor.FrameSpec{
		ID:         preview.NewFrameID(),
		Width:      800,
		Height:     250,
		Background: color.RGBA{R: 0xbb, G: 0xde, B: 0xfb, A: 0xff},
		Links: []compositor.Link{
			link(0, 0, 800, 250, "https://example.com/banner"),
		},
	}
	root := &compositor.FrameSpec{
		ID:         preview.NewFrameID(),
		Width:      1000,
		Height:     3000,
		Background: color.RGBA{R: 0xfa, G: 0xfa, B: 0xfa, A: 0xff},
		Links: []compositor.Link{
			link(0, 0, 1000, 80, "https://example.com/"),
			link(100, 1200, 900, 1260, "https://example.com/article/1"),
			link(100, 2200, 900, 2260, "https://example.com/article/2"),
		},
		SubFrames: []compositor.SubFrameSpec{
			{Clip: image.Rect(100, 400, 700, 800), Frame: embed},
			{Clip: image.Rect(100, 1600, 900, 1850), Frame: banner},
		},
	}
	return compositor.Document{Root: root}
}
