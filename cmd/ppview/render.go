package main

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// halfBlock shows two vertically stacked pixels in one terminal cell: the
// foreground paints the upper half, the background the lower half.
const halfBlock = "▀"

type cellColors struct {
	top, bottom color.RGBA
}

// cellRenderer renders images as half-block cells, caching one style per
// color pair.
type cellRenderer struct {
	styles map[cellColors]lipgloss.Style
}

func newCellRenderer() *cellRenderer {
	return &cellRenderer{styles: make(map[cellColors]lipgloss.Style)}
}

func hexColor(c color.RGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

// Render returns img as Dy()/2 lines of Dx() cells.
func (r *cellRenderer) Render(img *image.RGBA) string {
	b := img.Bounds()
	var sb strings.Builder
	for y := b.Min.Y; y+1 < b.Max.Y; y += 2 {
		if y > b.Min.Y {
			sb.WriteByte('\n')
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			cc := cellColors{top: img.RGBAAt(x, y), bottom: img.RGBAAt(x, y+1)}
			st, ok := r.styles[cc]
			if !ok {
				st = lipgloss.NewStyle().Foreground(hexColor(cc.top)).Background(hexColor(cc.bottom))
				r.styles[cc] = st
			}
			sb.WriteString(st.Render(halfBlock))
		}
	}
	return sb.String()
}

// Styles returns how many color pairs have been seen.
func (r *cellRenderer) Styles() int {
	return len(r.styles)
}
