package preview

import (
	"fmt"
	"image"
)

// RawHierarchy is the flattened frame tree reported by a compositor once at
// startup.
//
// For the i-th frame of FrameIDs, its content width and height are
// ContentSizes[2i] and ContentSizes[2i+1], its initial scroll offset is
// ScrollOffsets[2i] and ScrollOffsets[2i+1], and it owns SubFrameCounts[i]
// sub-frames. Sub-frames are listed frame by frame in SubFrameIDs; the k-th
// sub-frame's clip rect is SubFrameClipRects[4k:4k+4] as x, y, width, height
// in the parent's content space.
type RawHierarchy struct {
	RootID            FrameID
	FrameIDs          []FrameID
	ContentSizes      []int
	ScrollOffsets     []int
	SubFrameCounts    []int
	SubFrameIDs       []FrameID
	SubFrameClipRects []int
}

// FrameNode is one frame of a parsed hierarchy.
type FrameNode struct {
	ID            FrameID
	ContentSize   image.Point
	InitialScroll image.Point
	SubFrames     []SubFrame
}

// SubFrame binds a child frame to the rectangle it occupies in its parent.
type SubFrame struct {
	Clip  image.Rectangle
	Frame *FrameNode
}

// Hierarchy is an immutable, validated frame tree.
type Hierarchy struct {
	Root   *FrameNode
	frames map[FrameID]*FrameNode
}

// Frame returns the node for id, if it is part of the tree.
func (h *Hierarchy) Frame(id FrameID) (*FrameNode, bool) {
	n, ok := h.frames[id]
	return n, ok
}

// Len returns the number of frames reachable from the root.
func (h *Hierarchy) Len() int {
	return len(h.frames)
}

// ParseHierarchy validates raw and builds the frame tree rooted at
// raw.RootID. Any inconsistency between counts and list lengths, unknown
// IDs, or a frame reachable twice is reported as ErrMalformedHierarchy; no
// partial tree is returned. Negative sizes and clip extents are clamped to
// zero.
func ParseHierarchy(raw *RawHierarchy) (*Hierarchy, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrMalformedHierarchy)
	}
	n := len(raw.FrameIDs)
	switch {
	case n == 0:
		return nil, fmt.Errorf("%w: no frames", ErrMalformedHierarchy)
	case len(raw.ContentSizes) != 2*n:
		return nil, fmt.Errorf("%w: %d content size values for %d frames",
			ErrMalformedHierarchy, len(raw.ContentSizes), n)
	case len(raw.ScrollOffsets) != 2*n:
		return nil, fmt.Errorf("%w: %d scroll offset values for %d frames",
			ErrMalformedHierarchy, len(raw.ScrollOffsets), n)
	case len(raw.SubFrameCounts) != n:
		return nil, fmt.Errorf("%w: %d sub-frame counts for %d frames",
			ErrMalformedHierarchy, len(raw.SubFrameCounts), n)
	case len(raw.SubFrameClipRects) != 4*len(raw.SubFrameIDs):
		return nil, fmt.Errorf("%w: %d clip rect values for %d sub-frames",
			ErrMalformedHierarchy, len(raw.SubFrameClipRects), len(raw.SubFrameIDs))
	}

	total := 0
	for i, c := range raw.SubFrameCounts {
		if c < 0 {
			return nil, fmt.Errorf("%w: frame %d has negative sub-frame count %d",
				ErrMalformedHierarchy, i, c)
		}
		total += c
	}
	if total != len(raw.SubFrameIDs) {
		return nil, fmt.Errorf("%w: sub-frame counts sum to %d, have %d sub-frame ids",
			ErrMalformedHierarchy, total, len(raw.SubFrameIDs))
	}

	index := make(map[FrameID]int, n)
	for i, id := range raw.FrameIDs {
		if _, dup := index[id]; dup {
			return nil, fmt.Errorf("%w: duplicate frame %s", ErrMalformedHierarchy, id)
		}
		index[id] = i
	}
	if _, ok := index[raw.RootID]; !ok {
		return nil, fmt.Errorf("%w: root frame %s not listed", ErrMalformedHierarchy, raw.RootID)
	}

	// offsets[i] is the position of frame i's first sub-frame in SubFrameIDs.
	offsets := make([]int, n)
	for i := 1; i < n; i++ {
		offsets[i] = offsets[i-1] + raw.SubFrameCounts[i-1]
	}

	h := &Hierarchy{frames: make(map[FrameID]*FrameNode, n)}
	var build func(id FrameID) (*FrameNode, error)
	build = func(id FrameID) (*FrameNode, error) {
		i, ok := index[id]
		if !ok {
			return nil, fmt.Errorf("%w: sub-frame %s not listed", ErrMalformedHierarchy, id)
		}
		if _, seen := h.frames[id]; seen {
			return nil, fmt.Errorf("%w: frame %s reachable more than once", ErrMalformedHierarchy, id)
		}
		node := &FrameNode{
			ID:            id,
			ContentSize:   image.Pt(max(raw.ContentSizes[2*i], 0), max(raw.ContentSizes[2*i+1], 0)),
			InitialScroll: image.Pt(max(raw.ScrollOffsets[2*i], 0), max(raw.ScrollOffsets[2*i+1], 0)),
		}
		h.frames[id] = node

		count := raw.SubFrameCounts[i]
		if count > 0 {
			node.SubFrames = make([]SubFrame, 0, count)
		}
		for j := range count {
			k := offsets[i] + j
			r := raw.SubFrameClipRects[4*k : 4*k+4]
			clip := image.Rect(r[0], r[1], r[0]+max(r[2], 0), r[1]+max(r[3], 0))
			child, err := build(raw.SubFrameIDs[k])
			if err != nil {
				return nil, err
			}
			node.SubFrames = append(node.SubFrames, SubFrame{Clip: clip, Frame: child})
		}
		return node, nil
	}

	root, err := build(raw.RootID)
	if err != nil {
		return nil, err
	}
	h.Root = root
	return h, nil
}

// Flatten converts a frame tree back into the flattened wire form. Frames
// are listed in depth-first order starting at root.
func Flatten(root *FrameNode) *RawHierarchy {
	raw := &RawHierarchy{}
	if root == nil {
		return raw
	}
	raw.RootID = root.ID

	var frames []*FrameNode
	var walk func(n *FrameNode)
	walk = func(n *FrameNode) {
		frames = append(frames, n)
		for _, sf := range n.SubFrames {
			walk(sf.Frame)
		}
	}
	walk(root)

	for _, f := range frames {
		raw.FrameIDs = append(raw.FrameIDs, f.ID)
		raw.ContentSizes = append(raw.ContentSizes, f.ContentSize.X, f.ContentSize.Y)
		raw.ScrollOffsets = append(raw.ScrollOffsets, f.InitialScroll.X, f.InitialScroll.Y)
		raw.SubFrameCounts = append(raw.SubFrameCounts, len(f.SubFrames))
		for _, sf := range f.SubFrames {
			raw.SubFrameIDs = append(raw.SubFrameIDs, sf.Frame.ID)
			raw.SubFrameClipRects = append(raw.SubFrameClipRects,
				sf.Clip.Min.X, sf.Clip.Min.Y, sf.Clip.Dx(), sf.Clip.Dy())
		}
	}
	return raw
}
