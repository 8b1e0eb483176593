package main

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSnapshot(t *testing.T) {
	out := filepath.Join(t.TempDir(), "preview.png")
	cfg := config{width: 320, height: 240, output: out, delay: time.Millisecond, workers: 2}
	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Errorf("snapshot size = %v, want 320x240", b.Size())
	}
}

func TestDemoDocumentLoads(t *testing.T) {
	doc := demoDocument()
	if doc.Root == nil || len(doc.Root.SubFrames) == 0 {
		t.Fatal("demo document has no sub-frames")
	}
}
