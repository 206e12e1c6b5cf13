package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestBackoffSchedule verifies the doubling schedule and the cap.
func TestBackoffSchedule(t *testing.T) {
	b := Backoff{Base: time.Second, Cap: 30 * time.Second}

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		if got := b.Delay(i + 1); got != w {
			t.Fatalf("attempt %d: got %v, want %v", i+1, got, w)
		}
	}

	if got := b.Delay(0); got != time.Second {
		t.Fatalf("attempt 0 should clamp to base, got %v", got)
	}
}

// TestDirSourceOrderAndEOF reads a frame directory in name order and ends
// with ErrEndOfStream.
func TestDirSourceOrderAndEOF(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame_0002.jpg", "frame_0001.jpg", "frame_0003.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	src, err := NewDirSource("cam-1", dir)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	ctx := context.Background()
	for i, want := range []string{"frame_0001.jpg", "frame_0002.jpg", "frame_0003.jpg"} {
		frame, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if frame.StreamID != "cam-1" || frame.Seq != uint64(i) {
			t.Fatalf("frame %d: bad identity %s/%d", i, frame.StreamID, frame.Seq)
		}
		if string(frame.Data) != want {
			t.Fatalf("frame %d: got %q, want %q", i, frame.Data, want)
		}
	}

	if _, err := src.Next(ctx); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
}

// TestDirSourceUnavailableOnReadFailure: a vanished file is a
// SourceUnavailable condition, not end-of-stream, and the cursor does not
// advance so the read can be retried.
func TestDirSourceUnavailableOnReadFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame_0001.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := NewDirSource("cam-1", dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	_, err = src.Next(context.Background())
	var unavailable *SourceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected SourceUnavailableError, got %v", err)
	}
	if unavailable.StreamID != "cam-1" {
		t.Fatalf("stream identity lost: %q", unavailable.StreamID)
	}

	// Restore the file: the same frame is served on retry.
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	frame, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("retry after recovery failed: %v", err)
	}
	if frame.Seq != 0 {
		t.Fatalf("cursor advanced past the failed frame: seq %d", frame.Seq)
	}
}

// TestNextHonorsContext: a cancelled context returns immediately.
func TestNextHonorsContext(t *testing.T) {
	src, err := NewDirSource("cam-1", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// TestSplitSourceURL parses bucket and folder from a source URL.
func TestSplitSourceURL(t *testing.T) {
	bucket, folder, err := splitSourceURL("minio://localhost:9000/frames/cam-1")
	if err != nil {
		t.Fatal(err)
	}
	if bucket != "frames" || folder != "cam-1" {
		t.Fatalf("got %q/%q", bucket, folder)
	}

	if _, _, err := splitSourceURL("minio://localhost:9000/nofolder"); err == nil {
		t.Fatal("expected error for URL without folder")
	}
}
