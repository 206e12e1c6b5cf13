package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
)

// DirSource reads JPEG frame files from a local directory in name order.
// The frame extractor writes files as frame_0001.jpg, frame_0002.jpg, ...
// so lexicographic order is capture order.
type DirSource struct {
	streamID string
	files    []string
	next     int
}

// NewDirSource lists the directory once and serves its JPEG files as frames.
func NewDirSource(streamID, dir string) (*DirSource, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
	if err != nil {
		return nil, Unavailable(streamID, err)
	}
	sort.Strings(files)
	return &DirSource{streamID: streamID, files: files}, nil
}

func (s *DirSource) Next(ctx context.Context) (*models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.files) {
		return nil, ErrEndOfStream
	}

	data, err := os.ReadFile(s.files[s.next])
	if err != nil {
		return nil, Unavailable(s.streamID, err)
	}

	frame := &models.Frame{
		StreamID:  s.streamID,
		Seq:       uint64(s.next),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	s.next++
	return frame, nil
}

func (s *DirSource) Close() error { return nil }
