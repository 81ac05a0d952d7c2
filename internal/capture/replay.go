package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/imaging"
)

var ErrNotOpen = errors.New("capture source is not open")

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".webp": true,
}

// IsImageFile reports whether path has an extension the decoders understand.
func IsImageFile(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// ListImages returns the image files directly under dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Replay plays a directory of still images as a frame stream, paced at FPS.
type Replay struct {
	dir  string
	fps  float64
	loop bool

	// sleep waits for d or until ctx is done; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	files []string
	next  int
	last  time.Time
	open  bool
}

func NewReplay(dir string, fps float64, loop bool) *Replay {
	return &Replay{
		dir:   dir,
		fps:   fps,
		loop:  loop,
		sleep: sleepContext,
	}
}

func (r *Replay) Open(ctx context.Context) error {
	files, err := ListImages(r.dir)
	if err != nil {
		return domain.ErrCaptureUnavailable.WithError(err)
	}
	if len(files) == 0 {
		return domain.ErrCaptureUnavailable.WithError(fmt.Errorf("no images in %s", r.dir))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = files
	r.next = 0
	r.last = time.Time{}
	r.open = true
	return nil
}

func (r *Replay) Read(ctx context.Context) (imaging.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.open {
		return imaging.Image{}, domain.ErrCaptureUnavailable.WithError(ErrNotOpen)
	}
	if r.next >= len(r.files) {
		if !r.loop {
			return imaging.Image{}, io.EOF
		}
		r.next = 0
	}

	if r.fps > 0 && !r.last.IsZero() {
		period := time.Duration(float64(time.Second) / r.fps)
		if wait := period - time.Since(r.last); wait > 0 {
			if err := r.sleep(ctx, wait); err != nil {
				return imaging.Image{}, err
			}
		}
	}

	path := r.files[r.next]
	r.next++
	r.last = time.Now()

	img, err := imaging.Load(path)
	if err != nil {
		return imaging.Image{}, domain.ErrCaptureUnavailable.WithError(err)
	}
	return img, nil
}

func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = false
	r.files = nil
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
