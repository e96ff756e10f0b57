package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marcus-hale/chartscan/internal/entity"
)

// filePreview is a temp-file copy of a scan that the presentation layer can
// display. Release removes the file; the sync.Once guarantees the resource is
// freed exactly once no matter how many times removal paths fire.
type filePreview struct {
	path string
	once sync.Once
}

// NewFilePreview writes the scan bytes to a temp file and returns a handle
// whose URL points at it.
func NewFilePreview(filename string, data []byte) (entity.Preview, error) {
	f, err := os.CreateTemp("", "chartscan-preview-*"+filepath.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("create preview: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("write preview: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("close preview: %w", err)
	}
	return &filePreview{path: f.Name()}, nil
}

func (p *filePreview) URL() string {
	return "file://" + p.path
}

func (p *filePreview) Release() {
	p.once.Do(func() {
		_ = os.Remove(p.path)
	})
}
