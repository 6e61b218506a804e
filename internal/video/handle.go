package video

import (
	"errors"
	"io/fs"
	"os"
	"sync"
)

// Handle is a video copied to local disk for the lifetime of one analysis.
type Handle struct {
	path string
	name string

	once sync.Once
	err  error
}

func (h *Handle) Path() string { return h.path }

func (h *Handle) Name() string { return h.name }

// Release removes the local copy. Calling it again is a no-op.
func (h *Handle) Release() error {
	h.once.Do(func() {
		if err := os.Remove(h.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			h.err = err
		}
	})
	return h.err
}
