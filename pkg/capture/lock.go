package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// lockDevice takes the inter-process ownership of a device. An empty dir
// disables locking.
func lockDevice(dir, id string) (*flock.Flock, error) {
	if dir == "" {
		return nil, nil
	}
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("lock dir: %w", err)
	}
	fl := flock.New(filepath.Join(dir, "camview-"+name+".lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %v: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrDeviceBusy, id)
	}
	return fl, nil
}

func unlockDevice(fl *flock.Flock) error {
	if fl == nil {
		return nil
	}
	return fl.Unlock()
}
