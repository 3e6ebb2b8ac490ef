package bundler

import (
	"fmt"

	"github.com/getjack-org/jack-sub003/internal/source"
)

// Byte budgets enforced around the bundling step.
const (
	// MaxSourceBytes caps the summed size of all source files before
	// bundling, so oversized requests fail before any compute or network
	// is spent.
	MaxSourceBytes = 500_000

	// MaxBundleBytes caps the bundled output the control plane accepts.
	MaxBundleBytes = 10_000_000
)

// SizeError reports a byte budget violation, naming the measured size and
// the cap.
type SizeError struct {
	What  string
	Size  int
	Limit int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%s is %d bytes, exceeding the %d byte limit", e.What, e.Size, e.Limit)
}

// CheckSourceSize validates the pre-bundle budget.
func CheckSourceSize(store *source.Store) error {
	if total := store.TotalBytes(); total > MaxSourceBytes {
		return &SizeError{What: "project source", Size: total, Limit: MaxSourceBytes}
	}
	return nil
}

// CheckBundleSize validates the post-bundle budget.
func CheckBundleSize(code string) error {
	if len(code) > MaxBundleBytes {
		return &SizeError{What: "bundled output", Size: len(code), Limit: MaxBundleBytes}
	}
	return nil
}
