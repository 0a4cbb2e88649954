//go:build !darwin

package clipboard

import (
	"fmt"

	"github.com/clipkeep/clipkeep/internal/record"
)

// stubSource is used on platforms without a pasteboard adapter yet.
type stubSource struct{}

// NewSystem returns an erroring source on unsupported platforms.
func NewSystem() Source {
	return stubSource{}
}

func (stubSource) ChangeCount() (uint64, error) {
	return 0, fmt.Errorf("system clipboard is not supported on this OS yet")
}

func (stubSource) Read() (*Snapshot, error) {
	return nil, fmt.Errorf("system clipboard is not supported on this OS yet")
}

func (stubSource) Write(*record.Record) error {
	return fmt.Errorf("system clipboard is not supported on this OS yet")
}
