//go:build !linux && !freebsd && !darwin

package dirty

import "context"

// flushRanges is a no-op where the flash image is not memory-mapped; the
// file device writes through with WriteAt and syncs the descriptor itself.
func (t *Tracker) flushRanges(ctx context.Context, _ []byte) error {
	return ctx.Err()
}
