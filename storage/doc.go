// Package storage manages segments inside one erase region of a flash device.
//
// # Overview
//
// A Store carves a region (one erase sector) into independently allocated
// segments. Each segment has a one-byte header holding its identifier and a
// write cursor that only moves forward. Segments never overlap and never
// cross the region boundary.
//
// # Operations
//
//   - Allocate(start, size): assign the lowest free identifier, validate the
//     placement against the address-ordered neighbors, write the header.
//   - Import(seg, data): append at the cursor.
//   - Export(seg, out): read back from just after the header.
//   - Reclaim(seg): migrate written payload to the backup sink, erase the
//     range, rewrite the header and rewind the cursor.
//   - Release(seg): reclaim, then free the identifier.
//   - State(seg): a consistent copy of a segment's bookkeeping, taken under
//     the store lock for callers sharing handles across goroutines.
//
// # Migration
//
// With a backup sink configured, Allocate refuses segments whose payload the
// sink could never take in one stash, so a segment can always be released
// once the sink has room. Payload a reclaim already stashed without rewinding
// the cursor (a device without erase, or a failed erase) is not stashed
// again until more bytes are written.
//
// # Identifiers
//
// There are 256 identifiers. An identifier is reserved from a successful
// Allocate until a successful Release; a leaked segment keeps its identifier
// forever. Handles are compared by identity, so a released handle stays
// stale even after its identifier is reused.
//
// # Errors
//
// Every failure is an *Error whose Kind is one of the Err* sentinels, so
// callers branch with errors.Is:
//
//	seg, err := st.Allocate(0x08060000, 4096)
//	switch {
//	case errors.Is(err, storage.ErrPlacementInvalid):
//	    // pick another address
//	case err != nil:
//	    return err
//	}
//
// Result maps an error onto the ok / error / failed tri-state used by the
// supervisory loop. Preconditions are checked before any mutation and only
// validated operations touch the device.
//
// # Release contract
//
// Release is destructive unless the store was built WithBackup: export
// anything still needed first. With a backup sink the written payload is
// stashed before the erase, and a sink failure aborts the release with
// ErrMigrationFailed leaving the segment active. Devices that cannot erase
// keep their bytes; the range is then only logically free.
//
// # Persistence
//
// The registry itself lives in memory. Snapshot and Restore round-trip it
// through a JSON manifest (SaveManifest, LoadManifest); Restore re-checks
// placement and every header byte against the device.
package storage
