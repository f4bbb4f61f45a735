// Package flash models the persistent medium under the segment store.
//
// A Device exposes byte-addressed Read and Write over a fixed address window
// (Bounds). Writes must land on erased bytes (0xFF); devices that can erase
// a byte range implement Eraser, and devices that buffer writes implement
// Syncer.
//
// Two implementations are provided:
//
//   - MemDevice: an in-memory NOR emulation, used by tests and simulations.
//   - FileDevice: a flash image file, memory-mapped read/write on unix with
//     dirty-range msync on Sync, plain file I/O elsewhere.
//
// Devices serialize their own operations, so at most one read or write is in
// flight against the medium at a time.
package flash
