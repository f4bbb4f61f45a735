package writer

// MemWriter captures manifest bytes in memory.
type MemWriter struct {
	Buf []byte
}

// WriteManifest keeps a copy of buf.
func (w *MemWriter) WriteManifest(buf []byte) error {
	w.Buf = append(w.Buf[:0], buf...)
	return nil
}
