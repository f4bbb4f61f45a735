package monitor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/NgocKhanh0912/pulse-oximetry/internal/buf"
	"github.com/NgocKhanh0912/pulse-oximetry/storage"
)

// SampleSize is the encoded width of one heart-rate sample.
const SampleSize = 2

// ErrNotRecording is returned by Sample outside StateRecord.
var ErrNotRecording = errors.New("monitor: not recording")

// Recorder persists heart-rate samples into one storage segment and keeps
// the machine in step with what the storage layer allows.
type Recorder struct {
	mu      sync.Mutex
	store   *storage.Store
	fsm     *Machine
	address uint32
	size    uint32
	seg     *storage.Segment
	log     *slog.Logger
}

// NewRecorder records into a segment of size bytes at address. The segment
// is allocated on the first StartRecord.
func NewRecorder(store *storage.Store, fsm *Machine, address, size uint32, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Recorder{store: store, fsm: fsm, address: address, size: size, log: log}
}

// Machine returns the state machine the recorder drives.
func (r *Recorder) Machine() *Machine { return r.fsm }

// Segment returns the recording segment, or nil before the first recording.
func (r *Recorder) Segment() *storage.Segment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seg
}

// StartRecord begins a new recording. A previous recording's segment is
// released first so every recording starts empty. A storage failure fires
// Fault.
func (r *Recorder) StartRecord() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.fsm.Can(EventStartRecord) {
		_, err := r.fsm.Fire(EventStartRecord)
		return err
	}

	if r.seg != nil {
		if err := r.store.Release(r.seg); err != nil {
			return r.fault("release previous recording", err)
		}
		r.seg = nil
	}
	seg, err := r.store.Allocate(r.address, r.size)
	if err != nil {
		return r.fault("allocate recording", err)
	}
	r.seg = seg

	_, err = r.fsm.Fire(EventStartRecord)
	return err
}

// Sample appends one BPM reading. When the segment is full the recording
// stops, Fault fires and the capacity error is returned.
func (r *Recorder) Sample(bpm uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fsm.State() != StateRecord {
		return ErrNotRecording
	}

	var b [SampleSize]byte
	buf.PutU16LE(b[:], bpm)
	if err := r.store.Import(r.seg, b[:]); err != nil {
		return r.fault("append sample", err)
	}
	return nil
}

// StopRecord ends the recording and keeps its samples.
func (r *Recorder) StopRecord() error {
	_, err := r.fsm.Fire(EventStopRecord)
	return err
}

// Send moves to SendPacket, reads every recorded sample back and, once
// read, fires Sent. A read failure fires Fault instead.
func (r *Recorder) Send() ([]uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.fsm.Fire(EventSend); err != nil {
		return nil, err
	}

	samples, err := r.samples()
	if err != nil {
		return nil, r.fault("export samples", err)
	}
	if _, err := r.fsm.Fire(EventSent); err != nil {
		return nil, err
	}
	return samples, nil
}

// Samples returns the recorded samples without changing state.
func (r *Recorder) Samples() ([]uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples()
}

// Close releases the recording segment.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seg == nil {
		return nil
	}
	if err := r.store.Release(r.seg); err != nil {
		return fmt.Errorf("monitor: release recording: %w", err)
	}
	r.seg = nil
	return nil
}

func (r *Recorder) samples() ([]uint16, error) {
	if r.seg == nil {
		return nil, nil
	}
	n := r.seg.Written() / SampleSize * SampleSize
	if n == 0 {
		return []uint16{}, nil
	}

	raw := make([]byte, n)
	if err := r.store.Export(r.seg, raw); err != nil {
		return nil, err
	}
	out := make([]uint16, 0, n/SampleSize)
	for i := 0; i < len(raw); i += SampleSize {
		out = append(out, buf.U16LE(raw[i:]))
	}
	return out, nil
}

// fault fires Fault (when the current state accepts it) and wraps err.
func (r *Recorder) fault(what string, err error) error {
	r.log.Warn("recorder fault", "op", what, "status", storage.Result(err).String(), "err", err)
	if r.fsm.Can(EventFault) {
		_, _ = r.fsm.Fire(EventFault)
	}
	return fmt.Errorf("monitor: %s: %w", what, err)
}
