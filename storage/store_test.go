package storage

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NgocKhanh0912/pulse-oximetry/flash"
)

func TestNew_Validation(t *testing.T) {
	dev := newTestDevice(t)

	_, err := New(nil, testRegion)
	require.Error(t, err)

	_, err = New(dev, flash.Region{Start: 0, Size: 0})
	require.Error(t, err)

	_, err = New(dev, flash.Region{Start: 0x800, Size: 0x1000})
	require.Error(t, err, "region must lie inside the device")
}

// Region 0x0000/2048 walkthrough.
func TestStore_Scenario(t *testing.T) {
	st, dev := newTestStore(t)

	a, err := st.Allocate(0x0000, 512)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), a.ID())
	assert.Equal(t, uint32(511), a.SpaceLeft())

	_, err = st.Allocate(0x0100, 256)
	require.ErrorIs(t, err, ErrPlacementInvalid, "0x0100 < 0x0000+512")

	b, err := st.Allocate(0x0200, 256)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), b.ID(), "rejected attempt must not burn an identifier")

	data := pattern(100, 7)
	require.NoError(t, st.Import(a, data))
	assert.Equal(t, uint32(411), a.SpaceLeft())

	out := make([]byte, 100)
	require.NoError(t, st.Export(a, out))
	assert.Equal(t, data, out)
	assert.Equal(t, uint32(411), a.SpaceLeft(), "export must not move the cursor")

	// 0x0780 + 512 = 0x0980 > 0x0800.
	_, err = st.Allocate(0x0780, 512)
	require.ErrorIs(t, err, ErrPlacementInvalid)

	header := make([]byte, 1)
	require.NoError(t, dev.Read(0x0200, header))
	assert.Equal(t, []byte{1}, header)
}

func TestStore_Allocate_InvalidArgument(t *testing.T) {
	st, dev := newTestStore(t)

	for _, size := range []uint32{0, testRegion.Size, testRegion.Size + 1} {
		_, err := st.Allocate(0, size)
		require.ErrorIs(t, err, ErrInvalidArgument, "size %d", size)
		assert.Equal(t, StatusError, Result(err))
	}
	assert.Zero(t, dev.Writes())
}

func TestStore_Allocate_Boundaries(t *testing.T) {
	tests := []struct {
		name    string
		start   uint32
		size    uint32
		wantErr error
	}{
		{"exact fit at region end", 2048 - 100, 100, nil},
		{"one byte past end", 2048 - 99, 100, ErrPlacementInvalid},
		{"starts past region", 2048, 1, ErrPlacementInvalid},
		{"address overflow", 0xFFFFFFF0, 0x20, ErrPlacementInvalid},
		{"size one", 0x10, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, _ := newTestStore(t)
			seg, err := st.Allocate(tt.start, tt.size)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, seg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size-HeaderSize, seg.SpaceLeft())
		})
	}
}

func TestStore_Allocate_BeforeRegionStart(t *testing.T) {
	dev := newTestDevice(t)
	st, err := New(dev, flash.Region{Start: 0x400, Size: 0x400})
	require.NoError(t, err)

	_, err = st.Allocate(0x3FF, 16)
	require.ErrorIs(t, err, ErrPlacementInvalid)

	_, err = st.Allocate(0x400, 16)
	require.NoError(t, err)
}

func TestStore_Allocate_BetweenNeighbors(t *testing.T) {
	st, _ := newTestStore(t)

	_, err := st.Allocate(0x000, 0x100)
	require.NoError(t, err)
	_, err = st.Allocate(0x200, 0x100)
	require.NoError(t, err)

	_, err = st.Allocate(0x100, 0x101)
	require.ErrorIs(t, err, ErrPlacementInvalid, "touches successor")
	_, err = st.Allocate(0x0FF, 0x10)
	require.ErrorIs(t, err, ErrPlacementInvalid, "touches predecessor")
	_, err = st.Allocate(0x000, 0x10)
	require.ErrorIs(t, err, ErrPlacementInvalid, "same start as existing segment")

	mid, err := st.Allocate(0x100, 0x100)
	require.NoError(t, err, "exactly fills the gap")
	assert.Equal(t, uint8(2), mid.ID())
}

func TestStore_NonOverlapProperty(t *testing.T) {
	st, _ := newTestStore(t)
	rng := rand.New(rand.NewPCG(1, 2))
	end, _ := testRegion.End()

	type span struct{ start, size uint32 }
	var live []span

	for range 2000 {
		start := rng.Uint32N(end + 64)
		size := 1 + rng.Uint32N(200)

		want := testRegion.Contains(start, size)
		for _, s := range live {
			if start < s.start+s.size && s.start < start+size {
				want = false
			}
		}

		seg, err := st.Allocate(start, size)
		if want {
			require.NoError(t, err, "start=0x%X size=%d", start, size)
			live = append(live, span{start, size})
			require.Equal(t, start, seg.Address())
		} else {
			require.ErrorIs(t, err, ErrPlacementInvalid, "start=0x%X size=%d", start, size)
		}
	}

	segs := st.Segments()
	require.Len(t, segs, len(live))
	for i, a := range segs {
		require.True(t, testRegion.Contains(a.Address(), a.Size()))
		if i > 0 {
			prev := segs[i-1]
			require.LessOrEqual(t, prev.Address()+prev.Size(), a.Address())
		}
	}
}

func TestStore_IdentifierExhaustion(t *testing.T) {
	st, _ := newTestStore(t)

	for i := range MaxSegments {
		seg, err := st.Allocate(uint32(i), 1)
		require.NoError(t, err)
		require.Equal(t, uint8(i), seg.ID())
	}

	before := st.Snapshot()
	_, err := st.Allocate(0x400, 1)
	require.ErrorIs(t, err, ErrNoFreeIdentifier)
	assert.Equal(t, before, st.Snapshot())

	seg, ok := st.Lookup(17)
	require.True(t, ok)
	require.NoError(t, st.Release(seg))

	again, err := st.Allocate(0x400, 8)
	require.NoError(t, err)
	assert.Equal(t, uint8(17), again.ID(), "lowest free identifier is reused")
}

func TestStore_RollbackOnRejection(t *testing.T) {
	st, dev := newTestStore(t)

	_, err := st.Allocate(0x000, 512)
	require.NoError(t, err)
	_, err = st.Allocate(0x300, 256)
	require.NoError(t, err)

	before := st.Snapshot()
	image := dev.Dump()
	writes := dev.Writes()

	for _, req := range [][2]uint32{{0x100, 256}, {0x2FF, 2}, {0x7F0, 0x20}, {0x3FF, 1}} {
		_, err := st.Allocate(req[0], req[1])
		require.ErrorIs(t, err, ErrPlacementInvalid)
	}

	assert.Equal(t, before, st.Snapshot())
	assert.Equal(t, image, dev.Dump())
	assert.Equal(t, writes, dev.Writes())
	_, ok := st.Lookup(2)
	assert.False(t, ok)
}

func TestStore_CapacityMonotonic(t *testing.T) {
	st, _ := newTestStore(t)
	const size = 16

	seg, err := st.Allocate(0x40, size)
	require.NoError(t, err)

	total := 0
	for _, n := range []int{4, 7, 3, 1} {
		require.NoError(t, st.Import(seg, pattern(n, byte(total))))
		total += n
		require.Equal(t, uint32(size-1-total), seg.SpaceLeft())
	}
	require.Equal(t, size-1, total)

	err = st.Import(seg, []byte{0})
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, StatusError, Result(err))
	assert.Zero(t, seg.SpaceLeft())

	out := make([]byte, size-1)
	require.NoError(t, st.Export(seg, out))
	assert.Equal(t, pattern(size-1, 0), out)
}

func TestStore_Import_TooLargeLeavesCursor(t *testing.T) {
	st, _ := newTestStore(t)
	seg, err := st.Allocate(0, 10)
	require.NoError(t, err)

	require.ErrorIs(t, st.Import(seg, make([]byte, 10)), ErrCapacityExceeded)
	assert.Equal(t, uint32(9), seg.SpaceLeft())
	require.NoError(t, st.Import(seg, make([]byte, 9)))
}

func TestStore_RoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 100, 510, 511} {
		st, _ := newTestStore(t)
		seg, err := st.Allocate(0x100, 512)
		require.NoError(t, err)

		data := pattern(n, byte(n))
		require.NoError(t, st.Import(seg, data))

		out := make([]byte, n)
		require.NoError(t, st.Export(seg, out))
		require.Equal(t, data, out, "n=%d", n)
	}
}

func TestStore_Export_Bounds(t *testing.T) {
	st, _ := newTestStore(t)
	seg, err := st.Allocate(0, 64)
	require.NoError(t, err)

	require.ErrorIs(t, st.Export(seg, make([]byte, 1)), ErrCapacityExceeded, "nothing written yet")
	require.ErrorIs(t, st.Export(seg, nil), ErrInvalidArgument)

	require.NoError(t, st.Import(seg, pattern(10, 0)))
	require.ErrorIs(t, st.Export(seg, make([]byte, 11)), ErrCapacityExceeded)

	partial := make([]byte, 4)
	require.NoError(t, st.Export(seg, partial))
	assert.Equal(t, pattern(4, 0), partial)
}

func TestStore_NilAndEmptyArguments(t *testing.T) {
	st, _ := newTestStore(t)
	seg, err := st.Allocate(0, 64)
	require.NoError(t, err)

	require.ErrorIs(t, st.Import(nil, []byte{1}), ErrInvalidArgument)
	require.ErrorIs(t, st.Import(seg, nil), ErrInvalidArgument)
	require.ErrorIs(t, st.Export(nil, make([]byte, 1)), ErrInvalidArgument)
	require.ErrorIs(t, st.Reclaim(nil), ErrInvalidArgument)
	require.ErrorIs(t, st.Release(nil), ErrInvalidArgument)
	assert.Equal(t, uint32(63), seg.SpaceLeft())
}

func TestStore_Lifecycle(t *testing.T) {
	st, _ := newTestStore(t)

	seg, err := st.Allocate(0x100, 64)
	require.NoError(t, err)
	require.NoError(t, st.Import(seg, []byte("hr")))

	require.NoError(t, st.Release(seg))
	assert.Zero(t, seg.Address())
	assert.Zero(t, seg.Size())
	assert.Zero(t, seg.SpaceLeft())

	require.ErrorIs(t, st.Import(seg, []byte{1}), ErrSegmentInactive)
	require.ErrorIs(t, st.Export(seg, make([]byte, 1)), ErrSegmentInactive)
	require.ErrorIs(t, st.Release(seg), ErrSegmentInactive)
	require.ErrorIs(t, st.Reclaim(seg), ErrSegmentInactive)

	reused, err := st.Allocate(0x100, 64)
	require.NoError(t, err, "released range was erased and is free again")
	assert.Equal(t, seg.ID(), reused.ID())

	require.ErrorIs(t, st.Import(seg, []byte{1}), ErrSegmentInactive, "stale handle stays stale")
	require.NoError(t, st.Import(reused, []byte{1}))
}

func TestStore_MediumFailure(t *testing.T) {
	dev := &faultyDevice{MemDevice: newTestDevice(t)}
	st, err := New(dev, testRegion)
	require.NoError(t, err)

	dev.failWrite = true
	before := st.Snapshot()
	_, err = st.Allocate(0, 32)
	require.ErrorIs(t, err, ErrMediumFailure)
	require.ErrorIs(t, err, errInjected)
	assert.Equal(t, StatusFailed, Result(err))
	assert.Equal(t, before, st.Snapshot(), "header failure rolls back")

	dev.failWrite = false
	seg, err := st.Allocate(0, 32)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), seg.ID())

	dev.failWrite = true
	require.ErrorIs(t, st.Import(seg, []byte{1, 2}), ErrMediumFailure)
	assert.Equal(t, uint32(31), seg.SpaceLeft(), "failed import must not advance")
	dev.failWrite = false
	require.NoError(t, st.Import(seg, []byte{1, 2}))

	dev.failRead = true
	require.ErrorIs(t, st.Export(seg, make([]byte, 2)), ErrMediumFailure)
}

func TestStore_CorruptHeader(t *testing.T) {
	st, dev := newTestStore(t)
	seg, err := st.Allocate(0x80, 32)
	require.NoError(t, err)
	require.NoError(t, st.Import(seg, []byte{9}))

	require.NoError(t, dev.Erase(0x80, 1))
	require.NoError(t, dev.Write(0x80, []byte{0x42}))

	err = st.Export(seg, make([]byte, 1))
	require.ErrorIs(t, err, ErrCorrupt)
	assert.Equal(t, StatusFailed, Result(err))
	assert.Contains(t, err.Error(), "storage: export segment 0: segment header corrupt")
}

func TestStore_Neighbors(t *testing.T) {
	st, _ := newTestStore(t)

	prev, next := st.Neighbors(0x100)
	assert.Nil(t, prev)
	assert.Nil(t, next)

	a, err := st.Allocate(0x000, 0x80)
	require.NoError(t, err)
	b, err := st.Allocate(0x200, 0x80)
	require.NoError(t, err)

	prev, next = st.Neighbors(0x100)
	assert.Same(t, a, prev)
	assert.Same(t, b, next)

	prev, next = st.Neighbors(0x200)
	assert.Same(t, b, prev)
	assert.Nil(t, next)

	prev, next = st.Neighbors(0)
	assert.Same(t, a, prev)
	assert.Same(t, b, next)
}

func TestStore_StatsAndGaps(t *testing.T) {
	st, _ := newTestStore(t)

	assert.Equal(t, []flash.Region{testRegion}, st.Gaps())

	a, err := st.Allocate(0x100, 0x100)
	require.NoError(t, err)
	_, err = st.Allocate(0x300, 0x80)
	require.NoError(t, err)
	require.NoError(t, st.Import(a, make([]byte, 20)))

	stats := st.Stats()
	assert.Equal(t, Stats{Active: 2, Reserved: 0x180, Written: 20, Free: 2048 - 0x180}, stats)

	assert.Equal(t, []flash.Region{
		{Start: 0x000, Size: 0x100},
		{Start: 0x200, Size: 0x100},
		{Start: 0x380, Size: 0x800 - 0x380},
	}, st.Gaps())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "error", StatusError.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "status(9)", Status(9).String())
	assert.Equal(t, StatusOK, Result(nil))
}

func TestState_ConsistentUnderConcurrentImport(t *testing.T) {
	st, _ := newTestStore(t)
	seg, err := st.Allocate(0x100, 129)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 128 {
			if err := st.Import(seg, []byte{0x5A}); err != nil {
				t.Errorf("import: %v", err)
				return
			}
		}
	}()

	var seen []uint32
	go func() {
		defer wg.Done()
		for range 256 {
			state, err := st.State(seg)
			if err != nil {
				t.Errorf("state: %v", err)
				return
			}
			seen = append(seen, state.SpaceLeft)
		}
	}()
	wg.Wait()

	for i := 1; i < len(seen); i++ {
		assert.LessOrEqual(t, seen[i], seen[i-1], "space left never grows")
	}
	state, err := st.State(seg)
	require.NoError(t, err)
	assert.Equal(t, SegmentState{ID: 0, Address: 0x100, Size: 129, SpaceLeft: 0}, state)

	require.NoError(t, st.Release(seg))
	_, err = st.State(seg)
	require.ErrorIs(t, err, ErrSegmentInactive)
	_, err = st.State(nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}
