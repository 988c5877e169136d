package hpgp

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testPacket(msgID, reqID uint16, fragIdx, numFrags, fmsn uint8) *Packet {
	return &Packet{MsgID: msgID, ReqID: reqID, FragIdx: fragIdx, NumFrags: numFrags, Fmsn: fmsn}
}

// checkTierInvariants verifies invariants 1-4 of spec.md §3 hold for t.
func checkTierInvariants(t *testing.T, tr *tier) {
	t.Helper()
	tr.mu.Lock()
	defer tr.mu.Unlock()

	seen := make(map[int]string)
	for _, i := range tr.free {
		seen[i] = "free"
	}

	count := 0
	if tr.head == sentinel {
		assert.Equal(t, sentinel, tr.tail, "head==-1 must imply tail==-1")
	} else {
		assert.Equal(t, sentinel, tr.slots[tr.head].prev, "head's prev must be -1")
	}
	if tr.tail != sentinel {
		assert.Equal(t, sentinel, tr.slots[tr.tail].next, "tail's next must be -1")
	}

	for i := tr.head; i != sentinel; i = tr.slots[i].next {
		if _, dup := seen[i]; dup {
			t.Fatalf("slot %d appears in both free stack and occupied list", i)
		}
		seen[i] = "occupied"
		count++
		if count > len(tr.slots) {
			t.Fatalf("occupied list cycle detected")
		}
	}

	assert.Equal(t, len(tr.slots), len(seen), "every index must appear in exactly one place")
	assert.Equal(t, len(tr.slots), len(tr.free)+count, "free + occupied must equal capacity")
}

func TestRXDBInvariantsUnderRandomOps(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(3, 12).Draw(rt, "capacity")
		tr := newTier(capacity, false)

		ops := rapid.SliceOfN(rapid.IntRange(0, 1), 0, 60).Draw(rt, "ops")
		reqID := uint16(0)
		for _, op := range ops {
			if op == 0 {
				reqID++
				_ = tr.push(testPacket(1, reqID, 0, 1, 0))
			} else {
				_, _ = tr.findAndPop(1, reqID)
			}
			checkTierInvariants(t, tr)
		}
	})
}

func TestRXDBFIFOMatch(t *testing.T) {
	tr := newTier(4, false)
	p1 := testPacket(5, 100, 0, 1, 0)
	p2 := testPacket(5, 100, 0, 1, 0)

	require.NoError(t, tr.push(p1))
	require.NoError(t, tr.push(p2))

	got1, err := tr.findAndPop(5, 100)
	require.NoError(t, err)
	assert.Same(t, p1, got1)

	got2, err := tr.findAndPop(5, 100)
	require.NoError(t, err)
	assert.Same(t, p2, got2)

	_, err = tr.findAndPop(5, 100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRXDBPushFullReturnsNoMemory(t *testing.T) {
	tr := newTier(2, false)
	require.NoError(t, tr.push(testPacket(1, 1, 0, 1, 0)))
	require.NoError(t, tr.push(testPacket(1, 2, 0, 1, 0)))
	err := tr.push(testPacket(1, 3, 0, 1, 0))
	assert.ErrorIs(t, err, ErrNoMemory)
}

func TestRXDBFragmentReassemblyOrder(t *testing.T) {
	tr := newTier(8, false)
	const msgID = uint16(7)
	const fmsn = uint8(3)
	const numFrags = uint8(4)

	// Push out of order: 2, 0, 3, 1.
	order := []uint8{2, 0, 3, 1}
	for _, idx := range order {
		pkt := testPacket(msgID, 0, idx, numFrags, fmsn)
		if idx == 0 {
			pkt.ReqID = 42
		}
		require.NoError(t, tr.push(pkt))
	}

	// Drain by (req_id, frag_idx=0..N-1, fmsn).
	first, err := tr.findAndPopFragment(msgID, 42, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), first.FragIdx)

	for f := uint8(1); f < numFrags; f++ {
		pkt, err := tr.findAndPopFragment(msgID, 0, f, fmsn)
		require.NoError(t, err)
		assert.Equal(t, f, pkt.FragIdx)
	}

	checkTierInvariants(t, tr)
	assert.Equal(t, 8, len(tr.free), "tier must be empty after draining all fragments")
}

func TestRXDBFindReqIDOfSeriesLastMatchWins(t *testing.T) {
	tr := newTier(8, false)
	const msgID = uint16(9)
	const fmsn = uint8(1)

	require.NoError(t, tr.push(testPacket(msgID, 10, 0, 2, fmsn)))
	require.NoError(t, tr.push(testPacket(msgID, 20, 0, 2, fmsn)))

	// The implementation intentionally keeps scanning past the first
	// match, so the later insertion's req_id wins.
	got, err := tr.findReqIDOfSeries(msgID, fmsn)
	require.NoError(t, err)
	assert.Equal(t, uint16(20), got)
}

func TestRXDBTTLSweep(t *testing.T) {
	origNow := nowSeconds
	var fakeNow int64 = 1000
	nowSeconds = func() int64 { return fakeNow }
	defer func() { nowSeconds = origNow }()

	arena := NewArena(make([]byte, DefaultArenaSize))
	db, err := NewRXDatabase(arena, DefaultArenaSize, nil, nil)
	require.NoError(t, err)
	defer db.Close()

	pkt := testPacket(indID(0x1000), 1, 0, 1, 0)
	require.NoError(t, db.Push(pkt))

	// Before TTL elapses, still present.
	_, err = db.indication.findAndPop(pkt.MsgID, pkt.ReqID)
	require.NoError(t, err, "packet must be present before TTL elapses")
	require.NoError(t, db.Push(pkt)) // re-push since findAndPop removed it

	fakeNow += int64(indicationTTL/time.Second) + 1
	// The cleaner ticks on db.cleanerRate (cleanerSleep, 1s); wait past one
	// full tick so the sweep has actually run against the advanced fakeNow.
	time.Sleep(cleanerSleep + 200*time.Millisecond)

	_, err = db.indication.findAndPop(pkt.MsgID, pkt.ReqID)
	assert.ErrorIs(t, err, ErrNotFound, "packet must be evicted once TTL + cleaner period elapses")
}

func TestRXDBSlotBudgetRejectsTooSmallArena(t *testing.T) {
	_, _, err := rxDBSlotBudget(10)
	assert.Error(t, err)
}

func TestRXDBSlotBudgetSplitsProportionally(t *testing.T) {
	mainCap, indCap, err := rxDBSlotBudget(DefaultArenaSize)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, mainCap, minMainSlots)
	assert.GreaterOrEqual(t, indCap, minIndicationSlots)
	assert.Greater(t, mainCap, indCap, fmt.Sprintf("main (%d) should get the larger share of a %d-byte arena", mainCap, DefaultArenaSize))
}

func TestRXDBTierRouting(t *testing.T) {
	arena := NewArena(make([]byte, DefaultArenaSize))
	db, err := NewRXDatabase(arena, DefaultArenaSize, nil, nil)
	require.NoError(t, err)
	defer db.Close()

	mainMsg := testPacket(cnfID(0x1000), 1, 0, 1, 0)
	require.NoError(t, db.Push(mainMsg))
	_, err = db.main.findAndPop(mainMsg.MsgID, mainMsg.ReqID)
	assert.NoError(t, err, "non-indication msg_id must route to the main tier")

	indMsg := testPacket(indID(0x1000), 2, 0, 1, 0)
	require.NoError(t, db.Push(indMsg))
	_, err = db.indication.findAndPop(indMsg.MsgID, indMsg.ReqID)
	assert.NoError(t, err, "IND-class msg_id must route to the indication tier")

	dlinkMsg := testPacket(DLinkReadyInd, 3, 0, 1, 0)
	require.NoError(t, db.Push(dlinkMsg))
	_, err = db.indication.findAndPop(dlinkMsg.MsgID, dlinkMsg.ReqID)
	assert.NoError(t, err, "D_LINK_READY_IND must route to the indication tier despite its REQ class bits")
}
