package hpgp

import (
	"fmt"
	"sync"
	"time"
)

// Sizing and timing constants from spec.md §6.
const (
	mainDBSizeProportion = 0.8
	minMainSlots         = 5
	minIndicationSlots   = 2
	indicationTTL        = 5 * time.Second
	cleanerSleep         = 1 * time.Second
)

// Per-slot accounting cost used only to turn an arena byte budget into a
// slot count (see sizing note below). Values are a deliberately generous
// estimate of what a slot's bookkeeping would cost if it were carved out of
// raw memory: a packet reference, two link-list indices, and (for the
// indication tier) a timestamp.
const (
	tierOverheadBytes   = 96 // tier struct + mutex [+ condition for indication] + stack header
	slotCostMainBytes   = 8 /*pkt ptr*/ + 16 /*prev,next*/ + 8 /*free-stack entry*/
	slotCostIndicationBytes = slotCostMainBytes + 8 /*timestamp*/
)

// slot holds one occupied-or-free entry in a tier's backing store.
type slot struct {
	pkt       *Packet
	timestamp int64 // unix seconds; indication tier only
	prev      int
	next      int
}

const sentinel = -1

// tier is the common shape shared by the main and indication RX-DB tiers,
// grounded on HLB_helper.c's rx_db_core (free-slot stack + doubly linked
// occupied list + per-tier mutex).
type tier struct {
	mu       sync.Mutex
	slots    []slot
	free     []int // LIFO: free[len-1] pops first
	head     int
	tail     int
	indication bool
}

func newTier(capacity int, indication bool) *tier {
	t := &tier{
		slots:      make([]slot, capacity),
		free:       make([]int, 0, capacity),
		head:       sentinel,
		tail:       sentinel,
		indication: indication,
	}
	// Seed the free stack so index 0 pops first (push capacity-1 down to 0).
	for i := capacity - 1; i >= 0; i-- {
		t.free = append(t.free, i)
	}
	return t
}

func (t *tier) capacity() int { return len(t.slots) }

// push inserts pkt, returning ErrNoMemory if the tier's free stack is empty.
func (t *tier) push(pkt *Packet) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pushLocked(pkt)
}

func (t *tier) pushLocked(pkt *Packet) error {
	n := len(t.free)
	if n == 0 {
		return ErrNoMemory
	}
	i := t.free[n-1]
	t.free = t.free[:n-1]

	t.slots[i] = slot{pkt: pkt, prev: t.tail, next: sentinel}
	if t.indication {
		t.slots[i].timestamp = nowSeconds()
	}
	if t.tail == sentinel {
		t.head = i
	} else {
		t.slots[t.tail].next = i
	}
	t.tail = i
	return nil
}

// unlinkAndFreeLocked removes slot i from the occupied list and returns it
// to the free stack. Caller must hold t.mu.
func (t *tier) unlinkAndFreeLocked(i int) {
	s := t.slots[i]
	if s.prev != sentinel {
		t.slots[s.prev].next = s.next
	} else {
		t.head = s.next
	}
	if s.next != sentinel {
		t.slots[s.next].prev = s.prev
	} else {
		t.tail = s.prev
	}
	t.slots[i] = slot{prev: sentinel, next: sentinel}
	t.free = append(t.free, i)
}

// matchMain implements the main-tier match predicate of spec.md §4.4:
// frag_idx and msg_id must match exactly, and either the fmsn matches (for
// fragments past the first) or the req_id matches. The two conditions form
// a disjunction, not a per-fragment-index switch, per HLB_helper.c's
// HLB_find_and_pop_fragment_from_rx_db.
func matchMain(p *Packet, msgID, reqID uint16, fragIdx, fmsn uint8) bool {
	if p.FragIdx != fragIdx || p.MsgID != msgID {
		return false
	}
	return (fragIdx > 0 && p.Fmsn == fmsn) || p.ReqID == reqID
}

// matchIndication implements the indication-tier match predicate: fragment
// fields are ignored.
func matchIndication(p *Packet, msgID, reqID uint16) bool {
	return p.MsgID == msgID && p.ReqID == reqID
}

// findAndPopFragment scans head to tail and pops the first matching slot.
// First match wins (oldest insertion wins), per spec.md §4.4.
func (t *tier) findAndPopFragment(msgID, reqID uint16, fragIdx, fmsn uint8) (*Packet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := t.head; i != sentinel; i = t.slots[i].next {
		p := t.slots[i].pkt
		var ok bool
		if t.indication {
			ok = matchIndication(p, msgID, reqID)
		} else {
			ok = matchMain(p, msgID, reqID, fragIdx, fmsn)
		}
		if ok {
			t.unlinkAndFreeLocked(i)
			return p, nil
		}
	}
	return nil, ErrNotFound
}

// findAndPop is findAndPopFragment with frag_idx=0, fmsn=0 — the
// single-fragment lookup.
func (t *tier) findAndPop(msgID, reqID uint16) (*Packet, error) {
	return t.findAndPopFragment(msgID, reqID, 0, 0)
}

// findReqIDOfSeries scans head to tail for the first fragment (frag_idx==0)
// of a series matching msgID and fmsn, returning its req_id. It does not
// remove the match.
//
// This deliberately does NOT stop at the first match: it mirrors
// HLB_helper.c's HLB_get_req_id_of_fragmented_msg, which keeps scanning
// after finding a candidate, so the last matching first-fragment in
// insertion order wins rather than the first. This is only observable when
// the first-fragment-per-series invariant (at most one live first fragment
// per (msg_id, fmsn) pair) is violated; under normal operation the two
// behave identically.
func (t *tier) findReqIDOfSeries(msgID uint16, fmsn uint8) (uint16, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	found := false
	var reqID uint16
	for i := t.head; i != sentinel; i = t.slots[i].next {
		p := t.slots[i].pkt
		if p.MsgID == msgID && p.Fmsn == fmsn && p.FragIdx == 0 {
			reqID = p.ReqID
			found = true
		}
	}
	if !found {
		return 0, ErrNotFound
	}
	return reqID, nil
}

// idEntry is a (req_id, msg_id) pair as returned by listIDs.
type idEntry struct {
	ReqID uint16
	MsgID uint16
}

// listIDs copies up to n (req_id, msg_id) pairs in insertion order.
func (t *tier) listIDs(n int) []idEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]idEntry, 0, n)
	for i := t.head; i != sentinel && len(out) < n; i = t.slots[i].next {
		out = append(out, idEntry{ReqID: t.slots[i].pkt.ReqID, MsgID: t.slots[i].pkt.MsgID})
	}
	return out
}

// list copies up to n packets in insertion order.
func (t *tier) list(n int) []*Packet {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Packet, 0, n)
	for i := t.head; i != sentinel && len(out) < n; i = t.slots[i].next {
		out = append(out, t.slots[i].pkt)
	}
	return out
}

// TimestampedPacket pairs a packet with the unix-seconds timestamp it was
// stamped with on push, as returned for the indication tier's listing
// accessor (spec.md §4.4's list_indication(out_ts_pkt[], n)).
type TimestampedPacket struct {
	Timestamp int64
	Packet    *Packet
}

// listTimestamped copies up to n (timestamp, packet) pairs in insertion
// order. Only meaningful for the indication tier, which is the only one
// that stamps timestamps on push.
func (t *tier) listTimestamped(n int) []TimestampedPacket {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TimestampedPacket, 0, n)
	for i := t.head; i != sentinel && len(out) < n; i = t.slots[i].next {
		out = append(out, TimestampedPacket{Timestamp: t.slots[i].timestamp, Packet: t.slots[i].pkt})
	}
	return out
}

// remaining reports how many free slots are left.
func (t *tier) remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.free)
}

// RXDatabase is the two-tier bounded receive store: a main tier for
// request/confirm and non-indication control traffic, and an indication
// tier with a TTL cleaner for asynchronous notifications.
//
// Grounded on source/HLB_helper.c (HLB_init_rx_db, HLB_push_to_rx_db,
// HLB_find_and_pop_fragment_from_rx_db, HLB_cleaner_thread_loop,
// HLB_free_rx_db).
type RXDatabase struct {
	main        *tier
	indication  *tier
	logger      Logger
	metrics     Metrics
	ttl         time.Duration
	cleanerRate time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// nowSeconds is a seam so tests can substitute a fake clock for the
// indication tier's timestamps; the TTL test does so, and still waits real
// time for the cleaner's ticker.
var nowSeconds = func() int64 { return time.Now().Unix() }

// rxDBSlotBudget computes (mainCapacity, indicationCapacity) from an arena
// byte budget, per the sizing formula of spec.md §4.4: split 80/20, subtract
// fixed per-tier overhead, divide the remainder by a per-slot cost.
//
// Go slices are not carved from raw memory the way the original's C arrays
// are; this accounting instead governs how many slots each tier
// preallocates (and never grows), which preserves the "bounded, fixed at
// init" property the arena-carving design exists to guarantee.
func rxDBSlotBudget(areaSize int) (mainCap, indCap int, err error) {
	if areaSize <= 0 {
		return 0, 0, fmt.Errorf("%w: non-positive arena size", ErrBadParameter)
	}
	mainBytes := int(float64(areaSize) * mainDBSizeProportion)
	indBytes := areaSize - mainBytes

	mainBytes -= tierOverheadBytes
	indBytes -= tierOverheadBytes
	if mainBytes <= 0 || indBytes <= 0 {
		return 0, 0, fmt.Errorf("%w: arena too small for rx database overhead", ErrNoMemory)
	}

	mainCap = mainBytes / slotCostMainBytes
	indCap = indBytes / slotCostIndicationBytes

	if mainCap < minMainSlots {
		return 0, 0, fmt.Errorf("%w: main tier capacity %d below minimum %d", ErrNoMemory, mainCap, minMainSlots)
	}
	if indCap < minIndicationSlots {
		return 0, 0, fmt.Errorf("%w: indication tier capacity %d below minimum %d", ErrNoMemory, indCap, minIndicationSlots)
	}
	return mainCap, indCap, nil
}

// NewRXDatabase carves an RX database out of a byte budget, accounted
// through a (arena), starting the TTL cleaner goroutine for the indication
// tier.
func NewRXDatabase(a *Arena, areaSize int, logger Logger, metrics Metrics) (*RXDatabase, error) {
	mainCap, indCap, err := rxDBSlotBudget(areaSize)
	if err != nil {
		return nil, err
	}
	if _, err := a.Alloc(areaSize); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = noopLogger{}
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}

	db := &RXDatabase{
		main:        newTier(mainCap, false),
		indication:  newTier(indCap, true),
		logger:      logger,
		metrics:     metrics,
		ttl:         indicationTTL,
		cleanerRate: cleanerSleep,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	go db.cleanerLoop()
	return db, nil
}

// tierFor returns the tier msgID routes to, per spec.md §4.4's tier-routing
// rule.
func (db *RXDatabase) tierFor(msgID uint16) *tier {
	if isIndication(msgID) {
		return db.indication
	}
	return db.main
}

// Push inserts pkt into the tier its msg_id routes to.
func (db *RXDatabase) Push(pkt *Packet) error {
	t := db.tierFor(pkt.MsgID)
	if err := t.push(pkt); err != nil {
		db.metrics.IncrementDropped()
		return err
	}
	db.metrics.IncrementPushed()
	return nil
}

// FindAndPop is the single-fragment lookup over the tier msgID routes to.
func (db *RXDatabase) FindAndPop(msgID, reqID uint16) (*Packet, error) {
	return db.tierFor(msgID).findAndPop(msgID, reqID)
}

// FindAndPopFragment is the general fragment lookup over the tier msgID
// routes to.
func (db *RXDatabase) FindAndPopFragment(msgID, reqID uint16, fragIdx, fmsn uint8) (*Packet, error) {
	return db.tierFor(msgID).findAndPopFragment(msgID, reqID, fragIdx, fmsn)
}

// FindReqIDOfSeries resolves a fragmented series' req_id from the main
// tier, by scanning for its first fragment.
func (db *RXDatabase) FindReqIDOfSeries(msgID uint16, fmsn uint8) (uint16, error) {
	return db.main.findReqIDOfSeries(msgID, fmsn)
}

// ListMainIDs copies up to n (req_id, msg_id) pairs from the main tier.
func (db *RXDatabase) ListMainIDs(n int) []idEntry { return db.main.listIDs(n) }

// ListMain copies up to n packets from the main tier.
func (db *RXDatabase) ListMain(n int) []*Packet { return db.main.list(n) }

// ListIndication copies up to n (timestamp, packet) pairs from the
// indication tier, per spec.md §4.4's list_indication(out_ts_pkt[], n).
func (db *RXDatabase) ListIndication(n int) []TimestampedPacket { return db.indication.listTimestamped(n) }

// CapacityMain returns the main tier's fixed slot count.
func (db *RXDatabase) CapacityMain() int { return db.main.capacity() }

// CapacityIndication returns the indication tier's fixed slot count.
func (db *RXDatabase) CapacityIndication() int { return db.indication.capacity() }

// RemainingIndication returns the indication tier's free slot count.
func (db *RXDatabase) RemainingIndication() int { return db.indication.remaining() }

// Close stops the TTL cleaner and waits for it to exit. It does not free
// any slot memory: the tiers' preallocated slices are reclaimed by the
// garbage collector once the RXDatabase is unreachable, and the bytes
// accounted against the arena are released with the Arena.
func (db *RXDatabase) Close() {
	db.stopOnce.Do(func() { close(db.stopCh) })
	<-db.doneCh
}
