package hpgp

import "time"

// cleanerLoop ages out stale indications. Grounded on
// HLB_helper.c's HLB_cleaner_thread_loop: a periodic wake (here a Go
// ticker standing in for the original's condition-variable timed wait,
// per the Design Notes' preference for message passing over raw condvars)
// followed by a mutex-guarded sweep of the occupied list.
func (db *RXDatabase) cleanerLoop() {
	defer close(db.doneCh)

	ticker := time.NewTicker(db.cleanerRate)
	defer ticker.Stop()

	for {
		select {
		case <-db.stopCh:
			return
		case <-ticker.C:
			db.sweepIndication()
		}
	}
}

// sweepIndication evicts every indication-tier slot whose timestamp plus
// the TTL has elapsed. The step variable captures next before
// unlinkAndFreeLocked mutates the slot, so removing the current index
// mid-walk is safe.
func (db *RXDatabase) sweepIndication() {
	t := db.indication
	t.mu.Lock()
	defer t.mu.Unlock()

	now := nowSeconds()
	ttlSecs := int64(db.ttl / time.Second)

	i := t.head
	for i != sentinel {
		next := t.slots[i].next
		if t.slots[i].timestamp+ttlSecs <= now {
			t.unlinkAndFreeLocked(i)
			db.metrics.IncrementEvicted()
		}
		i = next
	}
}
