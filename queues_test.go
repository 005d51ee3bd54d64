package dcp

import "testing"

func seg(sn uint32) *Segment { return &Segment{SN: sn} }

func TestSegQueuePushPopFIFO(t *testing.T) {
	var q segQueue
	q.PushBack(seg(1))
	q.PushBack(seg(2))
	q.PushBack(seg(3))

	for _, want := range []uint32{1, 2, 3} {
		got := q.PopFront()
		if got == nil || got.SN != want {
			t.Fatalf("PopFront() = %v, want SN=%d", got, want)
		}
	}
	if q.PopFront() != nil {
		t.Fatal("expected empty queue")
	}
}

func TestEvictBeforeDropsAcknowledgedPrefix(t *testing.T) {
	var q segQueue
	q.PushBack(seg(10))
	q.PushBack(seg(11))
	q.PushBack(seg(12))

	q.evictBefore(12)
	if q.Len() != 1 || q.Front().SN != 12 {
		t.Fatalf("after evictBefore(12): len=%d front=%v", q.Len(), q.Front())
	}
}

func TestEvictBeforeNoOpWhenNothingAcked(t *testing.T) {
	var q segQueue
	q.PushBack(seg(5))
	q.evictBefore(5)
	if q.Len() != 1 {
		t.Fatalf("evictBefore(5) should not evict SN==una (una is exclusive lower bound), len=%d", q.Len())
	}
}

func TestFastAckIncrementsMatchingSegmentOnly(t *testing.T) {
	var q segQueue
	a, b, c := seg(1), seg(2), seg(3)
	q.PushBack(a)
	q.PushBack(b)
	q.PushBack(c)

	q.fastAck(2)
	if a.FastAck != 0 || b.FastAck != 1 || c.FastAck != 0 {
		t.Fatalf("fastAck(2): a=%d b=%d c=%d", a.FastAck, b.FastAck, c.FastAck)
	}

	q.fastAck(99) // no match: scan passes every entry silently
	if a.FastAck != 0 || b.FastAck != 1 || c.FastAck != 0 {
		t.Fatalf("fastAck(99) should be a no-op: a=%d b=%d c=%d", a.FastAck, b.FastAck, c.FastAck)
	}
}

func TestInsertOrderedKeepsAscendingOrder(t *testing.T) {
	var q segQueue
	for _, sn := range []uint32{5, 1, 3, 4, 2} {
		if !q.insertOrdered(seg(sn)) {
			t.Fatalf("insertOrdered(%d) unexpectedly rejected", sn)
		}
	}
	for i, s := range q.segs {
		if s.SN != uint32(i+1) {
			t.Fatalf("segs[%d].SN = %d, want %d", i, s.SN, i+1)
		}
	}
}

func TestInsertOrderedRejectsDuplicate(t *testing.T) {
	var q segQueue
	q.insertOrdered(seg(4))
	q.insertOrdered(seg(7))
	if q.insertOrdered(seg(4)) {
		t.Fatal("duplicate SN should be rejected")
	}
	if q.Len() != 2 {
		t.Fatalf("len = %d, want 2", q.Len())
	}
}

func TestPopFrontIfSNOnlyMatchesExactFront(t *testing.T) {
	var q segQueue
	q.PushBack(seg(9))

	if got := q.popFrontIfSN(8); got != nil {
		t.Fatalf("popFrontIfSN(8) = %v, want nil (front is SN=9)", got)
	}
	if q.Len() != 1 {
		t.Fatal("mismatched popFrontIfSN must not consume the front")
	}
	got := q.popFrontIfSN(9)
	if got == nil || got.SN != 9 {
		t.Fatalf("popFrontIfSN(9) = %v, want SN=9", got)
	}
	if q.Len() != 0 {
		t.Fatal("expected queue drained")
	}
}
