package capture

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/camview/camview/pkg/frame"
)

type countObserver struct{ captured, dropped atomic.Int32 }

func (o *countObserver) Captured() { o.captured.Add(1) }
func (o *countObserver) Dropped()  { o.dropped.Add(1) }

func at(ts int64) frame.VideoFrame { return frame.VideoFrame{Timestamp: ts} }

func drain(q *queue) (out []int64) {
	for {
		select {
		case f := <-q.ch:
			out = append(out, f.Timestamp)
		default:
			return
		}
	}
}

func TestQueueDropPolicy(t *testing.T) {
	tests := []struct {
		policy DropPolicy
		size   int
		push   []int64
		want   []int64
		drops  uint64
	}{
		{policy: DropOldest, size: 2, push: []int64{1, 2, 3, 4}, want: []int64{3, 4}, drops: 2},
		{policy: DropNewest, size: 2, push: []int64{1, 2, 3, 4}, want: []int64{1, 2}, drops: 2},
		{policy: DropOldest, size: 1, push: []int64{1, 2}, want: []int64{2}, drops: 1},
		{policy: DropOldest, size: 0, push: []int64{5}, want: []int64{5}},
		{policy: DropNewest, size: 3, push: []int64{1, 1, 2}, want: []int64{1, 1, 2}},
	}
	for _, tt := range tests {
		obs := &countObserver{}
		q := newQueue(tt.size, tt.policy, obs)
		for _, ts := range tt.push {
			q.push(at(ts))
		}
		got := drain(q)
		if len(got) != len(tt.want) {
			t.Fatalf("%v/%v: got %v, want %v", tt.policy, tt.size, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%v/%v: got %v, want %v", tt.policy, tt.size, got, tt.want)
				break
			}
		}
		if s := q.stats(); s.Dropped != tt.drops || uint64(obs.dropped.Load()) != tt.drops {
			t.Errorf("%v/%v: drops %+v, observed %v", tt.policy, tt.size, s, obs.dropped.Load())
		}
	}
}

func TestQueueStale(t *testing.T) {
	q := newQueue(4, DropOldest, noopObserver{})
	for _, ts := range []int64{10, 20, 15, 20, 30} {
		q.push(at(ts))
	}
	got := drain(q)
	if len(got) != 4 || got[2] != 20 || got[3] != 30 {
		t.Errorf("got %v", got)
	}
	if s := q.stats(); s.Stale != 1 || s.Dropped != 1 || s.Enqueued != 4 {
		t.Errorf("stats %+v", s)
	}
}

func TestQueueClosed(t *testing.T) {
	q := newQueue(1, DropOldest, noopObserver{})
	q.close()
	q.close()
	q.push(at(1))
	if _, ok := <-q.ch; ok {
		t.Errorf("frame after close")
	}
}

// The producer must never block, whatever the consumer does.
func TestQueueConcurrent(t *testing.T) {
	q := newQueue(2, DropOldest, noopObserver{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(0); i < 10000; i++ {
			q.push(at(i))
		}
		q.close()
	}()

	last := int64(-1)
	for f := range q.ch {
		if f.Timestamp <= last {
			t.Fatalf("out of order: %v after %v", f.Timestamp, last)
		}
		last = f.Timestamp
	}
	wg.Wait()
	if s := q.stats(); s.Enqueued+s.Dropped < 10000 {
		t.Errorf("stats %+v", s)
	}
	if last != 9999 {
		t.Errorf("the last frame is lost: %v", last)
	}
}

func TestParseDropPolicy(t *testing.T) {
	for in, want := range map[string]DropPolicy{"": DropOldest, "oldest": DropOldest, " Newest": DropNewest} {
		if got, err := ParseDropPolicy(in); err != nil || got != want {
			t.Errorf("%q: %v, %v", in, got, err)
		}
	}
	if _, err := ParseDropPolicy("random"); err == nil {
		t.Errorf("expected error")
	}
}

func BenchmarkQueuePush(b *testing.B) {
	q := newQueue(2, DropOldest, noopObserver{})
	f := frame.New(frame.FormatNV12, 640, 480)
	for i := 0; i < b.N; i++ {
		f.Timestamp = int64(i)
		q.push(f)
	}
}
