package kafka

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

// offsetTracker orders commits per partition. A message can only be
// committed once every earlier fetched message of its partition is done.
type offsetTracker struct {
	mu    sync.Mutex
	parts map[int]*partitionOffsets
}

type partitionOffsets struct {
	inflight []kafka.Message // fetch order
	done     map[int64]bool
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{parts: make(map[int]*partitionOffsets)}
}

// track registers msg as in flight. Must be called in fetch order.
func (t *offsetTracker) track(msg kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.parts[msg.Partition]
	if !ok {
		p = &partitionOffsets{done: make(map[int64]bool)}
		t.parts[msg.Partition] = p
	}
	p.inflight = append(p.inflight, msg)
}

// complete marks msg done and returns the highest message that is now safe
// to commit, if the contiguous done prefix of its partition grew.
func (t *offsetTracker) complete(msg kafka.Message) (kafka.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.parts[msg.Partition]
	if !ok {
		return kafka.Message{}, false
	}
	p.done[msg.Offset] = true

	var last kafka.Message
	advanced := false
	for len(p.inflight) > 0 && p.done[p.inflight[0].Offset] {
		last = p.inflight[0]
		delete(p.done, last.Offset)
		p.inflight = p.inflight[1:]
		advanced = true
	}
	return last, advanced
}

