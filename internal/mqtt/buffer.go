package mqtt

import "github.com/sirupsen/logrus"

// DefaultBufferSize is the number of messages kept while disconnected.
const DefaultBufferSize = 256

// bufferedMsg is a serialized publish waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds publishes made while the broker is unreachable. When full it
// evicts the oldest unretained message, so lifecycle events outlive
// characteristic traffic; only a box of retained messages drops its oldest.
// Not safe for concurrent use; RealPublisher holds its mutex.
type outbox struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int
	warned   bool
	log      logrus.FieldLogger
}

func newOutbox(capacity int, log logrus.FieldLogger) *outbox {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &outbox{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
		log:      log,
	}
}

func (o *outbox) push(msg bufferedMsg) {
	if len(o.msgs) == o.capacity {
		o.evict()
	}
	o.msgs = append(o.msgs, msg)
}

func (o *outbox) evict() {
	victim := 0
	for i, m := range o.msgs {
		if !m.retained {
			victim = i
			break
		}
	}
	o.msgs = append(o.msgs[:victim], o.msgs[victim+1:]...)
	o.dropped++
	if !o.warned {
		o.log.WithField("capacity", o.capacity).Warn("outbox full, dropping oldest")
		o.warned = true
	}
}

// drain returns every held message oldest first and empties the box.
func (o *outbox) drain() []bufferedMsg {
	if len(o.msgs) == 0 {
		return nil
	}
	out := o.msgs
	o.msgs = make([]bufferedMsg, 0, o.capacity)
	o.warned = false
	return out
}

func (o *outbox) len() int {
	return len(o.msgs)
}
