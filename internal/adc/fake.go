package adc

// FakeSource is a test double that fills buffers from scripted samples
// synchronously. Filled buffers collect in Completed unless OnDone is set.
type FakeSource struct {
	// Samples are consumed one per Trigger; the last repeats.
	Samples [][Channels]int16

	// QueueError and TriggerError, if set, are returned instead.
	QueueError   error
	TriggerError error

	// OnDone receives filled buffers when set.
	OnDone func(*Buffer)

	// Completed holds filled buffers when OnDone is nil.
	Completed []*Buffer

	// Queued and Triggers count calls that succeeded.
	Queued   int
	Triggers int

	Closed bool

	index int
	q     queue
}

// NewFakeSource creates a FakeSource with the given samples.
func NewFakeSource(samples ...[Channels]int16) *FakeSource {
	return &FakeSource{Samples: samples}
}

// Queue adds buf to the queue.
func (f *FakeSource) Queue(buf *Buffer) error {
	if f.QueueError != nil {
		return f.QueueError
	}
	if err := f.q.push(buf); err != nil {
		return err
	}
	f.Queued++
	return nil
}

// Trigger fills the oldest queued buffer with the next sample.
func (f *FakeSource) Trigger() error {
	if f.TriggerError != nil {
		return f.TriggerError
	}
	buf, err := f.q.pop()
	if err != nil {
		return err
	}
	f.Triggers++
	if len(f.Samples) > 0 {
		buf.Raw = f.Samples[f.index]
		if f.index < len(f.Samples)-1 {
			f.index++
		}
	}
	if f.OnDone != nil {
		f.OnDone(buf)
	} else {
		f.Completed = append(f.Completed, buf)
	}
	return nil
}

// Pending returns the number of queued buffers.
func (f *FakeSource) Pending() int {
	return f.q.len()
}

// Take removes and returns the oldest completed buffer, or nil.
func (f *FakeSource) Take() *Buffer {
	if len(f.Completed) == 0 {
		return nil
	}
	b := f.Completed[0]
	f.Completed = f.Completed[1:]
	return b
}

// Close marks the source closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	f.q.close()
	return nil
}
