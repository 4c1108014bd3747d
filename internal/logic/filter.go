package logic

// FilterCapacity is the number of RSSI samples kept by the filter.
const FilterCapacity = 64

// Filter is a fixed ring of signed samples producing a running average over
// the non-zero slots. The ring is always full: it starts zeroed and the oldest
// slot is overwritten on each push.
type Filter struct {
	buf    [FilterCapacity]int8
	cursor int
}

// NewFilter returns a zeroed filter.
func NewFilter() *Filter {
	return &Filter{}
}

// Push overwrites the slot at the cursor and advances it.
func (f *Filter) Push(sample int8) {
	f.buf[f.cursor] = sample
	f.cursor = (f.cursor + 1) % FilterCapacity
}

// Average returns the sum of all slots divided by the number of non-zero
// slots, truncated toward zero. An all-zero ring returns 0.
func (f *Filter) Average() int8 {
	var sum int32
	var n int32
	for _, v := range f.buf {
		sum += int32(v)
		if v != 0 {
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return int8(sum / n)
}

// Len is always FilterCapacity.
func (f *Filter) Len() int {
	return len(f.buf)
}

// Cursor returns the next slot to be written.
func (f *Filter) Cursor() int {
	return f.cursor
}

// Reset zeroes the ring.
func (f *Filter) Reset() {
	f.buf = [FilterCapacity]int8{}
	f.cursor = 0
}
