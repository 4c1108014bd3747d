package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterEmptyReturnsZero(t *testing.T) {
	f := NewFilter()
	assert.Equal(t, int8(0), f.Average())
	assert.Equal(t, FilterCapacity, f.Len())
}

func TestFilterAverageIgnoresZeroSlots(t *testing.T) {
	for _, k := range []int{1, 2, 10, 63, 64} {
		f := NewFilter()
		for i := 0; i < k; i++ {
			f.Push(-60)
		}
		assert.Equal(t, int8(-60), f.Average(), "k=%d", k)
	}
}

func TestFilterAverageMixed(t *testing.T) {
	f := NewFilter()
	f.Push(-50)
	f.Push(-70)
	f.Push(0)
	f.Push(-61)
	// (-50-70-61)/3 = -60.33 -> -60
	assert.Equal(t, int8(-60), f.Average())
}

func TestFilterWraps(t *testing.T) {
	f := NewFilter()
	for i := 0; i < FilterCapacity+1; i++ {
		if i%2 == 0 {
			f.Push(10)
		} else {
			f.Push(-10)
		}
	}
	assert.Equal(t, FilterCapacity, f.Len(), "buffer wraps, never grows")
	assert.Equal(t, 1, f.Cursor())
}

func TestFilterOverwritesOldest(t *testing.T) {
	f := NewFilter()
	for i := 0; i < FilterCapacity; i++ {
		f.Push(-90)
	}
	for i := 0; i < FilterCapacity; i++ {
		f.Push(-40)
	}
	assert.Equal(t, int8(-40), f.Average())
}

func TestFilterCursorStartsAtZero(t *testing.T) {
	f := NewFilter()
	f.Push(-30)
	assert.Equal(t, 1, f.Cursor())
	f.Push(-30)
	assert.Equal(t, 2, f.Cursor())
}

func TestFilterReset(t *testing.T) {
	f := NewFilter()
	f.Push(-42)
	f.Reset()
	assert.Equal(t, int8(0), f.Average())
	assert.Equal(t, 0, f.Cursor())
}
