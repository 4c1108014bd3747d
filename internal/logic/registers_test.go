package logic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boardOut1() PinTable {
	t := EmptyPinTable()
	t[0] = 28
	return t
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		old, new byte
		want     []BitChange
	}{
		{"equal", 0x5A, 0x5A, nil},
		{"single set", 0x00, 0x01, []BitChange{{Bit: 0, Level: true}}},
		{"single clear", 0x80, 0x00, []BitChange{{Bit: 7, Level: false}}},
		{"mixed", 0b1010_0001, 0b0010_0110, []BitChange{
			{Bit: 0, Level: false},
			{Bit: 1, Level: true},
			{Bit: 2, Level: true},
			{Bit: 7, Level: false},
		}},
		{"all", 0x00, 0xFF, []BitChange{
			{0, true}, {1, true}, {2, true}, {3, true},
			{4, true}, {5, true}, {6, true}, {7, true},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Diff(tt.old, tt.new))
		})
	}
}

func TestPinTableMask(t *testing.T) {
	assert.Equal(t, byte(0), EmptyPinTable().Mask())
	assert.Equal(t, byte(0x01), boardOut1().Mask())

	tbl := EmptyPinTable()
	tbl[3] = 5
	tbl[6] = 0
	assert.Equal(t, byte(0b0100_1000), tbl.Mask())
}

func TestNewBankMasksReservedBits(t *testing.T) {
	b := NewBank(boardOut1(), EmptyPinTable(), 0xAA, 0xBB, 0xCC)
	out1, out2, in := b.Snapshot()
	assert.Equal(t, byte(0x00), out1, "0xAA has bit0 clear, every other bit is reserved")
	assert.Equal(t, byte(0xBB&BitLED), out2)
	assert.Equal(t, byte(0x00), in)
}

func TestRemoteWriteTogglesOnePin(t *testing.T) {
	b := NewBank(boardOut1(), EmptyPinTable(), 0, 0, 0)

	changes, err := b.ApplyWrite(RegOut1, 0b0000_0001)
	require.NoError(t, err)
	assert.Equal(t, []PinChange{{Register: RegOut1, Bit: 0, Pin: 28, Level: true}}, changes)

	v, err := b.Value(RegOut1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), v)

	// Repeat is a no-op on pins
	changes, err = b.ApplyWrite(RegOut1, 0b0000_0001)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestRemoteWriteIgnoresReservedBits(t *testing.T) {
	b := NewBank(boardOut1(), EmptyPinTable(), 0, 0, 0)

	changes, err := b.ApplyWrite(RegOut1, 0xFE)
	require.NoError(t, err)
	assert.Empty(t, changes)

	v, _ := b.Value(RegOut1)
	assert.Equal(t, byte(0), v, "reserved bits must remain zero")
}

func TestRemoteWriteClearsPin(t *testing.T) {
	b := NewBank(boardOut1(), EmptyPinTable(), 0x01, 0, 0)

	changes, err := b.ApplyWrite(RegOut1, 0x00)
	require.NoError(t, err)
	assert.Equal(t, []PinChange{{Register: RegOut1, Bit: 0, Pin: 28, Level: false}}, changes)
}

func TestRemoteWriteOut2KeepsLED(t *testing.T) {
	out2 := EmptyPinTable()
	out2[1] = 17
	b := NewBank(boardOut1(), out2, 0, 0, 0)
	b.SetLED(true)

	changes, err := b.ApplyWrite(RegOut2, 0x02)
	require.NoError(t, err)
	assert.Equal(t, []PinChange{{Register: RegOut2, Bit: 1, Pin: 17, Level: true}}, changes)

	v, _ := b.Value(RegOut2)
	assert.Equal(t, BitLED|0x02, v)

	// A remote write cannot switch the LED off
	changes, err = b.ApplyWrite(RegOut2, 0x00)
	require.NoError(t, err)
	assert.Len(t, changes, 1)
	assert.True(t, b.LED())
}

func TestRevertRestoresBit(t *testing.T) {
	out2 := EmptyPinTable()
	out2[1] = 17
	b := NewBank(boardOut1(), out2, 0, 0, 0)
	b.SetLED(true)

	changes, err := b.ApplyWrite(RegOut1, 0x01)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	b.Revert(changes[0])
	v, _ := b.Value(RegOut1)
	assert.Equal(t, byte(0x00), v)

	// Retrying the same write produces the change again
	changes, err = b.ApplyWrite(RegOut1, 0x01)
	require.NoError(t, err)
	assert.Len(t, changes, 1)

	changes, err = b.ApplyWrite(RegOut2, 0x02)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	b.Revert(changes[0])
	v, _ = b.Value(RegOut2)
	assert.Equal(t, BitLED, v, "revert leaves the LED bit alone")
}

func TestRemoteWriteUnknownRegister(t *testing.T) {
	b := NewBank(boardOut1(), EmptyPinTable(), 0, 0, 0)

	_, err := b.ApplyWrite(RegIn, 0x01)
	assert.True(t, errors.Is(err, ErrUnknownRegister))

	_, err = b.ApplyWrite(Register(9), 0x01)
	assert.True(t, errors.Is(err, ErrUnknownRegister))

	_, err = b.Value(Register(9))
	assert.True(t, errors.Is(err, ErrUnknownRegister))
}

func TestRecordPressAlternates(t *testing.T) {
	b := NewBank(boardOut1(), EmptyPinTable(), 0, 0, 0)

	assert.Equal(t, BitShortPress, b.RecordPress(PressShort))
	assert.Equal(t, byte(0), b.RecordPress(PressShort))
	assert.Equal(t, BitShortPress, b.RecordPress(PressShort))

	// Long clears short
	assert.Equal(t, BitLongPress, b.RecordPress(PressLong))
	assert.Equal(t, byte(0), b.RecordPress(PressLong))
	assert.Equal(t, BitLongPress, b.RecordPress(PressLong))

	// Short clears long
	assert.Equal(t, BitShortPress, b.RecordPress(PressShort))

	assert.Equal(t, BitShortPress, b.RecordPress(PressNone), "PressNone leaves the register alone")
}

func TestRecordPressMutuallyExclusive(t *testing.T) {
	b := NewBank(boardOut1(), EmptyPinTable(), 0, 0, 0)
	seq := []PressKind{PressShort, PressLong, PressLong, PressShort, PressShort, PressLong}
	for _, k := range seq {
		in := b.RecordPress(k)
		assert.False(t, in&BitShortPress != 0 && in&BitLongPress != 0, "short and long bits both set after %s", k)
	}
}

func TestSetLED(t *testing.T) {
	b := NewBank(boardOut1(), EmptyPinTable(), 0, 0, 0)
	assert.False(t, b.LED())
	b.SetLED(true)
	assert.True(t, b.LED())
	_, out2, _ := b.Snapshot()
	assert.Equal(t, BitLED, out2)
	b.SetLED(false)
	assert.False(t, b.LED())
}
