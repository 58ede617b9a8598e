package sensors

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice replays scripted reads, then reports timeouts.
type fakeDevice struct {
	mu      sync.Mutex
	reads   []fakeRead
	writes  [][]byte
	writeOK bool
	closed  bool
}

type fakeRead struct {
	data []byte
	err  error
}

func (d *fakeDevice) ReadWithTimeout(p []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	if len(d.reads) == 0 {
		d.mu.Unlock()
		time.Sleep(timeout)
		return 0, ErrTimeout
	}
	r := d.reads[0]
	d.reads = d.reads[1:]
	d.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	return copy(p, r.data), nil
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, append([]byte(nil), p...))
	if !d.writeOK {
		return 0, errors.New("pipe error")
	}
	return len(p), nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) written() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.writes...)
}

func packet(right1, right2, top1, top2, roll1, roll2 int16, ts uint32) []byte {
	buf := make([]byte, PacketSize)
	le := binary.LittleEndian
	le.PutUint32(buf[16:], ts)
	le.PutUint16(buf[20:], uint16(right1))
	le.PutUint16(buf[22:], uint16(top1))
	le.PutUint16(buf[24:], uint16(roll1))
	le.PutUint16(buf[36:], uint16(right2))
	le.PutUint16(buf[38:], uint16(top2))
	le.PutUint16(buf[40:], uint16(roll2))
	return buf
}

func TestDecodePacket(t *testing.T) {
	raw, ok := DecodePacket(packet(100, 50, -20, -30, 7, -1, 123456))
	require.True(t, ok)
	assert.Equal(t, RawPacket{Right: 150, Top: -50, Roll: 6, DeviceTime: 123456}, raw)

	right, top, roll := raw.Rates()
	assert.InDelta(t, -150*RateScale, right, 1e-12)
	assert.InDelta(t, -50*RateScale, top, 1e-12)
	assert.InDelta(t, -6*RateScale, roll, 1e-12)

	// extremes do not overflow when summed
	raw, ok = DecodePacket(packet(-32768, -32768, 32767, 32767, 0, 0, 0))
	require.True(t, ok)
	assert.Equal(t, int32(-65536), raw.Right)
	assert.Equal(t, int32(65534), raw.Top)

	_, ok = DecodePacket(append(packet(0, 0, 0, 0, 0, 0, 0), 0))
	assert.True(t, ok)
	_, ok = DecodePacket(make([]byte, 32))
	assert.False(t, ok)
	_, ok = DecodePacket(nil)
	assert.False(t, ok)
}

func TestSplitModeCommandShape(t *testing.T) {
	on := SplitModeCommand(true)
	off := SplitModeCommand(false)
	require.Len(t, on, 8)
	require.Len(t, off, 8)
	assert.Equal(t, []byte{0x23, 0x00, 0xaa, 0x04}, on[:4])
	assert.Equal(t, on[:4], off[:4])
	assert.Equal(t, byte(0x01), on[4])
	assert.Equal(t, byte(0x00), off[4])
	assert.Equal(t, []byte{0, 0, 0}, on[5:])
	assert.Equal(t, on[5:], off[5:])
}

func TestMailboxLatestWins(t *testing.T) {
	m := NewMailbox()
	for i := range 5 {
		m.Publish(Sample{Micros: int64(i)})
	}
	s, err := m.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), s.Micros)
	assert.Equal(t, uint64(4), m.Dropped())
	assert.Equal(t, uint64(5), m.Published())

	_, ok := m.TryNext()
	assert.False(t, ok)
}

func TestMailboxNextHonorsContextAndClose(t *testing.T) {
	m := NewMailbox()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	m.Publish(Sample{Micros: 9})
	m.Close()
	s, err := m.Next(context.Background())
	require.NoError(t, err, "pending sample survives close")
	assert.Equal(t, int64(9), s.Micros)

	_, err = m.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	m.Publish(Sample{Micros: 10})
	_, err = m.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMailboxWakesBlockedConsumer(t *testing.T) {
	m := NewMailbox()
	got := make(chan Sample, 1)
	go func() {
		s, err := m.Next(context.Background())
		if err == nil {
			got <- s
		}
	}()
	time.Sleep(10 * time.Millisecond)
	m.Publish(Sample{RightRate: 1.5})
	select {
	case s := <-got:
		assert.Equal(t, 1.5, s.RightRate)
	case <-time.After(time.Second):
		t.Fatal("consumer was not woken")
	}
}

func TestChannelReadLoop(t *testing.T) {
	sensor := &fakeDevice{reads: []fakeRead{
		{data: make([]byte, 10)}, // short packet, discarded
		{data: packet(10, 10, 0, 0, 0, 0, 1000)},
	}}
	control := &fakeDevice{writeOK: true}
	c := NewChannel(sensor, control)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	s, err := c.Samples().Next(ctx)
	require.NoError(t, err)
	assert.InDelta(t, -20*RateScale, s.RightRate, 1e-12)
	assert.GreaterOrEqual(t, s.Micros, int64(0))

	require.Eventually(t, func() bool { return c.Stats().Discarded == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), c.Stats().Packets)

	require.NoError(t, c.Close())
	select {
	case <-c.Done():
	default:
		t.Fatal("read loop still running after Close")
	}
	assert.NoError(t, c.Err())
	assert.True(t, sensor.closed)
	assert.True(t, control.closed)
	// split screen is switched off on close
	assert.Equal(t, [][]byte{SplitModeCommand(false)}, control.written())
}

func TestChannelStopsOnReadError(t *testing.T) {
	ioErr := errors.New("device unplugged")
	sensor := &fakeDevice{reads: []fakeRead{
		{data: packet(1, 1, 1, 1, 1, 1, 0)},
		{err: ioErr},
		{data: packet(2, 2, 2, 2, 2, 2, 0)},
	}}
	c := NewChannel(sensor, nil)
	c.Start(context.Background())
	t.Cleanup(func() { _ = c.Close() })

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("read loop did not stop on I/O error")
	}
	assert.ErrorIs(t, c.Err(), ioErr)
	assert.Equal(t, uint64(1), c.Stats().Packets)

	_, err := c.Samples().Next(context.Background())
	require.NoError(t, err)
	_, err = c.Samples().Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestChannelDeviceClock(t *testing.T) {
	sensor := &fakeDevice{reads: []fakeRead{
		{data: packet(0, 0, 0, 0, 0, 0, 0xFFFFFF00)},
		{data: packet(0, 0, 0, 0, 0, 0, 0x00000100)},
	}}
	c := NewChannel(sensor, nil, WithDeviceClock(true))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var last Sample
	c.Start(ctx)
	require.Eventually(t, func() bool {
		s, ok := c.Samples().TryNext()
		if ok {
			last = s
		}
		return c.Stats().Packets == 2 && last.Micros == 0x200
	}, time.Second, time.Millisecond)
	require.NoError(t, c.Close())
}

func TestSetSplitModeReportsFailure(t *testing.T) {
	ok := &fakeDevice{writeOK: true}
	c := NewController(ok)
	assert.True(t, c.SetSplitMode(true))
	assert.Equal(t, [][]byte{SplitModeCommand(true)}, ok.written())

	broken := NewController(&fakeDevice{})
	assert.False(t, broken.SetSplitMode(true))

	none := NewChannel(&fakeDevice{}, nil)
	assert.False(t, none.SetSplitMode(true))
	require.NoError(t, none.Close())
}
