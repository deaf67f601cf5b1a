package loopback

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPair_ReadWrite(t *testing.T) {
	a, b := Pair()
	require.NoError(t, b.SetReadTimeout(100*time.Millisecond))

	n, err := a.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	buf := make([]byte, 2)
	n, err = b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{1, 2}, buf)

	n, err = b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(3), buf[0])

	assert.Equal(t, "loopback:a", a.String())
	assert.Equal(t, uint64(3), a.BytesWritten())
	assert.Equal(t, 1, a.Writes())
}

func TestPair_ReadTimeout(t *testing.T) {
	_, b := Pair()
	require.NoError(t, b.SetReadTimeout(20*time.Millisecond))

	start := time.Now()
	n, err := b.Read(make([]byte, 1))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPair_ZeroTimeoutDoesNotBlock(t *testing.T) {
	_, b := Pair()
	require.NoError(t, b.SetReadTimeout(0))

	n, err := b.Read(make([]byte, 1))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPair_BlockingReadWakesOnWrite(t *testing.T) {
	a, b := Pair()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = a.Write([]byte{0x7E})
	}()

	buf := make([]byte, 1)
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(0x7E), buf[0])
}

func TestPair_Close(t *testing.T) {
	a, b := Pair()
	require.NoError(t, b.SetReadTimeout(time.Second))

	_, err := a.Write([]byte{9})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Close(), ErrClosed)

	buf := make([]byte, 4)
	n, err := b.Read(buf)
	require.NoError(t, err, "buffered data is drained first")
	assert.Equal(t, 1, n)

	_, err = b.Read(buf)
	assert.ErrorIs(t, err, io.EOF)

	_, err = b.Write([]byte{1})
	assert.ErrorIs(t, err, io.ErrClosedPipe)

	_, err = a.Read(buf)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, a.SetReadTimeout(time.Second), ErrClosed)
}

func TestPair_CloseUnblocksOwnRead(t *testing.T) {
	_, b := Pair()

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Read(make([]byte, 1))
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("read not unblocked by Close")
	}
}

func TestFaults(t *testing.T) {
	a, b := Pair()
	require.NoError(t, b.SetReadTimeout(10*time.Millisecond))
	a.SetFault(Chain(DropWrites(0, 2), CorruptByte(1, 1, 0xFF)))

	for _, w := range [][]byte{{1}, {2, 3}, {4}, {5}} {
		_, err := a.Write(w)
		require.NoError(t, err)
	}

	buf := make([]byte, 8)
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3 ^ 0xFF, 5}, buf[:n])
	assert.Equal(t, 4, a.Writes())

	a.SetFault(DropFirst(100))
	_, err = a.Write([]byte{6})
	require.NoError(t, err)
	n, err = b.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}
