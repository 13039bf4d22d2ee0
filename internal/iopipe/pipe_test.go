package iopipe

import (
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkWriteAndDrain(t *testing.T) {
	s := NewSink()
	_, err := s.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = s.Write([]byte("world"))
	require.NoError(t, err)

	out, err := s.DrainToString()
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	// Draining twice yields an empty string the second time.
	out2, err := s.DrainToString()
	require.NoError(t, err)
	assert.Equal(t, "", out2)
}

func TestSinkCloneSharesQueue(t *testing.T) {
	s := NewSink()
	clone := s.Clone()
	_, err := clone.Write([]byte("shared"))
	require.NoError(t, err)

	out, err := s.DrainToString()
	require.NoError(t, err)
	assert.Equal(t, "shared", out)
}

func TestSinkRejectsInvalidUTF8(t *testing.T) {
	s := NewSink()
	_, err := s.Write([]byte{0xff, 0xfe})
	require.NoError(t, err)
	_, err = s.DrainToString()
	assert.Error(t, err)
}

func TestSourcePushAndRead(t *testing.T) {
	src := NewSource()
	src.Push([]byte("line1\n"))

	buf := make([]byte, 3)
	n, err := src.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "lin", string(buf[:n]))
}

func TestSourceReadEmptyReturnsZeroBytes(t *testing.T) {
	src := NewSource()
	buf := make([]byte, 8)
	n, err := src.Read(buf)
	assert.Equal(t, 0, n)
	assert.True(t, err == nil || err == io.EOF)
}

func TestSinkConcurrentWrites(t *testing.T) {
	s := NewSink()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Write([]byte("x"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
