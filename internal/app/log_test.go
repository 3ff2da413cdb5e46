package app

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCircularBuffer(t *testing.T) {
	buf := newBuffer(2)

	_, err := buf.Write([]byte("hello"))
	assert.Nil(t, err)
	_, err = buf.Write([]byte("world"))
	assert.Nil(t, err)

	assert.Equal(t, "helloworld", string(buf.Bytes()))

	buf.Reset()
	assert.Equal(t, 0, len(buf.Bytes()))
}

func TestCircularBufferWrapped(t *testing.T) {
	buf := &circularBuffer{
		chunks: [][]byte{{'e', 'f'}, {'g', 'h'}, {'a', 'b'}, {'c', 'd'}, {}},
		r:      2,
		w:      1,
	}
	assert.Equal(t, []byte("abcdefgh"), buf.Bytes())
}

func TestGetLogger(t *testing.T) {
	modules["stream1"] = "debug"
	modules["stream2"] = "warn"

	assert.Equal(t, zerolog.DebugLevel, GetLogger("stream1").GetLevel())
	assert.Equal(t, zerolog.WarnLevel, GetLogger("stream2").GetLevel())
	assert.Equal(t, Logger.GetLevel(), GetLogger("nonexistent").GetLevel())
}
