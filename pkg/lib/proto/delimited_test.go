package proto

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelimited_Sequence(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDelimited(&buf, []byte("first")))
	require.NoError(t, WriteDelimited(&buf, nil))
	require.NoError(t, WriteDelimited(&buf, bytes.Repeat([]byte{1}, 300)))

	msg, err := ReadDelimited(&buf, DefaultMaxMessageSize)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), msg)

	msg, err = ReadDelimited(&buf, DefaultMaxMessageSize)
	require.NoError(t, err)
	assert.Empty(t, msg)

	msg, err = ReadDelimited(&buf, DefaultMaxMessageSize)
	require.NoError(t, err)
	assert.Len(t, msg, 300)

	_, err = ReadDelimited(&buf, DefaultMaxMessageSize)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDelimited_TooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDelimited(&buf, make([]byte, 100)))

	_, err := ReadDelimited(&buf, 10)
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestDelimited_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDelimited(&buf, []byte("truncated")))
	data := buf.Bytes()[:4]

	_, err := ReadDelimited(bytes.NewReader(data), DefaultMaxMessageSize)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDelimited_DoesNotOverread(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDelimited(&buf, []byte("msg")))
	buf.WriteString("rest")

	_, err := ReadDelimited(&buf, DefaultMaxMessageSize)
	require.NoError(t, err)
	assert.Equal(t, "rest", buf.String())
}
