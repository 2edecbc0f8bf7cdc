package proto

import (
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

// DefaultMaxMessageSize 单条消息默认上限
const DefaultMaxMessageSize = 64 << 10

var (
	// ErrMessageTooLarge 消息超过上限
	ErrMessageTooLarge = errors.New("proto: message too large")
)

// WriteDelimited 写入一条带 varint 长度前缀的消息
//
// 前缀与消息体合并为一次 Write。
func WriteDelimited(w io.Writer, msg []byte) error {
	buf := make([]byte, 0, varint.UvarintSize(uint64(len(msg)))+len(msg))
	buf = append(buf, varint.ToUvarint(uint64(len(msg)))...)
	buf = append(buf, msg...)
	_, err := w.Write(buf)
	return err
}

// ReadDelimited 读取一条带 varint 长度前缀的消息
//
// 长度前缀逐字节读取，不会越过消息边界多读数据。
// 在前缀之前遇到流结束返回 io.EOF，消息体不完整返回 io.ErrUnexpectedEOF。
func ReadDelimited(r io.Reader, maxSize int) ([]byte, error) {
	br := &byteReader{r: r}
	size, err := varint.ReadUvarint(br)
	if err != nil {
		if errors.Is(err, io.EOF) && br.n > 0 {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if size > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, size, maxSize)
	}
	msg := make([]byte, size)
	if _, err := io.ReadFull(r, msg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return msg, nil
}

// byteReader 把 io.Reader 适配为 io.ByteReader，不做缓冲
type byteReader struct {
	r   io.Reader
	buf [1]byte
	n   int
}

func (b *byteReader) ReadByte() (byte, error) {
	for {
		n, err := b.r.Read(b.buf[:])
		if n == 1 {
			b.n++
			return b.buf[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}
