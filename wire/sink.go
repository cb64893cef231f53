package wire

import (
	"io"

	"github.com/godyy/gnet"
	"github.com/pkg/errors"
)

// Sink 追加写入的字节目标，支持对已写入的字节原位回填
type Sink interface {
	io.Writer

	// Pos 当前写入位置
	Pos() int

	// Overwrite 原位改写 [pos, pos+len(p)) 的字节，不得扩展 Sink
	Overwrite(pos int, p []byte) error

	// Flush 提交已写入的数据
	Flush() error
}

// Truncater 可丢弃 pos 之后字节的 Sink，构造失败时用于回滚
type Truncater interface {
	Truncate(pos int) error
}

// Buffer 以 gnet.Packet 为存储的 Sink
// 位置相对于 Packet 中未读数据的起点；写入期间不应从 Packet 读取。
type Buffer struct {
	p *gnet.Packet
}

// NewBuffer 创建持有独立 Packet 的 Buffer，capacity <= 0 时使用默认容量
func NewBuffer(capacity int) *Buffer {
	if capacity > 0 {
		return &Buffer{p: gnet.NewPacket(capacity)}
	}
	return &Buffer{p: gnet.NewPacket()}
}

// WrapPacket 在已有 Packet 上追加写入，通常是 gnet.GetPacket 取得的池化 Packet
func WrapPacket(p *gnet.Packet) *Buffer {
	return &Buffer{p: p}
}

// Packet 返回底层 Packet
func (b *Buffer) Packet() *gnet.Packet {
	return b.p
}

func (b *Buffer) Write(p []byte) (int, error) {
	return b.p.Write(p)
}

func (b *Buffer) WriteByte(c byte) error {
	return b.p.WriteByte(c)
}

func (b *Buffer) Pos() int {
	return b.p.Readable()
}

func (b *Buffer) Overwrite(pos int, p []byte) error {
	if pos < 0 || pos+len(p) > b.p.Readable() {
		return errors.WithMessagef(ErrOverwriteRange, "overwrite [%d,%d) of %d", pos, pos+len(p), b.p.Readable())
	}
	copy(b.p.UnreadData()[pos:], p)
	return nil
}

// Truncate 丢弃 pos 之后的字节
func (b *Buffer) Truncate(pos int) error {
	if pos < 0 || pos > b.p.Readable() {
		return errors.WithMessagef(ErrOverwriteRange, "truncate at %d of %d", pos, b.p.Readable())
	}
	if pos == b.p.Readable() {
		return nil
	}
	keep := b.p.UnreadData()[:pos]
	b.p.Reset()
	_, err := b.p.Write(keep)
	return err
}

func (b *Buffer) Flush() error {
	return nil
}

// Bytes 返回已写入数据的视图，下一次写入前有效
func (b *Buffer) Bytes() []byte {
	return b.p.UnreadData()
}

func (b *Buffer) Len() int {
	return b.p.Readable()
}

// Reset 清空数据并保留容量
func (b *Buffer) Reset() {
	b.p.Reset()
}
