package wire

import (
	"io"

	"github.com/godyy/gnet"
	"github.com/pkg/errors"
)

// Source 顺序读取的字节源，不感知分帧
type Source interface {
	io.Reader

	// Next 读取 n 个字节；实现尽量返回零拷贝视图
	Next(n int) ([]byte, error)

	// Skip 跳过 n 个字节
	Skip(n int) error

	// Len 剩余可读字节数
	Len() int

	// Pos 当前读取位置
	Pos() int

	// Size 总字节数
	Size() int
}

// Reader 借用字节切片的读取游标，不持有数据
// 通过 Next 获得的视图在底层切片被修改前有效
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Reset 重新指向新的字节切片
func (r *Reader) Reset(b []byte) {
	r.buf = b
	r.off = 0
}

func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.off >= len(r.buf) {
		return 0, io.EOF
	}
	n := copy(p, r.buf[r.off:])
	r.off += n
	return n, nil
}

func (r *Reader) Next(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, errors.WithMessagef(ErrShortRead, "need %d bytes, %d remain", n, r.Len())
	}
	b := r.buf[r.off : r.off+n : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) Skip(n int) error {
	if n < 0 || n > r.Len() {
		return errors.WithMessagef(ErrShortRead, "skip %d bytes, %d remain", n, r.Len())
	}
	r.off += n
	return nil
}

func (r *Reader) Len() int {
	return len(r.buf) - r.off
}

func (r *Reader) Pos() int {
	return r.off
}

func (r *Reader) Size() int {
	return len(r.buf)
}

// EOF 数据是否已读完
func (r *Reader) EOF() bool {
	return r.off >= len(r.buf)
}

// Remaining 返回未读部分的视图，不移动游标
func (r *Reader) Remaining() []byte {
	return r.buf[r.off:]
}

// PacketSource 以 gnet.Packet 为底层存储的字节源
// 数据由 Packet 持有，适合在接收缓冲区回收后继续解码。
// Next 返回 Packet 上的视图，在 Packet 被回收或继续写入前有效。
type PacketSource struct {
	p    *gnet.Packet
	size int
}

func NewPacketSource(p *gnet.Packet) *PacketSource {
	return &PacketSource{p: p, size: p.Readable()}
}

// Packet 返回底层 Packet
func (s *PacketSource) Packet() *gnet.Packet {
	return s.p
}

func (s *PacketSource) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	return s.p.Read(b)
}

func (s *PacketSource) Next(n int) ([]byte, error) {
	if n < 0 || n > s.Len() {
		return nil, errors.WithMessagef(ErrShortRead, "need %d bytes, %d remain", n, s.Len())
	}
	b, err := s.p.Peek(n)
	if err != nil {
		return nil, errors.WithMessage(ErrShortRead, err.Error())
	}
	if _, err := s.p.Skip(n); err != nil {
		return nil, errors.WithMessage(ErrShortRead, err.Error())
	}
	return b[:n:n], nil
}

func (s *PacketSource) Skip(n int) error {
	if n < 0 || n > s.Len() {
		return errors.WithMessagef(ErrShortRead, "skip %d bytes, %d remain", n, s.Len())
	}
	if _, err := s.p.Skip(n); err != nil {
		return errors.WithMessage(ErrShortRead, err.Error())
	}
	return nil
}

func (s *PacketSource) Len() int {
	return s.p.Readable()
}

func (s *PacketSource) Pos() int {
	return s.size - s.p.Readable()
}

func (s *PacketSource) Size() int {
	return s.size
}
