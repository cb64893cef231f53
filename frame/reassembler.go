package frame

import (
	"io"

	"github.com/godyy/gworld/wire"
	"github.com/pkg/errors"
)

const minFillSize = 512

// Reassembler 连接的持久接收缓冲区，从字节流中重组完整的包
// 每次尝试都在未消费字节上建立一次性游标，只有 Complete 才推进读取位置，
// 因此 Incomplete 时缓冲区保持原样。非并发安全。
type Reassembler struct {
	order       wire.ByteOrder
	buf         []byte
	r           int // 已消费的字节数
	maxBuffered int // 未消费字节的上限，0 表示不限
	cursor      wire.Reader
}

func NewReassembler(order wire.ByteOrder, capacity int, maxBuffered int) *Reassembler {
	return &Reassembler{
		order:       order,
		buf:         make([]byte, 0, capacity),
		maxBuffered: maxBuffered,
	}
}

// Buffered 未消费的字节数
func (ra *Reassembler) Buffered() int {
	return len(ra.buf) - ra.r
}

// Pending 未消费字节的视图
func (ra *Reassembler) Pending() []byte {
	return ra.buf[ra.r:]
}

func (ra *Reassembler) checkLimit(n int) error {
	if ra.maxBuffered > 0 && ra.Buffered()+n > ra.maxBuffered {
		return errors.WithMessagef(ErrBufferOverflow, "buffered %d, incoming %d, limit %d", ra.Buffered(), n, ra.maxBuffered)
	}
	return nil
}

// Feed 追加收到的字节，之前取得的包体视图随之失效
func (ra *Reassembler) Feed(p []byte) error {
	if err := ra.checkLimit(len(p)); err != nil {
		return err
	}
	ra.Compact()
	ra.buf = append(ra.buf, p...)
	return nil
}

// Fill 从 r 读取一次数据到缓冲区空闲空间，之前取得的包体视图随之失效
func (ra *Reassembler) Fill(r io.Reader) (int, error) {
	if err := ra.checkLimit(1); err != nil {
		return 0, err
	}

	ra.Compact()
	if cap(ra.buf)-len(ra.buf) < minFillSize {
		nb := make([]byte, len(ra.buf), 2*cap(ra.buf)+minFillSize)
		copy(nb, ra.buf)
		ra.buf = nb
	}

	free := ra.buf[len(ra.buf):cap(ra.buf)]
	if ra.maxBuffered > 0 && len(free) > ra.maxBuffered-ra.Buffered() {
		free = free[:ra.maxBuffered-ra.Buffered()]
	}

	n, err := r.Read(free)
	ra.buf = ra.buf[:len(ra.buf)+n]
	return n, err
}

// Next 尝试取出下一个完整的包
// 返回 Complete 时读取位置前进 2+Length 字节；Incomplete 时缓冲区不变；
// 返回错误时连接应当关闭。
func (ra *Reassembler) Next() (Incoming, Status, error) {
	ra.cursor.Reset(ra.buf[ra.r:])
	in, status, err := Decode(&ra.cursor, ra.order)
	if err != nil || status != Complete {
		return in, status, err
	}
	ra.r += in.Size()
	return in, Complete, nil
}

// Compact 回收已消费的空间，之前取得的包体视图随之失效
func (ra *Reassembler) Compact() {
	if ra.r == 0 {
		return
	}
	n := copy(ra.buf, ra.buf[ra.r:])
	ra.buf = ra.buf[:n]
	ra.r = 0
}

// Reset 丢弃全部缓冲数据
func (ra *Reassembler) Reset() {
	ra.buf = ra.buf[:0]
	ra.r = 0
}
