package frame

import (
	"fmt"

	"github.com/godyy/gworld/wire"
	"github.com/pkg/errors"
)

const (
	builderIdle     = 0
	builderBuilding = 1
	builderFinished = 2
)

// Builder 出站包构造器
// Start 预留长度字段并写入操作码，之后的写入构成包体，Finish 回填长度。
// Builder 本身实现 wire.Sink，编解码组合子可直接写入。
// 误用（Finish 之后继续写入、回填包外位置、重复 Start）会 panic。
type Builder struct {
	sink   wire.Sink
	order  wire.ByteOrder
	opcode uint32
	length wire.Slot[uint16]
	state  int8
}

func NewBuilder(sink wire.Sink, order wire.ByteOrder) *Builder {
	return &Builder{sink: sink, order: order}
}

// Reset 重新指定目标，使 Builder 可以构造下一个包
func (b *Builder) Reset(sink wire.Sink) {
	b.sink = sink
	b.opcode = 0
	b.length = wire.Slot[uint16]{}
	b.state = builderIdle
}

func (b *Builder) mustBuilding(op string) {
	if b.state != builderBuilding {
		panic(fmt.Sprintf("frame: %s on builder not building (state %d)", op, b.state))
	}
}

// Start 开始构造操作码为 opcode 的包
func (b *Builder) Start(opcode uint32) error {
	if b.state != builderIdle {
		panic(fmt.Sprintf("frame: Start on builder in state %d", b.state))
	}

	slot, err := wire.Reserve[uint16](b.sink)
	if err != nil {
		return errors.WithMessage(err, "reserve length")
	}

	b.opcode = opcode
	b.length = slot
	b.state = builderBuilding

	if err := wire.Write(b.sink, opcode); err != nil {
		return errors.WithMessage(err, "encode opcode")
	}
	return nil
}

func (b *Builder) Write(p []byte) (int, error) {
	b.mustBuilding("Write")
	return b.sink.Write(p)
}

func (b *Builder) Pos() int {
	return b.sink.Pos()
}

// Overwrite 回填包体内已写入的字节，不能触及包头
func (b *Builder) Overwrite(pos int, p []byte) error {
	b.mustBuilding("Overwrite")
	if pos < b.bodyStart() || pos+len(p) > b.sink.Pos() {
		panic(fmt.Sprintf("frame: overwrite [%d,%d) outside body [%d,%d)", pos, pos+len(p), b.bodyStart(), b.sink.Pos()))
	}
	return b.sink.Overwrite(pos, p)
}

func (b *Builder) Flush() error {
	return b.sink.Flush()
}

func (b *Builder) bodyStart() int {
	return b.length.Pos() + HeaderSize
}

// Opcode 当前包的操作码
func (b *Builder) Opcode() uint32 {
	return b.opcode
}

// BodyLen 当前已写入的包体长度
func (b *Builder) BodyLen() int {
	if b.state == builderIdle {
		return 0
	}
	return b.sink.Pos() - b.bodyStart()
}

// Finished 是否已调用 Finish
func (b *Builder) Finished() bool {
	return b.state == builderFinished
}

// Finish 计算包体长度并回填长度字段，之后不能再写入
// 返回错误时 sink 中留有长度为 0 的残缺包：实现了 wire.Truncater 的 sink 可用 Abort 回滚，否则应丢弃。
func (b *Builder) Finish() error {
	b.mustBuilding("Finish")
	b.state = builderFinished

	n := b.sink.Pos() - b.bodyStart()
	if n > MaxBodySize {
		return errors.WithMessagef(ErrFrameTooLarge, "opcode %#x body %d, max %d", b.opcode, n, MaxBodySize)
	}

	if err := wire.PatchNetwork(b.sink, b.length, b.order, uint16(OpcodeSize+n)); err != nil {
		return errors.WithMessage(err, "patch length")
	}
	return nil
}

// Abort 丢弃当前包已写入的字节，sink 需实现 wire.Truncater
// 返回 false 表示 sink 不支持回滚
func (b *Builder) Abort() bool {
	if b.state == builderIdle {
		return true
	}
	t, ok := b.sink.(wire.Truncater)
	if !ok || t.Truncate(b.length.Pos()) != nil {
		return false
	}
	b.state = builderFinished
	return true
}

// Build 在 sink 上构造一个完整的包，包体由 fn 写入
// 失败时若 sink 实现了 wire.Truncater，则回滚到构造前的位置
func Build(sink wire.Sink, order wire.ByteOrder, opcode uint32, fn func(*Builder) error) (err error) {
	b := NewBuilder(sink, order)
	defer func() {
		if err != nil {
			b.Abort()
		}
	}()

	if err = b.Start(opcode); err != nil {
		return err
	}
	if fn != nil {
		if err = fn(b); err != nil {
			return errors.WithMessagef(err, "encode body of opcode %#x", opcode)
		}
	}
	return b.Finish()
}
