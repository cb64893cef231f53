package msg

import (
	"fmt"

	"github.com/godyy/gworld/frame"
	"github.com/godyy/gworld/wire"
	"github.com/pkg/errors"
)

var ErrUnknownOpcode = errors.New("msg: unknown opcode")
var ErrTrailingBytes = errors.New("msg: body longer than message layout")

// Msg 应用消息接口定义
type Msg interface {
	// Opcode 消息操作码
	Opcode() uint32

	// Encode 将包体写入 Sink
	Encode(wire.Sink) error

	// Decode 从包体解码
	Decode(wire.Source) error
}

// Recycler 由使用对象池管理的消息实现
type Recycler interface {
	Recycle()
}

// Codec Msg编解码器
type Codec interface {
	// EncodeMsg 将消息构造为完整的包并写入 Sink
	EncodeMsg(wire.Sink, Msg) error

	// DecodeMsg 依据入站包解码消息
	DecodeMsg(frame.Incoming) (Msg, error)
}

// Registry 以操作码索引的消息注册表，实现 Codec
type Registry struct {
	order    wire.ByteOrder
	creators map[uint32]func() Msg
}

func NewRegistry(order wire.ByteOrder) *Registry {
	return &Registry{
		order:    order,
		creators: map[uint32]func() Msg{},
	}
}

// Register 注册消息构造函数，重复注册会 panic
func (r *Registry) Register(opcode uint32, creator func() Msg) {
	if _, ok := r.creators[opcode]; ok {
		panic(fmt.Sprintf("msg: opcode %#x registered twice", opcode))
	}
	r.creators[opcode] = creator
}

// Registered 操作码是否已注册
func (r *Registry) Registered(opcode uint32) bool {
	_, ok := r.creators[opcode]
	return ok
}

// Create 根据操作码创建消息
func (r *Registry) Create(opcode uint32) Msg {
	creator := r.creators[opcode]
	if creator == nil {
		return nil
	}
	return creator()
}

func (r *Registry) EncodeMsg(sink wire.Sink, m Msg) error {
	return frame.Build(sink, r.order, m.Opcode(), func(b *frame.Builder) error {
		return m.Encode(b)
	})
}

// DecodeMsg 解码消息，包体必须恰好被消息布局消费完
func (r *Registry) DecodeMsg(in frame.Incoming) (Msg, error) {
	m := r.Create(in.Opcode)
	if m == nil {
		return nil, errors.WithMessagef(ErrUnknownOpcode, "opcode %#x", in.Opcode)
	}

	src := in.Source()
	if err := m.Decode(src); err != nil {
		Recycle(m)
		return nil, errors.WithMessagef(err, "decode opcode %#x", in.Opcode)
	}
	if !src.EOF() {
		Recycle(m)
		return nil, errors.WithMessagef(ErrTrailingBytes, "opcode %#x, %d bytes left", in.Opcode, src.Len())
	}

	return m, nil
}

// Recycle 回收实现了 Recycler 的消息
func Recycle(m Msg) {
	if r, ok := m.(Recycler); ok {
		r.Recycle()
	}
}
