package frame

import (
	"sync"

	"github.com/godyy/gworld/wire"
	"github.com/pkg/errors"
)

// Template 静态包缓存
// 首次使用时构造一次，之后每次发送只拷贝缓存的字节。
// 构造函数不接收任何与连接相关的输入。可并发使用。
type Template struct {
	order  wire.ByteOrder
	opcode uint32
	build  func(*Builder) error
	once   sync.Once
	data   []byte
	err    error
}

func NewTemplate(order wire.ByteOrder, opcode uint32, build func(*Builder) error) *Template {
	return &Template{
		order:  order,
		opcode: opcode,
		build:  build,
	}
}

func (t *Template) Opcode() uint32 {
	return t.opcode
}

func (t *Template) load() ([]byte, error) {
	t.once.Do(func() {
		buf := wire.NewBuffer(HeaderSize)
		if err := Build(buf, t.order, t.opcode, t.build); err != nil {
			t.err = errors.WithMessagef(err, "build template %#x", t.opcode)
			return
		}
		if buf.Len() == 0 {
			t.err = ErrEmptyTemplate
			return
		}
		t.data = buf.Bytes()
	})
	return t.data, t.err
}

// Prepare 提前构造缓存，例如在服务启动时
func (t *Template) Prepare() error {
	_, err := t.load()
	return err
}

// CopyTo 将缓存的包追加到 sink 并提交
func (t *Template) CopyTo(sink wire.Sink) error {
	data, err := t.load()
	if err != nil {
		return err
	}
	if err := wire.WriteBytes(sink, data); err != nil {
		return err
	}
	return sink.Flush()
}

// Bytes 返回缓存字节的拷贝
func (t *Template) Bytes() ([]byte, error) {
	data, err := t.load()
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), data...), nil
}
