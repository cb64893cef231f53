package frame

import (
	"math"

	"github.com/godyy/gnet"
	"github.com/godyy/gworld/wire"
	"github.com/pkg/errors"
)

const (
	LengthSize  = 2                       // 长度字段宽度，网络序
	OpcodeSize  = 4                       // 操作码宽度，本机字节序
	HeaderSize  = LengthSize + OpcodeSize // 包头宽度
	MaxLength   = math.MaxUint16          // 长度字段最大值
	MaxBodySize = MaxLength - OpcodeSize  // 包体最大字节数
)

var (
	ErrFrameTooShort  = errors.New("frame: length shorter than opcode")
	ErrFrameTooLarge  = errors.New("frame: body too large")
	ErrBufferOverflow = errors.New("frame: receive buffer overflow")
	ErrCompression    = errors.New("frame: compressed body invalid")
	ErrEmptyTemplate  = errors.New("frame: template built no bytes")
)

// Header 包头
// Length 以网络序传输，等于 OpcodeSize + 包体长度；Opcode 以本机字节序传输
type Header struct {
	Length uint16
	Opcode uint32
}

// BodySize 包体长度
func (h Header) BodySize() int {
	return int(h.Length) - OpcodeSize
}

// Status 单次重组的结果
type Status int8

const (
	Incomplete Status = iota // 数据不足，等待更多字节后重试
	Complete                 // 得到一个完整的包
)

func (s Status) String() string {
	switch s {
	case Incomplete:
		return "Incomplete"
	case Complete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Incoming 完整的入站包
// Body 是接收缓冲区上的视图，在 Reassembler 下一次 Feed/Fill/Compact 之前有效
type Incoming struct {
	Header
	Body []byte
}

// Size 该包在字节流中占用的字节数
func (in Incoming) Size() int {
	return LengthSize + int(in.Length)
}

// Source 返回用于解码包体的读取游标
func (in Incoming) Source() *wire.Reader {
	return wire.NewReader(in.Body)
}

// Detach 将包体拷贝到 gnet.Packet 中，脱离接收缓冲区的生命周期
// 调用方负责通过 gnet.PutPacket 回收
func (in Incoming) Detach() *gnet.Packet {
	p := gnet.GetPacket(len(in.Body))
	p.Write(in.Body)
	return p
}

// Decompress 解压批量压缩包体
func (in Incoming) Decompress(maxSize int) (*wire.Reader, error) {
	return Decompress(in.Body, maxSize)
}

// Decode 从 src 的当前位置尝试解析一个完整的包
// src 应为一次性游标：返回 Incomplete 时其位置没有意义，调用方以相同的字节重试即可。
// 长度字段小于操作码宽度属于协议错误。
func Decode(src wire.Source, order wire.ByteOrder) (Incoming, Status, error) {
	if src.Len() < LengthSize {
		return Incoming{}, Incomplete, nil
	}

	length, err := wire.ReadNetwork[uint16](src, order)
	if err != nil {
		return Incoming{}, Incomplete, errors.WithMessage(err, "decode length")
	}
	if length < OpcodeSize {
		return Incoming{}, Incomplete, errors.WithMessagef(ErrFrameTooShort, "length %d", length)
	}
	if src.Len() < int(length) {
		return Incoming{}, Incomplete, nil
	}

	opcode, err := wire.Read[uint32](src)
	if err != nil {
		return Incoming{}, Incomplete, errors.WithMessage(err, "decode opcode")
	}

	body, err := src.Next(int(length) - OpcodeSize)
	if err != nil {
		return Incoming{}, Incomplete, errors.WithMessage(err, "decode body")
	}

	return Incoming{Header: Header{Length: length, Opcode: opcode}, Body: body}, Complete, nil
}
