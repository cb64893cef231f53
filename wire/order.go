package wire

import (
	"encoding/binary"
	"math/bits"
	"unsafe"
)

// Integer 定宽整数
type Integer interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64
}

// Unsigned 定宽无符号整数，用作计数前缀
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Scalar 可直接编解码的基础类型
// bool 宽度不明确，不在其中，调用方需自行选择整数宽度
type Scalar interface {
	Integer | ~float32 | ~float64
}

// ByteOrder 字节序策略
// 基础编解码始终使用本机内存布局；协议中固定字节序的字段（例如包长度）
// 在写入前经过 ConvertReverse 转换，使不同主机上写出的字节一致。
type ByteOrder struct {
	little bool
}

// HostOrder 进程启动时探测的本机字节序
var HostOrder = detectHostOrder()

func detectHostOrder() ByteOrder {
	x := uint16(1)
	return ByteOrder{little: *(*byte)(unsafe.Pointer(&x)) == 1}
}

// NewByteOrder 显式构造字节序策略，主要用于测试另一种主机字节序
func NewByteOrder(little bool) ByteOrder {
	return ByteOrder{little: little}
}

func (o ByteOrder) IsLittleEndian() bool {
	return o.little
}

func (o ByteOrder) Native() binary.ByteOrder {
	if o.little {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (o ByteOrder) String() string {
	if o.little {
		return "little-endian"
	}
	return "big-endian"
}

// Convert 在小端主机上为空操作，大端主机上翻转字节
func Convert[T Integer](o ByteOrder, v T) T {
	if o.little {
		return v
	}
	return swap(v)
}

// ConvertReverse 在小端主机上翻转字节，大端主机上为空操作
// 用于协议固定为网络序的字段
func ConvertReverse[T Integer](o ByteOrder, v T) T {
	if o.little {
		return swap(v)
	}
	return v
}

func swap[T Integer](v T) T {
	switch unsafe.Sizeof(v) {
	case 2:
		return T(bits.ReverseBytes16(uint16(v)))
	case 4:
		return T(bits.ReverseBytes32(uint32(v)))
	case 8:
		return T(bits.ReverseBytes64(uint64(v)))
	default:
		return v
	}
}
