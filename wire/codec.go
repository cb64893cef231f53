package wire

import (
	"unsafe"

	"github.com/pkg/errors"
)

func sizeOf[T Scalar]() int {
	var v T
	return int(unsafe.Sizeof(v))
}

// rawBytes 返回 v 的内存表示，不做任何字节序转换
func rawBytes[T Scalar](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

// sliceBytes 返回切片元素连续的内存表示
func sliceBytes[T Scalar](vs []T) []byte {
	if len(vs) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(vs))), len(vs)*sizeOf[T]())
}

// readFull 读满 p；剩余不足时不消费任何字节
func readFull(src Source, p []byte) error {
	if src.Len() < len(p) {
		return errors.WithMessagef(ErrShortRead, "need %d bytes, %d remain", len(p), src.Len())
	}
	for off := 0; off < len(p); {
		n, err := src.Read(p[off:])
		off += n
		if err != nil && off < len(p) {
			return errors.WithMessage(ErrShortRead, err.Error())
		}
	}
	return nil
}

func writeFull(s Sink, p []byte) error {
	n, err := s.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return errors.Errorf("wire: short write %d of %d", n, len(p))
	}
	return nil
}

// Write 以本机内存布局写入 v
func Write[T Scalar](s Sink, v T) error {
	return writeFull(s, rawBytes(&v))
}

// Read 以本机内存布局读取一个 T
func Read[T Scalar](src Source) (T, error) {
	var v T
	err := readFull(src, rawBytes(&v))
	return v, err
}

// WriteNetwork 以协议固定的网络序写入 v
func WriteNetwork[T Integer](s Sink, o ByteOrder, v T) error {
	return Write(s, ConvertReverse(o, v))
}

// ReadNetwork 读取以网络序写入的 T
func ReadNetwork[T Integer](src Source, o ByteOrder) (T, error) {
	v, err := Read[T](src)
	if err != nil {
		return v, err
	}
	return ConvertReverse(o, v), nil
}

// WriteBytes 写入原始字节
func WriteBytes(s Sink, p []byte) error {
	return writeFull(s, p)
}

// ReadBytes 读取 n 个原始字节
func ReadBytes(src Source, n int) ([]byte, error) {
	return src.Next(n)
}

// ReadRemaining 读取剩余的全部字节
func ReadRemaining(src Source) ([]byte, error) {
	return src.Next(src.Len())
}

// Slot 已预留、待回填的字段位置
type Slot[T Scalar] struct {
	pos int
}

func (s Slot[T]) Pos() int {
	return s.pos
}

// End 字段之后的位置
func (s Slot[T]) End() int {
	return s.pos + sizeOf[T]()
}

// Reserve 写入零值占位并返回其位置，之后通过 Patch 回填
func Reserve[T Scalar](s Sink) (Slot[T], error) {
	pos := s.Pos()
	var zero T
	if err := Write(s, zero); err != nil {
		return Slot[T]{}, err
	}
	return Slot[T]{pos: pos}, nil
}

// Patch 以本机内存布局回填 slot
func Patch[T Scalar](s Sink, slot Slot[T], v T) error {
	return s.Overwrite(slot.pos, rawBytes(&v))
}

// PatchNetwork 以网络序回填 slot
func PatchNetwork[T Integer](s Sink, slot Slot[T], o ByteOrder, v T) error {
	return Patch(s, slot, ConvertReverse(o, v))
}
