package wire

import (
	"github.com/pkg/errors"
)

func maxCount[L Unsigned]() uint64 {
	var m L
	m--
	return uint64(m)
}

// WriteRange 逐个写入元素，不带数量前缀
func WriteRange[T Scalar](s Sink, vs []T) error {
	return writeFull(s, sliceBytes(vs))
}

// ReadRange 读取 len(dst) 个元素
func ReadRange[T Scalar](src Source, dst []T) error {
	return readFull(src, sliceBytes(dst))
}

// ReadRest 读取剩余数据中的全部元素
func ReadRest[T Scalar](src Source) ([]T, error) {
	size := sizeOf[T]()
	if src.Len()%size != 0 {
		return nil, errors.WithMessagef(ErrShortRead, "trailing %d bytes of partial element", src.Len()%size)
	}
	vs := make([]T, src.Len()/size)
	if err := ReadRange(src, vs); err != nil {
		return nil, err
	}
	return vs, nil
}

// WriteRangeFunc 以自定义元素编码器写入元素，不带数量前缀
func WriteRangeFunc[T any](s Sink, vs []T, enc func(Sink, T) error) error {
	for i := range vs {
		if err := enc(s, vs[i]); err != nil {
			return errors.WithMessagef(err, "encode element %d", i)
		}
	}
	return nil
}

// ReadRangeFunc 以自定义元素解码器读取 len(dst) 个元素
func ReadRangeFunc[T any](src Source, dst []T, dec func(Source) (T, error)) error {
	for i := range dst {
		v, err := dec(src)
		if err != nil {
			return errors.WithMessagef(err, "decode element %d", i)
		}
		dst[i] = v
	}
	return nil
}

func writeCount[L Unsigned](s Sink, n int) error {
	if uint64(n) > maxCount[L]() {
		return errors.WithMessagef(ErrCountOverflow, "count %d, max %d", n, maxCount[L]())
	}
	if err := Write(s, L(n)); err != nil {
		return errors.WithMessage(err, "encode count")
	}
	return nil
}

// readCount 读取数量前缀，并按每个元素至少 elemSize 字节校验剩余数据
func readCount[L Unsigned](src Source, elemSize int) (int, error) {
	n, err := Read[L](src)
	if err != nil {
		return 0, errors.WithMessage(err, "decode count")
	}
	if elemSize < 1 {
		elemSize = 1
	}
	if uint64(n) > uint64(src.Len()/elemSize) {
		return 0, errors.WithMessagef(ErrCountExceedsData, "count %d, %d bytes remain", n, src.Len())
	}
	return int(n), nil
}

// WriteDynamicRange 写入 L 类型的数量前缀和全部元素
func WriteDynamicRange[L Unsigned, T Scalar](s Sink, vs []T) error {
	if err := writeCount[L](s, len(vs)); err != nil {
		return err
	}
	return WriteRange(s, vs)
}

// ReadContainer 读取 L 类型的数量前缀和对应数量的元素
// 数量在分配前依据剩余字节校验
func ReadContainer[L Unsigned, T Scalar](src Source) ([]T, error) {
	n, err := readCount[L](src, sizeOf[T]())
	if err != nil {
		return nil, err
	}
	vs := make([]T, n)
	if err := ReadRange(src, vs); err != nil {
		return nil, err
	}
	return vs, nil
}

// WriteDynamicRangeFunc 写入数量前缀，元素使用自定义编码器
func WriteDynamicRangeFunc[L Unsigned, T any](s Sink, vs []T, enc func(Sink, T) error) error {
	if err := writeCount[L](s, len(vs)); err != nil {
		return err
	}
	return WriteRangeFunc(s, vs, enc)
}

// ReadContainerFunc 读取数量前缀，元素使用自定义解码器
// minSize 为单个元素编码后的最小字节数，用于校验数量
func ReadContainerFunc[L Unsigned, T any](src Source, minSize int, dec func(Source) (T, error)) ([]T, error) {
	n, err := readCount[L](src, minSize)
	if err != nil {
		return nil, err
	}
	vs := make([]T, n)
	if err := ReadRangeFunc(src, vs, dec); err != nil {
		return nil, err
	}
	return vs, nil
}

// WriteConvertedRange 将每个元素截断转换为 E 后写入
// 超出 E 表示范围的值只保留低位，调用方负责取值范围
func WriteConvertedRange[E, T Scalar](s Sink, vs []T) error {
	for i := range vs {
		if err := Write(s, E(vs[i])); err != nil {
			return errors.WithMessagef(err, "encode element %d", i)
		}
	}
	return nil
}

// ReadConvertedRange 读取 len(dst) 个 E 并转换回 T
func ReadConvertedRange[E, T Scalar](src Source, dst []T) error {
	for i := range dst {
		v, err := Read[E](src)
		if err != nil {
			return errors.WithMessagef(err, "decode element %d", i)
		}
		dst[i] = T(v)
	}
	return nil
}

// WriteConvertedDynamicRange 写入数量前缀，元素截断转换为 E
func WriteConvertedDynamicRange[L Unsigned, E, T Scalar](s Sink, vs []T) error {
	if err := writeCount[L](s, len(vs)); err != nil {
		return err
	}
	return WriteConvertedRange[E](s, vs)
}

// ReadConvertedContainer 读取数量前缀和 E 元素，转换回 T
func ReadConvertedContainer[L Unsigned, E, T Scalar](src Source) ([]T, error) {
	n, err := readCount[L](src, sizeOf[E]())
	if err != nil {
		return nil, err
	}
	vs := make([]T, n)
	if err := ReadConvertedRange[E](src, vs); err != nil {
		return nil, err
	}
	return vs, nil
}
