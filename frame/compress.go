package frame

import (
	"bytes"
	"io"

	"github.com/godyy/gnet"
	"github.com/godyy/gworld/wire"
	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

// 批量压缩包体：[4 字节本机序原始长度][DEFLATE 数据]

const rawSizeWidth = 4

// BuildCompressed 先由 fn 将内容写入临时缓冲区，再以 DEFLATE 压缩作为包体构造一个包
func BuildCompressed(sink wire.Sink, order wire.ByteOrder, opcode uint32, level int, fn func(wire.Sink) error) error {
	p := gnet.GetPacket(1024)
	defer gnet.PutPacket(p)

	raw := wire.WrapPacket(p)
	if err := fn(raw); err != nil {
		return errors.WithMessagef(err, "encode raw body of opcode %#x", opcode)
	}
	return BuildCompressedBytes(sink, order, opcode, level, raw.Bytes())
}

// BuildCompressedBytes 以已序列化的 raw 为原始内容构造压缩包
func BuildCompressedBytes(sink wire.Sink, order wire.ByteOrder, opcode uint32, level int, raw []byte) error {
	return Build(sink, order, opcode, func(b *Builder) error {
		if err := wire.Write(b, uint32(len(raw))); err != nil {
			return errors.WithMessage(err, "encode raw size")
		}

		zw, err := flate.NewWriter(b, level)
		if err != nil {
			return errors.WithMessage(err, "create compressor")
		}
		if _, err := zw.Write(raw); err != nil {
			return errors.WithMessage(err, "compress")
		}
		if err := zw.Close(); err != nil {
			return errors.WithMessage(err, "close compressor")
		}
		return nil
	})
}

// Decompress 解压批量压缩包体，返回解压后数据的读取游标
// 声明的原始长度超过 maxSize（>0 时）、数据损坏或解压长度不符时返回 ErrCompression。
func Decompress(body []byte, maxSize int) (*wire.Reader, error) {
	r := wire.NewReader(body)
	size, err := wire.Read[uint32](r)
	if err != nil {
		return nil, errors.WithMessage(ErrCompression, "missing raw size")
	}
	if maxSize > 0 && uint64(size) > uint64(maxSize) {
		return nil, errors.WithMessagef(ErrCompression, "raw size %d exceeds limit %d", size, maxSize)
	}

	zr := flate.NewReader(bytes.NewReader(r.Remaining()))
	defer zr.Close()

	out := make([]byte, size)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, errors.WithMessagef(ErrCompression, "inflate %d bytes: %v", size, err)
	}

	var extra [1]byte
	n, err := io.ReadFull(zr, extra[:])
	if n > 0 {
		return nil, errors.WithMessagef(ErrCompression, "inflated data longer than declared %d", size)
	}
	if err != nil && err != io.EOF {
		return nil, errors.WithMessagef(ErrCompression, "inflate trailer: %v", err)
	}

	return wire.NewReader(out), nil
}
