package wire

import "github.com/pkg/errors"

// 压缩ID：1 字节掩码 + 非零字节
// 掩码第 i 位置位表示 id 小端分解的第 i 个字节非零，非零字节按 i 递增顺序紧随掩码。

// MaxPackedIDSize 压缩ID编码后的最大字节数
const MaxPackedIDSize = 9

// PackedIDSize 返回 id 编码后的字节数
func PackedIDSize(id uint64) int {
	n := 1
	for ; id != 0; id >>= 8 {
		if id&0xff != 0 {
			n++
		}
	}
	return n
}

// AppendPackedID 将 id 的压缩编码追加到 dst
func AppendPackedID(dst []byte, id uint64) []byte {
	maskAt := len(dst)
	dst = append(dst, 0)
	for i := 0; i < 8; i++ {
		if b := byte(id >> (8 * i)); b != 0 {
			dst[maskAt] |= 1 << i
			dst = append(dst, b)
		}
	}
	return dst
}

// WritePackedID 写入压缩ID
func WritePackedID(s Sink, id uint64) error {
	var buf [MaxPackedIDSize]byte
	return writeFull(s, AppendPackedID(buf[:0], id))
}

// ReadPackedID 读取压缩ID
func ReadPackedID(src Source) (uint64, error) {
	mask, err := Read[uint8](src)
	if err != nil {
		return 0, errors.WithMessage(err, "decode packed id mask")
	}

	var id uint64
	for i := 0; i < 8; i++ {
		if mask&(1<<i) == 0 {
			continue
		}
		b, err := Read[uint8](src)
		if err != nil {
			return 0, errors.WithMessagef(err, "decode packed id byte %d", i)
		}
		id |= uint64(b) << (8 * i)
	}
	return id, nil
}
