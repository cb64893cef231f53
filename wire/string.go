package wire

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
)

// WriteCString 写入字符串字节和一个结束符 0
func WriteCString(s Sink, str string) error {
	if strings.IndexByte(str, 0) >= 0 {
		return ErrEmbeddedNUL
	}
	if err := writeFull(s, []byte(str)); err != nil {
		return err
	}
	return Write(s, uint8(0))
}

// ReadCString 读取到结束符 0 为止（不含结束符）
// 数据在结束符之前耗尽时返回 ErrUnterminatedString
func ReadCString(src Source) (string, error) {
	if r, ok := src.(*Reader); ok {
		rest := r.Remaining()
		i := bytes.IndexByte(rest, 0)
		if i < 0 {
			return "", errors.WithMessagef(ErrUnterminatedString, "%d bytes without terminator", len(rest))
		}
		str := string(rest[:i])
		r.off += i + 1
		return str, nil
	}

	var sb strings.Builder
	var c [1]byte
	for {
		if src.Len() == 0 {
			return "", errors.WithMessagef(ErrUnterminatedString, "%d bytes without terminator", sb.Len())
		}
		if err := readFull(src, c[:]); err != nil {
			return "", err
		}
		if c[0] == 0 {
			return sb.String(), nil
		}
		sb.WriteByte(c[0])
	}
}
