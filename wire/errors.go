package wire

import "github.com/pkg/errors"

var (
	// ErrShortRead 剩余字节不足以完成解码
	ErrShortRead = errors.New("wire: short read")

	// ErrCountOverflow 序列长度超出计数前缀类型的表示范围
	ErrCountOverflow = errors.New("wire: count overflows prefix type")

	// ErrCountExceedsData 声明的元素数量超过剩余字节所能容纳的数量
	ErrCountExceedsData = errors.New("wire: declared count exceeds remaining data")

	// ErrUnterminatedString 字符串缺少结束符
	ErrUnterminatedString = errors.New("wire: unterminated string")

	// ErrEmbeddedNUL 字符串内部包含结束符
	ErrEmbeddedNUL = errors.New("wire: string contains NUL")

	// ErrOverwriteRange 回填位置不在已写入的范围内
	ErrOverwriteRange = errors.New("wire: overwrite out of written range")
)
