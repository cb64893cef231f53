package session

import (
	"time"

	"github.com/godyy/gworld/frame"
	"github.com/klauspost/compress/flate"
)

const (
	defaultReadBufferSize    = 4096
	defaultSendQueueSize     = 256
	defaultCompressThreshold = 1024
)

type Config struct {
	// 会话失效超时 ms，0 表示不检测
	InactiveTimeout int `yaml:"InactiveTimeout"`

	// 会话读取超时 ms
	ReadTimeout int `yaml:"ReadTimeout"`

	// 会话写入超时 ms
	WriteTimeout int `yaml:"WriteTimeout"`

	// 接收缓冲区初始大小
	ReadBufferSize int `yaml:"ReadBufferSize"`

	// 接收缓冲区中未消费字节的上限，不小于一个最大长度的包
	MaxBufferedSize int `yaml:"MaxBufferedSize"`

	// 会话发送队列大小
	SendQueueSize int `yaml:"SendQueueSize"`

	// 批量数据达到该字节数时压缩发送
	CompressThreshold int `yaml:"CompressThreshold"`

	// 压缩级别 1-9，0 使用默认级别
	CompressLevel int `yaml:"CompressLevel"`

	// 解压后允许的最大字节数
	MaxDecompressedSize int `yaml:"MaxDecompressedSize"`
}

func (c *Config) init() {
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = defaultReadBufferSize
	}

	// 至少容纳一个最大长度的包
	if c.MaxBufferedSize < frame.LengthSize+frame.MaxLength {
		c.MaxBufferedSize = frame.LengthSize + frame.MaxLength
	}

	if c.SendQueueSize <= 0 {
		c.SendQueueSize = defaultSendQueueSize
	}

	if c.CompressThreshold <= 0 {
		c.CompressThreshold = defaultCompressThreshold
	}

	if c.CompressLevel == 0 {
		c.CompressLevel = flate.DefaultCompression
	}

	if c.MaxDecompressedSize <= 0 {
		c.MaxDecompressedSize = 4 * 1024 * 1024
	}
}

func (c *Config) GetInactiveTimeout() time.Duration {
	return time.Duration(c.InactiveTimeout) * time.Millisecond
}

func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Millisecond
}

func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Millisecond
}
