package data

import (
	"strings"

	"github.com/godyy/gworld/wire"
	"github.com/pkg/errors"
)

type DriverConfig struct {
	// 驱动类型
	// redis | memory
	DriverType string `yaml:"DriverType"`

	// Redis驱动配置
	Redis *RedisDriverConfig `yaml:"Redis,omitempty"`
}

// Driver 领域数据驱动
type Driver interface {
	// LoadRealm 读取领域信息
	LoadRealm(id uint32, ri *RealmInfo) error

	// SaveRealm 保存领域信息
	SaveRealm(ri *RealmInfo) error

	// ListRealms 读取全部领域信息
	ListRealms() ([]RealmInfo, error)
}

var ErrInvalidDriverType = errors.New("invalid driver type")
var ErrRealmNotFound = errors.New("realm not found")

// CreateDriver 根据配置创建驱动
func CreateDriver(config *DriverConfig) (Driver, error) {
	switch strings.ToLower(config.DriverType) {
	case DriverRedis:
		if config.Redis == nil {
			return nil, errors.New("redis driver config not specified")
		}
		return NewRedisDriver(config.Redis), nil
	case DriverMemory:
		return NewMemoryDriver(), nil
	default:
		return nil, ErrInvalidDriverType
	}
}

const (
	RealmFlagOffline     = 0x02 // 离线
	RealmFlagRecommended = 0x20 // 推荐
	RealmFlagFull        = 0x80 // 已满
)

// RealmInfo 领域信息，以与领域列表相同的字段编码保存
type RealmInfo struct {
	Id         uint32  // 领域ID
	Name       string  // 名称
	Addr       string  // 世界服地址
	Icon       uint8   // 类型
	Flags      uint8   // 状态标记
	Timezone   uint8   // 时区
	Population float32 // 负载
	UpdatedAt  int64   // 更新时间 unix ms
}

func (ri *RealmInfo) Online() bool {
	return ri.Flags&RealmFlagOffline == 0
}

func (ri *RealmInfo) Encode(s wire.Sink) error {
	if err := wire.Write(s, ri.Id); err != nil {
		return errors.WithMessage(err, "encode Id")
	}
	if err := wire.WriteCString(s, ri.Name); err != nil {
		return errors.WithMessage(err, "encode Name")
	}
	if err := wire.WriteCString(s, ri.Addr); err != nil {
		return errors.WithMessage(err, "encode Addr")
	}
	if err := wire.WriteRange(s, []uint8{ri.Icon, ri.Flags, ri.Timezone}); err != nil {
		return errors.WithMessage(err, "encode Icon/Flags/Timezone")
	}
	if err := wire.Write(s, ri.Population); err != nil {
		return errors.WithMessage(err, "encode Population")
	}
	if err := wire.Write(s, ri.UpdatedAt); err != nil {
		return errors.WithMessage(err, "encode UpdatedAt")
	}
	return nil
}

func (ri *RealmInfo) Decode(src wire.Source) error {
	var err error

	if ri.Id, err = wire.Read[uint32](src); err != nil {
		return errors.WithMessage(err, "decode Id")
	}
	if ri.Name, err = wire.ReadCString(src); err != nil {
		return errors.WithMessage(err, "decode Name")
	}
	if ri.Addr, err = wire.ReadCString(src); err != nil {
		return errors.WithMessage(err, "decode Addr")
	}

	var b [3]uint8
	if err = wire.ReadRange(src, b[:]); err != nil {
		return errors.WithMessage(err, "decode Icon/Flags/Timezone")
	}
	ri.Icon, ri.Flags, ri.Timezone = b[0], b[1], b[2]

	if ri.Population, err = wire.Read[float32](src); err != nil {
		return errors.WithMessage(err, "decode Population")
	}
	if ri.UpdatedAt, err = wire.Read[int64](src); err != nil {
		return errors.WithMessage(err, "decode UpdatedAt")
	}
	return nil
}

func encodeRealm(ri *RealmInfo) ([]byte, error) {
	buf := wire.NewBuffer(64)
	if err := ri.Encode(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRealm(b []byte, ri *RealmInfo) error {
	src := wire.NewReader(b)
	if err := ri.Decode(src); err != nil {
		return err
	}
	if !src.EOF() {
		return errors.Errorf("realm info has %d trailing bytes", src.Len())
	}
	return nil
}
