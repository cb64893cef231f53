package data

import (
	"context"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const DriverRedis = "redis"

type RedisDriverConfig struct {
	// redis服务地址
	// 非cluster模式读取[0]
	Addr []string `yaml:"Addr"`

	// redis服务密码
	Password string `yaml:"Password"`

	// redis服务器数据库编号
	DB int `yaml:"DB"`

	// redis客户端连接池大小
	PoolSize int `yaml:"PoolSize"`

	// 是否cluster模式
	IsCluster bool `yaml:"IsCluster"`

	// 用于读取/保存领域信息的redis-key
	KeyOfRealmInfo string `yaml:"KeyOfRealmInfo"`
}

type RedisDriver struct {
	config   *RedisDriverConfig
	redisCli redis.UniversalClient
	ctx      context.Context
}

func NewRedisDriver(config *RedisDriverConfig) *RedisDriver {
	dd := &RedisDriver{
		config: config,
		ctx:    context.Background(),
	}

	if config.IsCluster {
		dd.redisCli = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    config.Addr,
			Password: config.Password,
			PoolSize: config.PoolSize,
		})
	} else {
		dd.redisCli = redis.NewClient(&redis.Options{
			Addr:     config.Addr[0],
			Password: config.Password,
			DB:       config.DB,
			PoolSize: config.PoolSize,
		})
	}

	return dd
}

func realmField(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (d *RedisDriver) LoadRealm(id uint32, ri *RealmInfo) error {
	b, err := d.redisCli.HGet(d.ctx, d.config.KeyOfRealmInfo, realmField(id)).Bytes()
	if err == redis.Nil {
		return ErrRealmNotFound
	}
	if err != nil {
		return err
	}
	return decodeRealm(b, ri)
}

func (d *RedisDriver) SaveRealm(ri *RealmInfo) error {
	b, err := encodeRealm(ri)
	if err != nil {
		return err
	}
	_, err = d.redisCli.HSet(d.ctx, d.config.KeyOfRealmInfo, realmField(ri.Id), b).Result()
	return err
}

func (d *RedisDriver) ListRealms() ([]RealmInfo, error) {
	all, err := d.redisCli.HGetAll(d.ctx, d.config.KeyOfRealmInfo).Result()
	if err != nil {
		return nil, err
	}

	realms := make([]RealmInfo, 0, len(all))
	for field, value := range all {
		var ri RealmInfo
		if err := decodeRealm([]byte(value), &ri); err != nil {
			return nil, errors.WithMessagef(err, "decode realm %s", field)
		}
		realms = append(realms, ri)
	}
	sortRealms(realms)
	return realms, nil
}

// Close 关闭redis客户端
func (d *RedisDriver) Close() error {
	return d.redisCli.Close()
}
