package world

import (
	"io"
	"sync"
	"time"

	"github.com/godyy/gutils/log"
	"github.com/godyy/gworld/frame"
	"github.com/godyy/gworld/wire"
	"github.com/godyy/gworld/world/data"
	"github.com/godyy/gworld/world/msg"
	"github.com/godyy/gworld/world/session"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type RealmConfig struct {
	// 领域ID
	Id uint32 `yaml:"Id"`

	// 领域名称
	Name string `yaml:"Name"`

	// 监听地址，同时发布到领域列表
	Addr string `yaml:"Addr"`

	// 类型
	Icon uint8 `yaml:"Icon"`

	// 时区
	Timezone uint8 `yaml:"Timezone"`

	// 会话容量，用于计算负载
	Capacity int `yaml:"Capacity"`
}

type Config struct {
	// 领域信息
	Realm RealmConfig `yaml:"Realm"`

	// 网络服务相关配置
	Service *session.ServiceConfig `yaml:"Service"`

	// 数据驱动相关配置
	DataDriver *data.DriverConfig `yaml:"DataDriver"`

	// 领域负载刷新间隔 ms，0 表示只在启停时发布
	RealmUpdateInterval int `yaml:"RealmUpdateInterval"`
}

func (c *Config) GetRealmUpdateInterval() time.Duration {
	return time.Duration(c.RealmUpdateInterval) * time.Millisecond
}

type Params struct {
	Registry *msg.Registry // 消息注册表，为空时新建
	Handler  Handler       // 会话生命周期回调，可为空
	Logger   log.Logger    // 日志工具
}

func (p *Params) check() error {
	if p.Logger == nil {
		return errors.New("params: Logger not specified")
	}
	return nil
}

// World 世界服：网络服务、消息分发与领域信息发布
type World struct {
	config     *Config          // 配置数据
	logger     log.Logger       // 日志
	registry   *msg.Registry    // 消息注册表
	dispatcher *dispatcher      // 消息分发
	service    *session.Service // 客户端网络服务
	dd         data.Driver      // 领域数据驱动
	chStop     chan struct{}    // 停止领域刷新
	wgUpdater  sync.WaitGroup
}

func CreateWorld(config *Config, params Params) (*World, error) {
	if err := params.check(); err != nil {
		return nil, err
	}

	logger := params.Logger.
		Named("world").
		WithFields(zap.Dict(
			"realm",
			zap.Uint32("Id", config.Realm.Id),
			zap.String("Name", config.Realm.Name),
			zap.String("Addr", config.Realm.Addr),
		))

	if config.Service == nil {
		config.Service = &session.ServiceConfig{}
	}
	if config.DataDriver == nil {
		config.DataDriver = &data.DriverConfig{DriverType: data.DriverMemory}
	}

	registry := params.Registry
	if registry == nil {
		registry = msg.NewRegistry(wire.HostOrder)
	}

	w := &World{
		config:   config,
		logger:   logger,
		registry: registry,
	}
	w.dispatcher = newDispatcher(registry, params.Handler, logger)

	dd, err := data.CreateDriver(config.DataDriver)
	if err != nil {
		return nil, errors.WithMessage(err, "create data driver")
	}
	w.dd = dd

	w.service, err = session.NewService(
		config.Service,
		session.ServiceParams{
			Addr:     config.Realm.Addr,
			Order:    wire.HostOrder,
			MsgCodec: registry,
			Handler:  w.dispatcher,
			Logger:   logger,
		},
	)
	if err != nil {
		return nil, err
	}

	return w, nil
}

// Handle 注册操作码对应的消息和处理函数，需在 Start 之前调用
func (w *World) Handle(opcode uint32, creator func() msg.Msg, h MsgHandler) {
	w.registry.Register(opcode, creator)
	w.dispatcher.handle(opcode, h)
}

// HandleFrame 注册直接处理原始包的函数，需在 Start 之前调用
func (w *World) HandleFrame(opcode uint32, h FrameHandler) {
	w.dispatcher.handleFrame(opcode, h)
}

// Start 发布领域信息并开始接受连接
func (w *World) Start() error {
	if err := w.updateRealm(false); err != nil {
		return errors.WithMessage(err, "publish realm")
	}
	if err := w.service.Start(); err != nil {
		return err
	}
	if interval := w.config.GetRealmUpdateInterval(); interval > 0 {
		w.chStop = make(chan struct{})
		w.wgUpdater.Add(1)
		go w.realmUpdater(interval)
	}
	w.logger.Info("world started")
	return nil
}

// Stop 关闭网络服务并将领域标记为离线，之后释放数据驱动
func (w *World) Stop() error {
	if w.chStop != nil {
		close(w.chStop)
		w.wgUpdater.Wait()
		w.chStop = nil
	}
	err := w.service.Close()
	err = multierr.Append(err, w.updateRealm(true))
	if c, ok := w.dd.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	w.logger.Info("world stopped")
	return err
}

func (w *World) Service() *session.Service {
	return w.service
}

func (w *World) Registry() *msg.Registry {
	return w.registry
}

// NewTemplate 创建使用本服字节序的静态包缓存
func (w *World) NewTemplate(opcode uint32, build func(*frame.Builder) error) *frame.Template {
	return frame.NewTemplate(wire.HostOrder, opcode, build)
}

// GetRealm 读取领域信息
func (w *World) GetRealm(id uint32, ri *data.RealmInfo) error {
	return w.dd.LoadRealm(id, ri)
}

// ListRealms 读取全部领域信息
func (w *World) ListRealms() ([]data.RealmInfo, error) {
	return w.dd.ListRealms()
}

// UpdateRealm 以当前会话数刷新发布的负载
func (w *World) UpdateRealm() error {
	return w.updateRealm(false)
}

// realmUpdater 定时刷新领域负载
func (w *World) realmUpdater(interval time.Duration) {
	defer w.wgUpdater.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.updateRealm(false); err != nil {
				w.logger.ErrorFields("update realm", zap.Error(err))
			}
		case <-w.chStop:
			return
		}
	}
}

func (w *World) updateRealm(offline bool) error {
	rc := &w.config.Realm
	ri := data.RealmInfo{
		Id:        rc.Id,
		Name:      rc.Name,
		Addr:      rc.Addr,
		Icon:      rc.Icon,
		Timezone:  rc.Timezone,
		UpdatedAt: time.Now().UnixMilli(),
	}

	sessions := w.service.SessionCount()
	if rc.Capacity > 0 {
		ri.Population = float32(sessions) / float32(rc.Capacity)
		if sessions >= rc.Capacity {
			ri.Flags |= data.RealmFlagFull
		}
	}
	if offline {
		ri.Flags |= data.RealmFlagOffline
	}

	return w.dd.SaveRealm(&ri)
}
