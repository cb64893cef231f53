package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godyy/gnet"
	"github.com/godyy/gutils/log"
	"github.com/godyy/gworld/frame"
	"github.com/godyy/gworld/wire"
	"github.com/godyy/gworld/world/msg"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrServiceStarted = errors.New("service started")
var ErrServiceClosed = errors.New("service closed")

const (
	serviceStarted = 1
	serviceClosed  = 2
)

// Handler 会话事件处理器
type Handler interface {
	// OnSessionOpened 会话建立，返回错误时关闭会话
	OnSessionOpened(*Session) error

	// OnSessionFrame 收到完整的包，Incoming.Body 只在调用期间有效
	// 返回错误时关闭会话
	OnSessionFrame(*Session, frame.Incoming) error

	// OnSessionClosed 会话关闭
	OnSessionClosed(*Session, error)
}

type ServiceConfig struct {
	// 监听重试延迟 ms
	RetryDelayOfListening int32 `yaml:"RetryDelayOfListening"`

	// 会话相关配置
	Session Config `yaml:"Session"`
}

func (c *ServiceConfig) GetRetryDelayOfListening() time.Duration {
	return time.Duration(c.RetryDelayOfListening) * time.Millisecond
}

type ServiceParams struct {
	Addr     string         // 监听地址
	Order    wire.ByteOrder // 字节序策略
	MsgCodec msg.Codec      // 消息编解码器
	Handler  Handler        // 会话事件处理器
	Logger   log.Logger     // 日志
}

func (p *ServiceParams) check() error {
	if p.MsgCodec == nil {
		return errors.New("params: MsgCodec not specified")
	}

	if p.Handler == nil {
		return errors.New("params: Handler not specified")
	}

	if p.Logger == nil {
		return errors.New("params: Logger not specified")
	}

	return nil
}

// Service 接受客户端连接并管理会话
type Service struct {
	mtx      sync.Mutex
	addr     string             // 监听地址
	order    wire.ByteOrder     // 字节序策略
	config   *ServiceConfig     // 配置
	codec    msg.Codec          // 消息编解器
	handler  Handler            // 会话处理器
	logger   log.Logger         // 日志
	state    int32              // 状态
	listener *gnet.TCPListener  // 网络监听器
	nextId   atomic.Int64       // 会话ID
	sessions map[int64]*Session // 已建立的会话
}

func NewService(config *ServiceConfig, params ServiceParams) (*Service, error) {
	if err := params.check(); err != nil {
		return nil, err
	}

	config.Session.init()

	s := &Service{
		addr:     params.Addr,
		order:    params.Order,
		config:   config,
		codec:    params.MsgCodec,
		handler:  params.Handler,
		logger:   params.Logger.Named("session"),
		sessions: map[int64]*Session{},
	}
	return s, nil
}

// Start 启动监听
func (s *Service) Start() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.state >= serviceStarted {
		return ErrServiceStarted
	}

	s.state = serviceStarted
	s.logger.Info("service started")
	if s.addr != "" {
		go s.listen()
	}
	return nil
}

func (s *Service) isClosed() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.state == serviceClosed
}

// Close 关闭服务和全部会话
func (s *Service) Close() error {
	s.mtx.Lock()
	if s.state == serviceClosed {
		s.mtx.Unlock()
		return nil
	}

	s.state = serviceClosed
	if s.listener != nil {
		s.listener.Close()
	}

	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mtx.Unlock()

	var err error
	for _, session := range sessions {
		if cerr := session.Close(ErrServiceClosed); cerr != nil && !errors.Is(cerr, errSessionClosed) {
			err = multierr.Append(err, errors.WithMessagef(cerr, "close session %d", session.id))
		}
	}

	s.logger.Info("service closed")
	return err
}

// SessionCount 当前会话数量
func (s *Service) SessionCount() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.sessions)
}

// GetSession 获取指定会话
func (s *Service) GetSession(id int64) *Session {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.sessions[id]
}

// Serve 在已建立的连接上启动会话
func (s *Service) Serve(conn net.Conn) (*Session, error) {
	s.mtx.Lock()
	if s.state != serviceStarted {
		s.mtx.Unlock()
		conn.Close()
		return nil, ErrServiceClosed
	}
	session := newSession(s.nextId.Add(1), s, conn, s.logger)
	s.sessions[session.id] = session
	s.mtx.Unlock()

	activeSessions.Inc()

	if err := session.start(); err != nil {
		session.Close(err)
		return nil, err
	}

	if err := s.handler.OnSessionOpened(session); err != nil {
		session.Close(errors.WithMessage(err, "open"))
		return nil, err
	}

	return session, nil
}

func (s *Service) createListener() bool {
	retryDelay := s.config.GetRetryDelayOfListening()

	for {
		listener, err := gnet.ListenTCP("tcp", s.addr)
		if err == nil {
			s.mtx.Lock()
			if s.state == serviceClosed {
				s.mtx.Unlock()
				listener.Close()
				return false
			}
			s.listener = listener
			s.mtx.Unlock()
			s.logger.Info("service listening...")
			return true
		}

		if s.isClosed() {
			return false
		}

		// 监听失败, 稍后重试
		s.logger.Errorf("service listening failed -> %v, retry %.2f secs later", err, retryDelay.Seconds())
		time.Sleep(retryDelay)
	}
}

// 监听过程
func (s *Service) listen() {
	for !s.isClosed() {
		if !s.createListener() {
			return
		}

		err := s.listener.Start(func(conn net.Conn) {
			go func(conn net.Conn) {
				if _, err := s.Serve(conn); err != nil {
					s.logger.ErrorFields("serve connection", zap.Any("Remote", conn.RemoteAddr()), zap.Error(err))
				}
			}(conn)
		})
		if err != nil {
			s.logger.ErrorFields("service listening stop", zap.Error(err))
		}
	}
}

// onSessionFrame 接收数据包事件
func (s *Service) onSessionFrame(session *Session, in frame.Incoming) error {
	return s.handler.OnSessionFrame(session, in)
}

// onSessionClosed 接收会话关闭事件
func (s *Service) onSessionClosed(session *Session, reason error) {
	s.mtx.Lock()
	if ss := s.sessions[session.id]; ss == session {
		delete(s.sessions, session.id)
		activeSessions.Dec()
	}
	s.mtx.Unlock()

	s.handler.OnSessionClosed(session, reason)
}
