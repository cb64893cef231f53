package world

import (
	"github.com/godyy/gutils/log"
	"github.com/godyy/gworld/frame"
	"github.com/godyy/gworld/world/msg"
	"github.com/godyy/gworld/world/session"
)

// MsgHandler 消息处理函数
type MsgHandler func(*session.Session, msg.Msg) error

// FrameHandler 原始包处理函数，Incoming.Body 只在调用期间有效
type FrameHandler func(*session.Session, frame.Incoming) error

// Handler 会话生命周期回调
type Handler interface {
	OnSessionOpened(*session.Session) error
	OnSessionClosed(*session.Session, error)
}

// dispatcher 按操作码分发入站包，实现 session.Handler
type dispatcher struct {
	registry      *msg.Registry
	msgHandlers   map[uint32]MsgHandler
	frameHandlers map[uint32]FrameHandler
	handler       Handler
	logger        log.Logger
}

func newDispatcher(registry *msg.Registry, handler Handler, logger log.Logger) *dispatcher {
	return &dispatcher{
		registry:      registry,
		msgHandlers:   map[uint32]MsgHandler{},
		frameHandlers: map[uint32]FrameHandler{},
		handler:       handler,
		logger:        logger,
	}
}

func (d *dispatcher) handle(opcode uint32, h MsgHandler) {
	d.msgHandlers[opcode] = h
}

func (d *dispatcher) handleFrame(opcode uint32, h FrameHandler) {
	d.frameHandlers[opcode] = h
}

func (d *dispatcher) OnSessionOpened(s *session.Session) error {
	if d.handler != nil {
		return d.handler.OnSessionOpened(s)
	}
	return nil
}

func (d *dispatcher) OnSessionFrame(s *session.Session, in frame.Incoming) error {
	if h := d.frameHandlers[in.Opcode]; h != nil {
		return h(s, in)
	}

	h := d.msgHandlers[in.Opcode]
	if h == nil {
		// 未处理的操作码忽略
		d.logger.Warnf("session %d unhandled opcode %#x, %d bytes", s.Id(), in.Opcode, len(in.Body))
		return nil
	}

	m, err := d.registry.DecodeMsg(in)
	if err != nil {
		return err
	}
	defer msg.Recycle(m)

	return h(s, m)
}

func (d *dispatcher) OnSessionClosed(s *session.Session, reason error) {
	if d.handler != nil {
		d.handler.OnSessionClosed(s, reason)
	}
}
