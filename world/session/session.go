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
	"go.uber.org/zap"
)

const (
	sessionStarted = 1
	sessionClosed  = 2
)

const (
	OpcodePing = 0x1DC // 客户端心跳，包体：序号 uint32，延迟 uint32
	OpcodePong = 0x1DD // 心跳应答，包体：序号 uint32
)

var errSessionStarted = errors.New("session started")
var errSessionNotStarted = errors.New("session not started")
var errSessionClosed = errors.New("session closed")
var errSessionInactive = errors.New("session inactive")
var errSendQueueFull = errors.New("session send queue full")
var errSendTimeout = errors.New("session send timeout")

// Session 客户端网络会话
// 接收协程独占 Reassembler；发送的包在调用方协程中构造完成后进入发送队列。
type Session struct {
	mtx           sync.Mutex
	id            int64    // ID
	state         int32    // 状态
	service       *Service // 所属service
	conn          net.Conn // 底层连接
	ra            *frame.Reassembler
	sendQueue     chan *gnet.Packet // 待发送的完整包
	chClosed      chan struct{}     // 关闭通知
	activeAt      atomic.Int64      // 最近一次收到数据的时间
	latency       atomic.Uint32     // 客户端上报的延迟 ms
	inactiveTimer *time.Timer       // 失效定时器
	logger        log.Logger        // 日志
}

func newSession(id int64, service *Service, conn net.Conn, logger log.Logger) *Session {
	config := &service.config.Session
	s := &Session{
		id:        id,
		service:   service,
		conn:      conn,
		ra:        frame.NewReassembler(service.order, config.ReadBufferSize, config.MaxBufferedSize),
		sendQueue: make(chan *gnet.Packet, config.SendQueueSize),
		chClosed:  make(chan struct{}),
		logger:    logger.WithFields(zap.Dict("session", zap.Int64("Id", id), zap.Any("Remote", conn.RemoteAddr()))),
	}
	return s
}

// start 启动会话
func (s *Session) start() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.state != 0 {
		return errSessionStarted
	}

	s.active()
	s.state = sessionStarted
	go s.receiveLoop()
	go s.sendLoop()
	s.logger.Info("session started")
	return nil
}

func (s *Session) Id() int64 {
	return s.id
}

func (s *Session) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Latency 客户端最近一次心跳上报的延迟
func (s *Session) Latency() time.Duration {
	return time.Duration(s.latency.Load()) * time.Millisecond
}

// Closed 会话关闭后可读
func (s *Session) Closed() <-chan struct{} {
	return s.chClosed
}

// Close 关闭会话
func (s *Session) Close(reason error) error {
	s.mtx.Lock()
	if s.state == sessionClosed {
		s.mtx.Unlock()
		return errSessionClosed
	}
	err := s.doClose()
	s.mtx.Unlock()

	closedTotal.WithLabelValues(closeReasonLabel(reason)).Inc()
	s.logger.InfoFields("session closed", zap.Error(reason))
	s.service.onSessionClosed(s, reason)
	return err
}

func (s *Session) doClose() error {
	s.stopInactiveTimer()
	s.state = sessionClosed
	close(s.chClosed)
	return s.conn.Close()
}

// active 会话激活
func (s *Session) active() {
	s.activeAt.Store(time.Now().UnixNano())
	s.startInactiveTimer()
}

func (s *Session) startInactiveTimer() {
	inactiveTimeout := s.service.config.Session.GetInactiveTimeout()
	if inactiveTimeout <= 0 {
		return
	}

	if s.inactiveTimer == nil {
		s.inactiveTimer = time.AfterFunc(inactiveTimeout, s.onInactiveTimer)
	} else {
		s.inactiveTimer.Stop()
		s.inactiveTimer.Reset(inactiveTimeout)
	}
}

func (s *Session) stopInactiveTimer() {
	if s.inactiveTimer != nil {
		s.inactiveTimer.Stop()
		s.inactiveTimer = nil
	}
}

func (s *Session) onInactiveTimer() {
	s.mtx.Lock()
	if s.state == sessionClosed {
		s.mtx.Unlock()
		return
	}

	inactiveTimeout := s.service.config.Session.GetInactiveTimeout()
	if time.Now().UnixNano()-s.activeAt.Load() < int64(inactiveTimeout) {
		s.startInactiveTimer()
		s.mtx.Unlock()
		return
	}
	s.mtx.Unlock()

	s.Close(errSessionInactive)
}

// receiveLoop 读取字节流并分发完整的包
func (s *Session) receiveLoop() {
	readTimeout := s.service.config.Session.GetReadTimeout()

	for {
		if readTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		}

		n, err := s.ra.Fill(s.conn)
		if n > 0 {
			recordBytes("in", n)
			s.mtx.Lock()
			if s.state == sessionStarted {
				s.active()
			}
			s.mtx.Unlock()

			if derr := s.dispatch(); derr != nil {
				s.Close(derr)
				return
			}
		}

		if err != nil {
			s.Close(errors.WithMessage(err, "receive"))
			return
		}
	}
}

// dispatch 取出缓冲区中全部完整的包；包体视图在返回前使用完毕
func (s *Session) dispatch() error {
	for {
		in, status, err := s.ra.Next()
		if err != nil {
			return errors.WithMessage(err, "reassemble")
		}
		if status == frame.Incomplete {
			if s.ra.Buffered() > 0 {
				incompleteTotal.Inc()
			}
			return nil
		}

		recordFrameIn()
		if in.Opcode == OpcodePing {
			if err := s.onPing(in); err != nil {
				return err
			}
			continue
		}

		if err := s.service.onSessionFrame(s, in); err != nil {
			return errors.WithMessagef(err, "handle opcode %#x", in.Opcode)
		}
	}
}

func (s *Session) onPing(in frame.Incoming) error {
	src := in.Source()

	serial, err := wire.Read[uint32](src)
	if err != nil {
		return errors.WithMessage(err, "decode ping serial")
	}

	latency, err := wire.Read[uint32](src)
	if err != nil {
		return errors.WithMessage(err, "decode ping latency")
	}
	s.latency.Store(latency)

	return s.SendFrame(OpcodePong, func(b *frame.Builder) error {
		return wire.Write(b, serial)
	})
}

func (s *Session) sendLoop() {
	writeTimeout := s.service.config.Session.GetWriteTimeout()

	for {
		select {
		case p := <-s.sendQueue:
			if writeTimeout > 0 {
				s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			}
			n, err := p.WriteTo(s.conn)
			gnet.PutPacket(p)
			recordBytes("out", int(n))
			if err != nil {
				s.Close(errors.WithMessage(err, "send"))
				s.drainSendQueue()
				return
			}
		case <-s.chClosed:
			s.drainSendQueue()
			return
		}
	}
}

// drainSendQueue 回收关闭后仍在队列中的包
func (s *Session) drainSendQueue() {
	for {
		select {
		case p := <-s.sendQueue:
			gnet.PutPacket(p)
		default:
			return
		}
	}
}

// enqueue 将构造完成的包放入发送队列，失败时回收 p
// 未指定超时时队列满立即返回错误
func (s *Session) enqueue(p *gnet.Packet, frames int, timeout ...time.Duration) error {
	if err := s.doEnqueue(p, timeout...); err != nil {
		gnet.PutPacket(p)
		return err
	}
	recordFramesOut(frames)
	return nil
}

func (s *Session) doEnqueue(p *gnet.Packet, timeout ...time.Duration) error {
	select {
	case <-s.chClosed:
		return errSessionClosed
	default:
	}

	if len(timeout) == 0 || timeout[0] <= 0 {
		select {
		case s.sendQueue <- p:
			return nil
		case <-s.chClosed:
			return errSessionClosed
		default:
			return errSendQueueFull
		}
	}

	timer := time.NewTimer(timeout[0])
	defer timer.Stop()
	select {
	case s.sendQueue <- p:
		return nil
	case <-s.chClosed:
		return errSessionClosed
	case <-timer.C:
		return errSendTimeout
	}
}

func (s *Session) checkStarted() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	switch s.state {
	case sessionStarted:
		return nil
	case sessionClosed:
		return errSessionClosed
	default:
		return errSessionNotStarted
	}
}

// SendFrame 构造操作码为 opcode 的包并发送，包体由 fn 写入
func (s *Session) SendFrame(opcode uint32, fn func(*frame.Builder) error, timeout ...time.Duration) error {
	if err := s.checkStarted(); err != nil {
		return err
	}

	p := gnet.GetPacket()
	if err := frame.Build(wire.WrapPacket(p), s.service.order, opcode, fn); err != nil {
		gnet.PutPacket(p)
		return err
	}
	return s.enqueue(p, 1, timeout...)
}

// SendMsg 编码并发送消息
func (s *Session) SendMsg(m msg.Msg, timeout ...time.Duration) error {
	if m == nil {
		return nil
	}

	defer msg.Recycle(m)

	if err := s.checkStarted(); err != nil {
		return err
	}

	p := gnet.GetPacket()
	if err := s.service.codec.EncodeMsg(wire.WrapPacket(p), m); err != nil {
		gnet.PutPacket(p)
		return errors.WithMessage(err, "encode msg")
	}
	return s.enqueue(p, 1, timeout...)
}

// SendTemplate 发送缓存的静态包
func (s *Session) SendTemplate(t *frame.Template, timeout ...time.Duration) error {
	if err := s.checkStarted(); err != nil {
		return err
	}

	p := gnet.GetPacket()
	if err := t.CopyTo(wire.WrapPacket(p)); err != nil {
		gnet.PutPacket(p)
		return errors.WithMessage(err, "copy template")
	}
	return s.enqueue(p, 1, timeout...)
}

// SendBulk 发送批量数据，达到压缩阈值时以 compressedOpcode 压缩发送，否则以 opcode 原样发送
func (s *Session) SendBulk(opcode, compressedOpcode uint32, fn func(wire.Sink) error, timeout ...time.Duration) error {
	if err := s.checkStarted(); err != nil {
		return err
	}

	config := &s.service.config.Session
	rp := gnet.GetPacket(1024)
	defer gnet.PutPacket(rp)

	raw := wire.WrapPacket(rp)
	if err := fn(raw); err != nil {
		return errors.WithMessagef(err, "encode bulk body of opcode %#x", opcode)
	}

	p := gnet.GetPacket(raw.Len()/2 + frame.HeaderSize)
	buf := wire.WrapPacket(p)
	var err error
	if raw.Len() >= config.CompressThreshold {
		err = frame.BuildCompressedBytes(buf, s.service.order, compressedOpcode, config.CompressLevel, raw.Bytes())
	} else {
		err = frame.Build(buf, s.service.order, opcode, func(b *frame.Builder) error {
			return wire.WriteBytes(b, raw.Bytes())
		})
	}
	if err != nil {
		gnet.PutPacket(p)
		return err
	}
	return s.enqueue(p, 1, timeout...)
}

// Decompress 解压收到的批量压缩包体
func (s *Session) Decompress(in frame.Incoming) (*wire.Reader, error) {
	return in.Decompress(s.service.config.Session.MaxDecompressedSize)
}
