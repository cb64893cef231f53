package session

import (
	"io"
	"net"
	"sync"

	"github.com/godyy/gworld/frame"
	"github.com/godyy/gworld/wire"
	"github.com/godyy/gworld/world/msg"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gworld",
			Subsystem: "session",
			Name:      "frames_total",
			Help:      "Frames received and sent.",
		},
		[]string{"direction"},
	)
	bytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gworld",
			Subsystem: "session",
			Name:      "bytes_total",
			Help:      "Bytes received and sent.",
		},
		[]string{"direction"},
	)
	incompleteTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gworld",
			Subsystem: "session",
			Name:      "incomplete_total",
			Help:      "Reassembly attempts that waited for more bytes.",
		},
	)
	closedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gworld",
			Subsystem: "session",
			Name:      "closed_total",
			Help:      "Closed sessions by reason.",
		},
		[]string{"reason"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gworld",
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently open.",
		},
	)
)

// RegisterMetrics 将会话指标注册到默认 Registerer
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesTotal, bytesTotal, incompleteTotal, closedTotal, activeSessions)
	})
}

func recordFrameIn() {
	framesTotal.WithLabelValues("in").Inc()
}

func recordBytes(direction string, n int) {
	bytesTotal.WithLabelValues(direction).Add(float64(n))
}

func recordFramesOut(n int) {
	framesTotal.WithLabelValues("out").Add(float64(n))
}

// closeReasonLabel 将关闭原因归类为有限的标签值
func closeReasonLabel(reason error) string {
	var netErr net.Error
	switch {
	case reason == nil:
		return "none"
	case errors.Is(reason, ErrServiceClosed):
		return "shutdown"
	case errors.Is(reason, errSessionInactive):
		return "inactive"
	case errors.Is(reason, io.EOF):
		return "eof"
	case errors.Is(reason, frame.ErrFrameTooShort),
		errors.Is(reason, frame.ErrBufferOverflow),
		errors.Is(reason, frame.ErrCompression),
		errors.Is(reason, msg.ErrTrailingBytes),
		errors.Is(reason, wire.ErrShortRead),
		errors.Is(reason, wire.ErrCountExceedsData),
		errors.Is(reason, wire.ErrUnterminatedString):
		return "protocol"
	case errors.As(reason, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "error"
	}
}
