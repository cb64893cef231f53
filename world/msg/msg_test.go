package msg

import (
	"testing"

	"github.com/godyy/gworld/frame"
	"github.com/godyy/gworld/wire"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const opTestChat = 0x95

type testChatMsg struct {
	sender   uint64
	text     string
	recycled bool
}

func (m *testChatMsg) Opcode() uint32 {
	return opTestChat
}

func (m *testChatMsg) Encode(s wire.Sink) error {
	if err := wire.WritePackedID(s, m.sender); err != nil {
		return errors.WithMessage(err, "encode sender")
	}
	if err := wire.WriteCString(s, m.text); err != nil {
		return errors.WithMessage(err, "encode text")
	}
	return nil
}

func (m *testChatMsg) Decode(src wire.Source) error {
	var err error

	m.sender, err = wire.ReadPackedID(src)
	if err != nil {
		return errors.WithMessage(err, "decode sender")
	}

	m.text, err = wire.ReadCString(src)
	if err != nil {
		return errors.WithMessage(err, "decode text")
	}

	return nil
}

func (m *testChatMsg) Recycle() {
	m.recycled = true
}

func newTestRegistry() *Registry {
	r := NewRegistry(wire.HostOrder)
	r.Register(opTestChat, func() Msg { return &testChatMsg{} })
	return r
}

func decodeFrame(t *testing.T, data []byte) frame.Incoming {
	t.Helper()
	in, status, err := frame.Decode(wire.NewReader(data), wire.HostOrder)
	require.NoError(t, err)
	require.Equal(t, frame.Complete, status)
	return in
}

func TestRegistryRoundTrip(t *testing.T) {
	r := newTestRegistry()
	require.True(t, r.Registered(opTestChat))
	require.Nil(t, r.Create(0x1))

	buf := wire.NewBuffer(0)
	require.NoError(t, r.EncodeMsg(buf, &testChatMsg{sender: 0x600000000000002A, text: "for the horde"}))

	m, err := r.DecodeMsg(decodeFrame(t, buf.Bytes()))
	require.NoError(t, err)
	chat := m.(*testChatMsg)
	require.Equal(t, uint64(0x600000000000002A), chat.sender)
	require.Equal(t, "for the horde", chat.text)

	Recycle(m)
	require.True(t, chat.recycled)
}

func TestRegistryErrors(t *testing.T) {
	r := newTestRegistry()
	require.Panics(t, func() { r.Register(opTestChat, func() Msg { return &testChatMsg{} }) })

	buf := wire.NewBuffer(0)
	require.NoError(t, frame.Build(buf, wire.HostOrder, 0x1, nil))
	_, err := r.DecodeMsg(decodeFrame(t, buf.Bytes()))
	require.True(t, errors.Is(err, ErrUnknownOpcode))

	buf.Reset()
	require.NoError(t, frame.Build(buf, wire.HostOrder, opTestChat, func(b *frame.Builder) error {
		if err := wire.WritePackedID(b, 1); err != nil {
			return err
		}
		return wire.WriteBytes(b, []byte("no terminator"))
	}))
	_, err = r.DecodeMsg(decodeFrame(t, buf.Bytes()))
	require.True(t, errors.Is(err, wire.ErrUnterminatedString))

	buf.Reset()
	require.NoError(t, frame.Build(buf, wire.HostOrder, opTestChat, func(b *frame.Builder) error {
		if err := (&testChatMsg{sender: 1, text: "hi"}).Encode(b); err != nil {
			return err
		}
		return wire.Write(b, uint32(0))
	}))
	_, err = r.DecodeMsg(decodeFrame(t, buf.Bytes()))
	require.True(t, errors.Is(err, ErrTrailingBytes))
}

func TestRegistryRecyclesOnDecodeError(t *testing.T) {
	var created []*testChatMsg
	r := NewRegistry(wire.HostOrder)
	r.Register(opTestChat, func() Msg {
		m := &testChatMsg{}
		created = append(created, m)
		return m
	})

	buf := wire.NewBuffer(0)
	require.NoError(t, frame.Build(buf, wire.HostOrder, opTestChat, func(b *frame.Builder) error {
		return wire.WritePackedID(b, 7)
	}))
	_, err := r.DecodeMsg(decodeFrame(t, buf.Bytes()))
	require.True(t, errors.Is(err, wire.ErrUnterminatedString))

	buf.Reset()
	require.NoError(t, frame.Build(buf, wire.HostOrder, opTestChat, func(b *frame.Builder) error {
		if err := (&testChatMsg{sender: 7, text: "lok'tar"}).Encode(b); err != nil {
			return err
		}
		return wire.Write(b, uint8(1))
	}))
	_, err = r.DecodeMsg(decodeFrame(t, buf.Bytes()))
	require.True(t, errors.Is(err, ErrTrailingBytes))

	require.Len(t, created, 2)
	for _, m := range created {
		require.True(t, m.recycled)
	}
}
