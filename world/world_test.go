package world

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/godyy/gutils/log"
	"github.com/godyy/gworld/frame"
	"github.com/godyy/gworld/wire"
	"github.com/godyy/gworld/world/data"
	"github.com/godyy/gworld/world/msg"
	"github.com/godyy/gworld/world/session"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func testConfig() Config {
	return Config{
		Realm: RealmConfig{
			Id:       1,
			Name:     "Azeroth",
			Addr:     "",
			Capacity: 100,
		},
		Service: &session.ServiceConfig{
			RetryDelayOfListening: 5000,
			Session: session.Config{
				InactiveTimeout: 600000,
				ReadTimeout:     60000,
				WriteTimeout:    60000,
				ReadBufferSize:  8192,
				SendQueueSize:   100,
			},
		},
		DataDriver: &data.DriverConfig{
			DriverType: data.DriverMemory,
		},
		RealmUpdateInterval: 60000,
	}
}

func TestConfig(t *testing.T) {
	config := testConfig()
	config.DataDriver = &data.DriverConfig{
		DriverType: "redis",
		Redis: &data.RedisDriverConfig{
			Addr:           []string{"127.0.0.1:6379"},
			Password:       "123456",
			KeyOfRealmInfo: "realm_info",
		},
	}
	dir := t.TempDir()

	configBytes, err := yaml.Marshal(config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), configBytes, 0o644))

	var fromYaml Config
	require.NoError(t, yaml.Unmarshal(configBytes, &fromYaml))
	require.Equal(t, config, fromYaml)

	file, err := os.Create(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	require.NoError(t, toml.NewEncoder(file).Encode(config))
	file.Close()

	var fromToml Config
	_, err = toml.DecodeFile(filepath.Join(dir, "config.toml"), &fromToml)
	require.NoError(t, err)
	require.Equal(t, config.Realm, fromToml.Realm)
	require.Equal(t, config.DataDriver.Redis.KeyOfRealmInfo, fromToml.DataDriver.Redis.KeyOfRealmInfo)
}

const opTestEmote = 0x102

type testEmoteMsg struct {
	Emote  uint32
	Target uint64
}

func (m *testEmoteMsg) Opcode() uint32 {
	return opTestEmote
}

func (m *testEmoteMsg) Encode(s wire.Sink) error {
	if err := wire.Write(s, m.Emote); err != nil {
		return errors.WithMessage(err, "encode Emote")
	}
	if err := wire.WritePackedID(s, m.Target); err != nil {
		return errors.WithMessage(err, "encode Target")
	}
	return nil
}

func (m *testEmoteMsg) Decode(src wire.Source) error {
	var err error

	m.Emote, err = wire.Read[uint32](src)
	if err != nil {
		return errors.WithMessage(err, "decode Emote")
	}

	m.Target, err = wire.ReadPackedID(src)
	if err != nil {
		return errors.WithMessage(err, "decode Target")
	}

	return nil
}

type testHandler struct {
	opened chan *session.Session
	closed chan error
}

func (h *testHandler) OnSessionOpened(s *session.Session) error {
	h.opened <- s
	return nil
}

func (h *testHandler) OnSessionClosed(s *session.Session, reason error) {
	h.closed <- reason
}

func TestWorld(t *testing.T) {
	logger, err := log.CreateLogger(&log.Config{
		Level:           log.WarnLevel,
		EnableCaller:    true,
		CallerSkip:      0,
		Development:     true,
		EnableStdOutput: true,
	})
	require.NoError(t, err)

	h := &testHandler{opened: make(chan *session.Session, 1), closed: make(chan error, 1)}
	config := testConfig()
	w, err := CreateWorld(&config, Params{Handler: h, Logger: logger})
	require.NoError(t, err)

	emotes := make(chan testEmoteMsg, 1)
	w.Handle(opTestEmote, func() msg.Msg { return &testEmoteMsg{} }, func(s *session.Session, m msg.Msg) error {
		emotes <- *m.(*testEmoteMsg)
		return s.SendMsg(&testEmoteMsg{Emote: m.(*testEmoteMsg).Emote, Target: 0})
	})

	tpl := w.NewTemplate(0x1A8, func(b *frame.Builder) error {
		return wire.WriteRange(b, make([]uint32, 8))
	})
	w.HandleFrame(0x1A7, func(s *session.Session, in frame.Incoming) error {
		return s.SendTemplate(tpl)
	})

	require.NoError(t, w.Start())

	var ri data.RealmInfo
	require.NoError(t, w.GetRealm(1, &ri))
	require.True(t, ri.Online())
	require.Zero(t, ri.Population)
	require.Equal(t, "Azeroth", ri.Name)

	server, client := net.Pipe()
	defer client.Close()
	_, err = w.Service().Serve(server)
	require.NoError(t, err)
	<-h.opened

	require.NoError(t, w.UpdateRealm())
	require.NoError(t, w.GetRealm(1, &ri))
	require.InDelta(t, 0.01, ri.Population, 1e-6)

	out := wire.NewBuffer(0)
	require.NoError(t, w.Registry().EncodeMsg(out, &testEmoteMsg{Emote: 34, Target: 0xF130000000001234}))
	require.NoError(t, frame.Build(out, wire.HostOrder, 0x1A7, nil))
	require.NoError(t, frame.Build(out, wire.HostOrder, 0x7777, nil))
	_, err = client.Write(out.Bytes())
	require.NoError(t, err)

	select {
	case m := <-emotes:
		require.Equal(t, testEmoteMsg{Emote: 34, Target: 0xF130000000001234}, m)
	case <-time.After(5 * time.Second):
		t.Fatal("emote not handled")
	}

	ra := frame.NewReassembler(wire.HostOrder, 0, 0)
	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	var opcodes []uint32
	for len(opcodes) < 2 {
		in, status, err := ra.Next()
		require.NoError(t, err)
		if status == frame.Incomplete {
			_, err = ra.Fill(client)
			require.NoError(t, err)
			continue
		}
		opcodes = append(opcodes, in.Opcode)
	}
	require.Equal(t, []uint32{opTestEmote, 0x1A8}, opcodes)

	require.NoError(t, w.Stop())
	select {
	case reason := <-h.closed:
		require.True(t, errors.Is(reason, session.ErrServiceClosed))
	case <-time.After(5 * time.Second):
		t.Fatal("session not closed")
	}

	require.NoError(t, w.GetRealm(1, &ri))
	require.False(t, ri.Online())

	realms, err := w.ListRealms()
	require.NoError(t, err)
	require.Len(t, realms, 1)
}

func TestWorldRealmUpdater(t *testing.T) {
	logger, err := log.CreateLogger(&log.Config{
		Level:           log.WarnLevel,
		EnableCaller:    true,
		CallerSkip:      0,
		Development:     true,
		EnableStdOutput: true,
	})
	require.NoError(t, err)

	config := testConfig()
	config.Realm.Capacity = 1
	config.RealmUpdateInterval = 10
	w, err := CreateWorld(&config, Params{Logger: logger})
	require.NoError(t, err)
	require.NoError(t, w.Start())

	server, client := net.Pipe()
	defer client.Close()
	_, err = w.Service().Serve(server)
	require.NoError(t, err)

	var ri data.RealmInfo
	require.Eventually(t, func() bool {
		if err := w.GetRealm(1, &ri); err != nil {
			return false
		}
		return ri.Flags&data.RealmFlagFull != 0
	}, 5*time.Second, 10*time.Millisecond)
	require.InDelta(t, 1.0, ri.Population, 1e-6)

	require.NoError(t, w.Stop())
	require.NoError(t, w.GetRealm(1, &ri))
	require.False(t, ri.Online())
	require.Zero(t, ri.Flags&data.RealmFlagFull)
}
