package frame

import (
	"bytes"
	"io"
	"math/rand"
	"testing"
	"testing/iotest"

	"github.com/godyy/gnet"
	"github.com/godyy/gworld/wire"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func buildFrame(t *testing.T, opcode uint32, body []byte) []byte {
	t.Helper()
	buf := wire.NewBuffer(0)
	require.NoError(t, Build(buf, wire.HostOrder, opcode, func(b *Builder) error {
		return wire.WriteBytes(b, body)
	}))
	return buf.Bytes()
}

func TestSmallFrameLayout(t *testing.T) {
	data := buildFrame(t, 5, []byte{0x01, 0x02, 0x03})

	opcode := make([]byte, 4)
	wire.HostOrder.Native().PutUint32(opcode, 5)
	want := append([]byte{0x00, 0x07}, opcode...)
	want = append(want, 0x01, 0x02, 0x03)
	require.Equal(t, want, data)

	in, status, err := Decode(wire.NewReader(data), wire.HostOrder)
	require.NoError(t, err)
	require.Equal(t, Complete, status)
	require.Equal(t, uint32(5), in.Opcode)
	require.Equal(t, uint16(7), in.Length)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, in.Body)
	require.Equal(t, 3, in.BodySize())
	require.Equal(t, len(data), in.Size())

	_, status, err = Decode(wire.NewReader(data[:3]), wire.HostOrder)
	require.NoError(t, err)
	require.Equal(t, Incomplete, status)
}

func TestDecodeRejectsShortLength(t *testing.T) {
	for _, length := range []uint16{0, 1, 3} {
		buf := wire.NewBuffer(0)
		require.NoError(t, wire.WriteNetwork(buf, wire.HostOrder, length))
		require.NoError(t, wire.WriteBytes(buf, []byte{0, 0, 0, 0}))

		_, _, err := Decode(wire.NewReader(buf.Bytes()), wire.HostOrder)
		require.True(t, errors.Is(err, ErrFrameTooShort), "length %d", length)
	}

	in, status, err := Decode(wire.NewReader(buildFrame(t, 9, nil)), wire.HostOrder)
	require.NoError(t, err)
	require.Equal(t, Complete, status)
	require.Empty(t, in.Body)
}

func TestReassembleChunked(t *testing.T) {
	body := make([]byte, 300)
	rand.New(rand.NewSource(7)).Read(body)
	data := buildFrame(t, 0x1EE, body)

	rnd := rand.New(rand.NewSource(3))
	for round := 0; round < 50; round++ {
		ra := NewReassembler(wire.HostOrder, 16, 0)
		rest := data
		completes := 0
		for len(rest) > 0 {
			n := 1 + rnd.Intn(len(rest))
			require.NoError(t, ra.Feed(rest[:n]))
			rest = rest[n:]

			for {
				before := append([]byte(nil), ra.Pending()...)
				in, status, err := ra.Next()
				require.NoError(t, err)
				if status == Incomplete {
					require.True(t, bytes.Equal(before, ra.Pending()), "pending bytes changed on Incomplete")
					break
				}
				require.Empty(t, rest, "complete before the last chunk")
				require.Equal(t, uint32(0x1EE), in.Opcode)
				require.Equal(t, body, in.Body)
				require.Equal(t, 2+int(in.Length), len(before)-ra.Buffered())
				completes++
			}
		}
		require.Equal(t, 1, completes)
		require.Equal(t, 0, ra.Buffered())
	}
}

func TestReassembleBackToBack(t *testing.T) {
	var stream []byte
	for i := 0; i < 10; i++ {
		stream = append(stream, buildFrame(t, uint32(i), bytes.Repeat([]byte{byte(i)}, i))...)
	}

	ra := NewReassembler(wire.HostOrder, 0, 0)
	r := iotest.OneByteReader(bytes.NewReader(stream))
	next := 0
	for {
		_, err := ra.Fill(r)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		for {
			in, status, err := ra.Next()
			require.NoError(t, err)
			if status == Incomplete {
				break
			}
			require.Equal(t, uint32(next), in.Opcode)
			require.Equal(t, bytes.Repeat([]byte{byte(next)}, next), in.Body)
			next++
		}
	}
	require.Equal(t, 10, next)
}

func TestReassemblerLimit(t *testing.T) {
	ra := NewReassembler(wire.HostOrder, 0, 8)
	require.NoError(t, ra.Feed([]byte{0x00, 0xFF, 1, 2, 3}))
	_, status, err := ra.Next()
	require.NoError(t, err)
	require.Equal(t, Incomplete, status)

	err = ra.Feed([]byte{4, 5, 6, 7})
	require.True(t, errors.Is(err, ErrBufferOverflow))
	require.Equal(t, 5, ra.Buffered())

	_, err = ra.Fill(bytes.NewReader(make([]byte, 100)))
	require.NoError(t, err)
	require.Equal(t, 8, ra.Buffered())

	_, err = ra.Fill(bytes.NewReader(make([]byte, 100)))
	require.True(t, errors.Is(err, ErrBufferOverflow))
}

func TestBuildParseSymmetry(t *testing.T) {
	type entry struct {
		guid uint64
		name string
	}
	entries := []entry{{guid: 0x0700000000000001, name: "Arthas"}, {guid: 0, name: ""}}

	buf := wire.NewBuffer(0)
	err := Build(buf, wire.HostOrder, 0x3B, func(b *Builder) error {
		count, err := wire.Reserve[uint8](b)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := wire.WritePackedID(b, e.guid); err != nil {
				return err
			}
			if err := wire.WriteCString(b, e.name); err != nil {
				return err
			}
		}
		if err := wire.WriteDynamicRange[uint16](b, []float32{1, 2, 3}); err != nil {
			return err
		}
		return wire.Patch(b, count, uint8(len(entries)))
	})
	require.NoError(t, err)

	in, status, err := Decode(wire.NewReader(buf.Bytes()), wire.HostOrder)
	require.NoError(t, err)
	require.Equal(t, Complete, status)
	require.Equal(t, uint32(0x3B), in.Opcode)

	src := in.Source()
	n, err := wire.Read[uint8](src)
	require.NoError(t, err)
	require.Equal(t, uint8(2), n)
	for _, e := range entries {
		guid, err := wire.ReadPackedID(src)
		require.NoError(t, err)
		require.Equal(t, e.guid, guid)
		name, err := wire.ReadCString(src)
		require.NoError(t, err)
		require.Equal(t, e.name, name)
	}
	floats, err := wire.ReadContainer[uint16, float32](src)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, floats)
	require.True(t, src.EOF())
}

func TestBuildAlternateOrder(t *testing.T) {
	other := wire.NewByteOrder(!wire.HostOrder.IsLittleEndian())
	buf := wire.NewBuffer(0)
	require.NoError(t, Build(buf, other, 1, func(b *Builder) error {
		return wire.WriteBytes(b, []byte{9})
	}))

	in, status, err := Decode(wire.NewReader(buf.Bytes()), other)
	require.NoError(t, err)
	require.Equal(t, Complete, status)
	require.Equal(t, []byte{9}, in.Body)
}

func TestBuilderAppendsToExistingSink(t *testing.T) {
	buf := wire.NewBuffer(0)
	require.NoError(t, wire.WriteBytes(buf, []byte{0xAA, 0xBB}))
	b := NewBuilder(buf, wire.HostOrder)
	require.NoError(t, b.Start(2))
	require.NoError(t, wire.Write(b, uint64(1)))
	require.Equal(t, 8, b.BodyLen())
	require.NoError(t, b.Finish())
	require.True(t, b.Finished())

	require.Equal(t, []byte{0xAA, 0xBB, 0x00, 12}, buf.Bytes()[:4])

	b.Reset(buf)
	require.NoError(t, b.Start(3))
	require.NoError(t, b.Finish())

	ra := NewReassembler(wire.HostOrder, 0, 0)
	require.NoError(t, ra.Feed(buf.Bytes()[2:]))
	for _, op := range []uint32{2, 3} {
		in, status, err := ra.Next()
		require.NoError(t, err)
		require.Equal(t, Complete, status)
		require.Equal(t, op, in.Opcode)
	}
}

func TestBuilderMisuse(t *testing.T) {
	buf := wire.NewBuffer(0)
	b := NewBuilder(buf, wire.HostOrder)

	require.Panics(t, func() { b.Write([]byte{1}) })
	require.Panics(t, func() { b.Finish() })

	require.NoError(t, b.Start(1))
	require.Panics(t, func() { b.Start(2) })
	require.Panics(t, func() { b.Overwrite(0, []byte{0}) })
	require.NoError(t, wire.WriteBytes(b, []byte{1, 2}))
	require.Panics(t, func() { b.Overwrite(HeaderSize+1, []byte{0, 0}) })
	require.NoError(t, b.Overwrite(HeaderSize, []byte{7, 8}))

	require.NoError(t, b.Finish())
	require.Panics(t, func() { b.Write([]byte{1}) })
	require.Panics(t, func() { wire.Write(b, uint8(1)) })
	require.Panics(t, func() { b.Start(3) })
	require.Panics(t, func() { b.Finish() })
}

func TestBuilderTooLarge(t *testing.T) {
	buf := wire.NewBuffer(0)
	err := Build(buf, wire.HostOrder, 1, func(b *Builder) error {
		return wire.WriteBytes(b, make([]byte, MaxBodySize+1))
	})
	require.True(t, errors.Is(err, ErrFrameTooLarge))
	require.Equal(t, 0, buf.Len())

	require.NoError(t, Build(buf, wire.HostOrder, 1, func(b *Builder) error {
		return wire.WriteBytes(b, make([]byte, MaxBodySize))
	}))
	in, status, err := Decode(wire.NewReader(buf.Bytes()), wire.HostOrder)
	require.NoError(t, err)
	require.Equal(t, Complete, status)
	require.Equal(t, uint16(MaxLength), in.Length)
}

func TestBuildRollsBackOnError(t *testing.T) {
	prev := buildFrame(t, 2, []byte{0xAA})
	buf := wire.NewBuffer(0)
	require.NoError(t, wire.WriteBytes(buf, prev))

	boom := errors.New("boom")
	err := Build(buf, wire.HostOrder, 3, func(b *Builder) error {
		if err := wire.WriteBytes(b, []byte{1, 2, 3}); err != nil {
			return err
		}
		return boom
	})
	require.True(t, errors.Is(err, boom))
	require.Equal(t, prev, buf.Bytes())

	err = Build(buf, wire.HostOrder, 4, func(b *Builder) error {
		return wire.WriteBytes(b, make([]byte, MaxBodySize+1))
	})
	require.True(t, errors.Is(err, ErrFrameTooLarge))
	require.Equal(t, prev, buf.Bytes())

	require.NoError(t, Build(buf, wire.HostOrder, 5, nil))
	ra := NewReassembler(wire.HostOrder, 0, 0)
	require.NoError(t, ra.Feed(buf.Bytes()))
	for _, op := range []uint32{2, 5} {
		in, status, err := ra.Next()
		require.NoError(t, err)
		require.Equal(t, Complete, status)
		require.Equal(t, op, in.Opcode)
	}
	require.Equal(t, 0, ra.Buffered())
}

func TestIncomingDetach(t *testing.T) {
	data := buildFrame(t, 4, []byte("hello"))
	ra := NewReassembler(wire.HostOrder, 0, 0)
	require.NoError(t, ra.Feed(data))
	in, status, err := ra.Next()
	require.NoError(t, err)
	require.Equal(t, Complete, status)

	p := in.Detach()
	defer gnet.PutPacket(p)

	ra.Compact()
	require.NoError(t, ra.Feed(bytes.Repeat([]byte{0xEE}, len(data))))

	b, err := wire.ReadRemaining(wire.NewPacketSource(p))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), b)
}
