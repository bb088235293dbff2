package link

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"github.com/borescope/scopelink/pkg/devicesim"
	"github.com/borescope/scopelink/pkg/wire"
)

const waitFor = 5 * time.Second

func testConfig(video, event net.Addr) Config {
	conf := DefaultConfig()
	conf.RemoteHost = "127.0.0.1"
	conf.VideoPort = video.(*net.UDPAddr).Port
	conf.EventPort = event.(*net.UDPAddr).Port
	conf.HeartbeatInterval = 20 * time.Millisecond
	conf.EventInterval = 10 * time.Millisecond
	conf.VideoTimeout = 100 * time.Millisecond
	conf.EventTimeout = 100 * time.Millisecond
	return conf
}

func startDevice(t *testing.T, conf devicesim.Config) *devicesim.Device {
	t.Helper()

	if conf.FrameInterval == 0 {
		conf.FrameInterval = 20 * time.Millisecond
	}
	if conf.ChunkSize == 0 {
		conf.ChunkSize = 512
	}
	dev, err := devicesim.New(conf)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, dev.Serve(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return dev
}

type frameSink struct {
	mu     sync.Mutex
	frames [][]byte
	ch     chan []byte
}

func newFrameSink() *frameSink { return &frameSink{ch: make(chan []byte, 1024)} }

func (s *frameSink) add(b []byte) {
	s.mu.Lock()
	s.frames = append(s.frames, b)
	s.mu.Unlock()
	s.ch <- b
}

func (s *frameSink) next(t *testing.T) []byte {
	t.Helper()
	select {
	case b := <-s.ch:
		return b
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestSession_Frames(t *testing.T) {
	frames, err := devicesim.TestFrames(3, 64, 48)
	require.NoError(t, err)
	dev := startDevice(t, devicesim.Config{Frames: frames})

	sink := newFrameSink()
	s, err := NewSession(testConfig(dev.VideoAddr(), dev.EventAddr()), Callbacks{OnFrameReady: sink.add})
	require.NoError(t, err)
	require.Nil(t, s.LatestFrame())

	require.NoError(t, s.Start())
	defer func() { require.NoError(t, s.Stop()) }()

	// The device cycles its frames; consecutive deliveries follow that order.
	first := sink.next(t)
	idx := indexOf(frames, first)
	require.NotEqual(t, -1, idx, "delivered frame is not one of the device frames")
	for i := 1; i <= 4; i++ {
		assert.Equal(t, frames[(idx+i)%len(frames)], sink.next(t))
	}

	assert.NotNil(t, s.LatestFrame())
	assert.True(t, s.Running())
}

func TestSession_LossyStream(t *testing.T) {
	frames, err := devicesim.TestFrames(2, 64, 48)
	require.NoError(t, err)

	// Every odd frame has its second fragment duplicated, which must lose it.
	mangle := func(n int, frags []wire.Fragment) []wire.Fragment {
		if n%2 == 0 || len(frags) < 3 {
			return frags
		}
		out := append([]wire.Fragment{}, frags[:2]...)
		out = append(out, frags[1])
		return append(out, frags[2:]...)
	}
	dev := startDevice(t, devicesim.Config{Frames: frames, ChunkSize: 256, Mangle: mangle})

	sink := newFrameSink()
	s, err := NewSession(testConfig(dev.VideoAddr(), dev.EventAddr()), Callbacks{OnFrameReady: sink.add})
	require.NoError(t, err)
	require.NoError(t, s.Start())
	defer func() { require.NoError(t, s.Stop()) }()

	for i := 0; i < 4; i++ {
		assert.Equal(t, frames[0], sink.next(t))
	}
}

func TestSession_EventCapture(t *testing.T) {
	dev := startDevice(t, devicesim.Config{})
	dev.SetServerCounter(4)

	events := make(chan struct{}, 8)
	captures := make(chan []byte, 8)
	s, err := NewSession(testConfig(dev.VideoAddr(), dev.EventAddr()), Callbacks{
		OnEventTriggered: func() { events <- struct{}{} },
		OnCapture:        func(b []byte) { captures <- b },
	})
	require.NoError(t, err)
	require.NoError(t, s.Start())
	defer func() { require.NoError(t, s.Stop()) }()

	// Let the tracker take its baseline; it must not fire for it.
	require.Eventually(t, func() bool { return dev.Stats().Polls >= 3 }, waitFor, 5*time.Millisecond)
	select {
	case <-events:
		t.Fatal("baseline observation triggered an event")
	default:
	}

	dev.Trigger()

	select {
	case <-events:
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for event")
	}
	select {
	case b := <-captures:
		assert.True(t, bytes.HasPrefix(b, []byte{0xFF, 0xD8}), "capture is not a JPEG")
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for capture")
	}

	// One change, one event, one capture.
	polls := dev.Stats().Polls
	require.Eventually(t, func() bool { return dev.Stats().Polls >= polls+5 }, waitFor, 5*time.Millisecond)
	assert.Len(t, events, 0)
	assert.Len(t, captures, 0)
}

func TestSession_RequestCapture(t *testing.T) {
	dev := startDevice(t, devicesim.Config{})

	captures := make(chan []byte, 8)
	s, err := NewSession(testConfig(dev.VideoAddr(), dev.EventAddr()), Callbacks{
		OnCapture: func(b []byte) { captures <- b },
	})
	require.NoError(t, err)
	require.NoError(t, s.Start())
	defer func() { require.NoError(t, s.Stop()) }()

	s.RequestCapture()
	select {
	case b := <-captures:
		assert.NotEmpty(t, b)
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for capture")
	}
}

func TestSession_HeartbeatAndStop(t *testing.T) {
	video, err := nettest.NewLocalPacketListener("udp")
	require.NoError(t, err)
	defer video.Close() // nolint: errcheck
	events, err := nettest.NewLocalPacketListener("udp")
	require.NoError(t, err)
	defer events.Close() // nolint: errcheck

	s, err := NewSession(testConfig(video.LocalAddr(), events.LocalAddr()), Callbacks{})
	require.NoError(t, err)
	require.NoError(t, s.Start())

	buf := make([]byte, 128)
	for i := 0; i < 3; i++ {
		require.NoError(t, video.SetReadDeadline(time.Now().Add(waitFor)))
		n, _, err := video.ReadFrom(buf)
		require.NoError(t, err)
		assert.Equal(t, wire.Heartbeat(), buf[:n])
	}

	require.NoError(t, s.Stop())
	assert.False(t, s.Running())

	var stops int
	for {
		require.NoError(t, video.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
		n, _, err := video.ReadFrom(buf)
		if err != nil {
			break
		}
		if ct, ok := wire.ParseControl(buf[:n]); ok && ct == wire.StopType {
			stops++
		}
	}
	assert.Equal(t, 1, stops)
}

func TestSession_EventResponses(t *testing.T) {
	cases := []struct {
		name  string
		reply func(req uint16, n int) []byte
		want  bool
	}{
		{
			name: "matching counter with changing server counter",
			reply: func(req uint16, n int) []byte {
				return wire.EncodeEventResponse(wire.EventResponse{Counter: req, ServerCounter: uint16(n / 3)})
			},
			want: true,
		},
		{
			name: "mismatched counter",
			reply: func(req uint16, n int) []byte {
				return wire.EncodeEventResponse(wire.EventResponse{Counter: req + 1, ServerCounter: uint16(n)})
			},
			want: false,
		},
		{
			name: "malformed response",
			reply: func(req uint16, n int) []byte {
				b := wire.EncodeEventResponse(wire.EventResponse{Counter: req, ServerCounter: uint16(n)})
				return b[:19]
			},
			want: false,
		},
		{
			name: "constant server counter",
			reply: func(req uint16, n int) []byte {
				return wire.EncodeEventResponse(wire.EventResponse{Counter: req, ServerCounter: 7})
			},
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			video, err := nettest.NewLocalPacketListener("udp")
			require.NoError(t, err)
			defer video.Close() // nolint: errcheck
			events, err := nettest.NewLocalPacketListener("udp")
			require.NoError(t, err)
			defer events.Close() // nolint: errcheck

			served := make(chan int, 1)
			go func() {
				buf := make([]byte, 64)
				n := 0
				for ; n < 15; n++ {
					if err := events.SetReadDeadline(time.Now().Add(waitFor)); err != nil {
						break
					}
					l, from, err := events.ReadFrom(buf)
					if err != nil {
						break
					}
					req, ok := wire.DecodeEventRequest(buf[:l])
					if !ok {
						continue
					}
					if _, err := events.WriteTo(tc.reply(req, n), from); err != nil {
						break
					}
				}
				served <- n
			}()

			var mu sync.Mutex
			triggered := 0
			s, err := NewSession(testConfig(video.LocalAddr(), events.LocalAddr()), Callbacks{
				OnEventTriggered: func() {
					mu.Lock()
					triggered++
					mu.Unlock()
				},
			})
			require.NoError(t, err)
			require.NoError(t, s.Start())

			select {
			case n := <-served:
				require.Equal(t, 15, n)
			case <-time.After(waitFor):
				t.Fatal("event server did not finish")
			}
			require.NoError(t, s.Stop())

			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, tc.want, triggered > 0)
		})
	}
}

func TestSession_Lifecycle(t *testing.T) {
	dev := startDevice(t, devicesim.Config{})

	sink := newFrameSink()
	s, err := NewSession(testConfig(dev.VideoAddr(), dev.EventAddr()), Callbacks{OnFrameReady: sink.add})
	require.NoError(t, err)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Start())
	assert.Equal(t, ErrAlreadyRunning, s.Start())
	assert.NotNil(t, s.LocalVideoAddr())
	sink.next(t)

	start := time.Now()
	require.NoError(t, s.Stop())
	assert.True(t, time.Since(start) < 2*time.Second)
	require.NoError(t, s.Stop())

	require.NoError(t, s.Start())
	defer func() { require.NoError(t, s.Stop()) }()
	for len(sink.ch) > 0 {
		<-sink.ch
	}
	sink.next(t)
}

func TestNewSession_InvalidConfig(t *testing.T) {
	conf := DefaultConfig()
	conf.RemoteHost = ""
	_, err := NewSession(conf, Callbacks{})
	assert.Error(t, err)

	conf = DefaultConfig()
	conf.EventPort = 70000
	_, err = NewSession(conf, Callbacks{})
	assert.Error(t, err)

	conf = Config{RemoteHost: "127.0.0.1", VideoPort: 1, EventPort: 2}
	require.NoError(t, conf.Validate())
	assert.Equal(t, DefaultHeartbeatInterval, conf.HeartbeatInterval)
	assert.Equal(t, DefaultEventTimeout, conf.EventTimeout)
	assert.Equal(t, "127.0.0.1:1", conf.VideoAddr())
}

func indexOf(frames [][]byte, b []byte) int {
	for i, f := range frames {
		if bytes.Equal(f, b) {
			return i
		}
	}
	return -1
}
