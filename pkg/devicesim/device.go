// Package devicesim simulates the camera side of the link: it streams
// fragmented JPEG frames to whoever sends heartbeats and answers event polls.
package devicesim

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/borescope/scopelink/pkg/wire"
)

var log = logging.MustGetLogger("devicesim")

// Defaults for a simulated device.
const (
	DefaultFrameInterval = 100 * time.Millisecond
	DefaultChunkSize     = 1400
	DefaultClientTimeout = 3 * time.Second
)

// Mangler rewrites the fragments of one frame before they are sent.
// It lets tests inject loss, duplication and reordering.
type Mangler func(frameNo int, frags []wire.Fragment) []wire.Fragment

// Config configures a Device.
type Config struct {
	VideoAddr     string // default "127.0.0.1:0"
	EventAddr     string // default "127.0.0.1:0"
	FrameInterval time.Duration
	ChunkSize     int
	ClientTimeout time.Duration

	// Frames are streamed in a loop. When empty, generated test images are used.
	Frames [][]byte

	Mangle Mangler
	Logger *logging.Logger
}

// Device is a simulated camera.
type Device struct {
	conf Config
	log  *logging.Logger

	videoConn *net.UDPConn
	eventConn *net.UDPConn

	serverCounter uint32
	heartbeats    int64
	stops         int64
	polls         int64
	framesSent    int64

	mu       sync.Mutex
	client   *net.UDPAddr
	lastSeen time.Time
}

// New binds the device sockets.
func New(conf Config) (*Device, error) {
	if conf.VideoAddr == "" {
		conf.VideoAddr = "127.0.0.1:0"
	}
	if conf.EventAddr == "" {
		conf.EventAddr = "127.0.0.1:0"
	}
	if conf.FrameInterval <= 0 {
		conf.FrameInterval = DefaultFrameInterval
	}
	if conf.ChunkSize <= 0 {
		conf.ChunkSize = DefaultChunkSize
	}
	if conf.ClientTimeout <= 0 {
		conf.ClientTimeout = DefaultClientTimeout
	}
	if len(conf.Frames) == 0 {
		frames, err := TestFrames(4, 160, 120)
		if err != nil {
			return nil, err
		}
		conf.Frames = frames
	}
	if conf.Logger == nil {
		conf.Logger = log
	}

	videoConn, err := listen(conf.VideoAddr)
	if err != nil {
		return nil, errors.Wrap(err, "video socket")
	}
	eventConn, err := listen(conf.EventAddr)
	if err != nil {
		videoConn.Close() // nolint: errcheck
		return nil, errors.Wrap(err, "event socket")
	}

	return &Device{
		conf:      conf,
		log:       conf.Logger,
		videoConn: videoConn,
		eventConn: eventConn,
	}, nil
}

func listen(addr string) (*net.UDPConn, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp", laddr)
}

// VideoAddr returns the address heartbeats should be sent to.
func (d *Device) VideoAddr() *net.UDPAddr { return d.videoConn.LocalAddr().(*net.UDPAddr) }

// EventAddr returns the address event polls should be sent to.
func (d *Device) EventAddr() *net.UDPAddr { return d.eventConn.LocalAddr().(*net.UDPAddr) }

// Trigger raises a device event, as pressing the camera's button would.
func (d *Device) Trigger() {
	c := atomic.AddUint32(&d.serverCounter, 1)
	d.log.Infof("Event triggered: counter=%d", uint16(c))
}

// SetServerCounter sets the event counter reported to pollers.
func (d *Device) SetServerCounter(v uint16) { atomic.StoreUint32(&d.serverCounter, uint32(v)) }

// Stats is a snapshot of device activity.
type Stats struct {
	Heartbeats int64
	Stops      int64
	Polls      int64
	FramesSent int64
}

// Stats returns activity counters.
func (d *Device) Stats() Stats {
	return Stats{
		Heartbeats: atomic.LoadInt64(&d.heartbeats),
		Stops:      atomic.LoadInt64(&d.stops),
		Polls:      atomic.LoadInt64(&d.polls),
		FramesSent: atomic.LoadInt64(&d.framesSent),
	}
}

// Serve runs the device until ctx is done, then closes its sockets.
func (d *Device) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		d.serveControl()
	}()
	go func() {
		defer wg.Done()
		d.serveEvents()
	}()
	go func() {
		defer wg.Done()
		d.stream(ctx)
	}()

	<-ctx.Done()
	d.videoConn.Close() // nolint: errcheck
	d.eventConn.Close() // nolint: errcheck
	wg.Wait()
	return nil
}

func (d *Device) serveControl() {
	buf := make([]byte, 64)
	for {
		n, from, err := d.videoConn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		ct, ok := wire.ParseControl(buf[:n])
		if !ok {
			continue
		}

		d.mu.Lock()
		switch ct {
		case wire.HeartbeatType:
			atomic.AddInt64(&d.heartbeats, 1)
			if d.client == nil || d.client.String() != from.String() {
				d.log.Infof("Streaming to %s", from)
			}
			d.client, d.lastSeen = from, time.Now()
		case wire.StopType:
			atomic.AddInt64(&d.stops, 1)
			d.log.Infof("Stop from %s", from)
			d.client = nil
		}
		d.mu.Unlock()
	}
}

func (d *Device) serveEvents() {
	buf := make([]byte, 256)
	for {
		n, from, err := d.eventConn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		c, ok := wire.DecodeEventRequest(buf[:n])
		if !ok {
			continue
		}
		atomic.AddInt64(&d.polls, 1)

		resp := wire.EncodeEventResponse(wire.EventResponse{
			Counter:       c,
			ServerCounter: uint16(atomic.LoadUint32(&d.serverCounter)),
		})
		if _, err := d.eventConn.WriteToUDP(resp, from); err != nil {
			d.log.WithError(err).Debug("Failed to answer event poll")
		}
	}
}

func (d *Device) stream(ctx context.Context) {
	ticker := time.NewTicker(d.conf.FrameInterval)
	defer ticker.Stop()

	frameNo := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		to := d.activeClient()
		if to == nil {
			continue
		}

		jpg := d.conf.Frames[frameNo%len(d.conf.Frames)]
		frags := wire.SplitFrame(uint8(frameNo), jpg, d.conf.ChunkSize)
		if d.conf.Mangle != nil {
			frags = d.conf.Mangle(frameNo, frags)
		}
		for _, f := range frags {
			if _, err := d.videoConn.WriteToUDP(wire.EncodeFragment(f), to); err != nil {
				d.log.WithError(err).Debug("Failed to send fragment")
				break
			}
		}
		atomic.AddInt64(&d.framesSent, 1)
		frameNo++
	}
}

func (d *Device) activeClient() *net.UDPAddr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil || time.Since(d.lastSeen) > d.conf.ClientTimeout {
		return nil
	}
	return d.client
}

// TestFrames renders n distinct JPEG images of the given size.
func TestFrames(n, w, h int) ([][]byte, error) {
	frames := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.Set(x, y, color.RGBA{
					R: uint8((x + i*40) % 256),
					G: uint8((y + i*20) % 256),
					B: uint8(i * 60 % 256),
					A: 0xFF,
				})
			}
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
			return nil, fmt.Errorf("encode frame %d: %s", i, err)
		}
		frames = append(frames, buf.Bytes())
	}
	return frames, nil
}
