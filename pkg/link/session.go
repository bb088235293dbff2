// Package link implements the client side of the camera's UDP session:
// keepalive, video reception and event polling.
package link

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/borescope/scopelink/internal/ioutil"
	"github.com/borescope/scopelink/internal/metrics"
)

var log = logging.MustGetLogger("link")

var (
	// ErrAlreadyRunning is returned by Start on a running session.
	ErrAlreadyRunning = errors.New("session already running")
)

// Callbacks connect a Session to its host. Nil callbacks are skipped.
// They run on the loop goroutines and should return quickly.
type Callbacks struct {
	// OnFrameReady is called once per reassembled frame, in receive order.
	OnFrameReady func(jpeg []byte)

	// OnEventTriggered is called once per detected device event.
	OnEventTriggered func()

	// OnCapture is called with the first frame completed after an event
	// (or RequestCapture), before OnFrameReady for that frame.
	OnCapture func(jpeg []byte)
}

// Session keeps a camera link alive. The zero value is not usable; use NewSession.
type Session struct {
	conf Config
	cb   Callbacks
	log  *logging.Logger
	m    metrics.Recorder

	videoAddr *net.UDPAddr
	eventAddr *net.UDPAddr

	mu        sync.Mutex
	running   ioutil.AtomicBool
	capture   ioutil.AtomicBool
	latest    atomic.Value // []byte
	videoConn *net.UDPConn
	eventConn *net.UDPConn
	done      chan struct{}
	hbDone    chan struct{}
	wg        sync.WaitGroup
}

// NewSession validates conf and constructs a stopped Session.
func NewSession(conf Config, cb Callbacks) (*Session, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	videoAddr, err := net.ResolveUDPAddr("udp", conf.VideoAddr())
	if err != nil {
		return nil, fmt.Errorf("resolve video address: %s", err)
	}
	eventAddr, err := net.ResolveUDPAddr("udp", conf.EventAddr())
	if err != nil {
		return nil, fmt.Errorf("resolve event address: %s", err)
	}

	return &Session{
		conf:      conf,
		cb:        cb,
		log:       conf.Logger,
		m:         conf.Metrics,
		videoAddr: videoAddr,
		eventAddr: eventAddr,
	}, nil
}

// Start opens both sockets and launches the heartbeat, video and event loops.
// Protocol state starts fresh on every Start.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Get() {
		return ErrAlreadyRunning
	}

	videoConn, err := listenBroadcastUDP(s.conf.LocalVideoAddr)
	if err != nil {
		return fmt.Errorf("open video socket: %s", err)
	}
	eventConn, err := net.ListenUDP("udp", nil)
	if err != nil {
		closeQuietly(videoConn)
		return fmt.Errorf("open event socket: %s", err)
	}

	s.videoConn, s.eventConn = videoConn, eventConn
	s.done = make(chan struct{})
	s.hbDone = make(chan struct{})
	s.capture.Set(false)
	s.running.Set(true)

	s.log.Infof("Session started: video=%s event=%s local=%s",
		s.videoAddr, s.eventAddr, videoConn.LocalAddr())

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		defer close(s.hbDone)
		s.heartbeatLoop(videoConn, s.done)
	}()
	go func() {
		defer s.wg.Done()
		s.videoLoop(videoConn)
	}()
	go func() {
		defer s.wg.Done()
		s.eventLoop(eventConn, s.done)
	}()
	return nil
}

// Stop clears the running flag, lets the heartbeat loop send its Stop
// datagram, closes both sockets and waits for the loops to return.
// Calling Stop on a stopped session is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Set(false) {
		return nil
	}
	close(s.done)
	<-s.hbDone

	closeQuietly(s.videoConn)
	closeQuietly(s.eventConn)
	s.wg.Wait()

	s.log.Info("Session stopped")
	return nil
}

// Running reports whether the loops are live.
func (s *Session) Running() bool { return s.running.Get() }

// LatestFrame returns the most recently reassembled frame, or nil.
// The returned slice must not be modified.
func (s *Session) LatestFrame() []byte {
	b, _ := s.latest.Load().([]byte)
	return b
}

// RequestCapture marks the next completed frame for capture, as a device
// event would.
func (s *Session) RequestCapture() { s.capture.Set(true) }

// LocalVideoAddr returns the bound address of the video socket while running.
func (s *Session) LocalVideoAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.videoConn == nil {
		return nil
	}
	return s.videoConn.LocalAddr()
}

func (s *Session) isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func closeQuietly(conn *net.UDPConn) {
	if conn == nil {
		return
	}
	_ = conn.Close() // nolint: errcheck
}
