package link

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/borescope/scopelink/internal/metrics"
)

// Defaults match the factory settings of the camera's access point.
const (
	DefaultRemoteHost        = "192.168.10.123"
	DefaultVideoPort         = 8030
	DefaultEventPort         = 50000
	DefaultHeartbeatInterval = 500 * time.Millisecond
	DefaultEventInterval     = 100 * time.Millisecond
	DefaultVideoTimeout      = 1000 * time.Millisecond
	DefaultEventTimeout      = 30 * time.Millisecond

	maxDatagram = 65535
	eventBufLen = 256
)

// Config configures a Session.
type Config struct {
	RemoteHost string
	VideoPort  int // video and heartbeat
	EventPort  int

	// LocalVideoAddr optionally binds the video socket, e.g. "0.0.0.0:40000".
	LocalVideoAddr string

	HeartbeatInterval time.Duration
	EventInterval     time.Duration
	VideoTimeout      time.Duration
	EventTimeout      time.Duration

	Logger  *logging.Logger
	Metrics metrics.Recorder
}

// DefaultConfig returns the configuration for a camera at its factory address.
func DefaultConfig() Config {
	return Config{
		RemoteHost:        DefaultRemoteHost,
		VideoPort:         DefaultVideoPort,
		EventPort:         DefaultEventPort,
		HeartbeatInterval: DefaultHeartbeatInterval,
		EventInterval:     DefaultEventInterval,
		VideoTimeout:      DefaultVideoTimeout,
		EventTimeout:      DefaultEventTimeout,
	}
}

// Validate checks the addressing fields and fills zero durations with defaults.
func (c *Config) Validate() error {
	if c.RemoteHost == "" {
		return errors.New("empty remote host")
	}
	if !validPort(c.VideoPort) {
		return errors.New("invalid video port")
	}
	if !validPort(c.EventPort) {
		return errors.New("invalid event port")
	}

	fill := func(d *time.Duration, def time.Duration) {
		if *d <= 0 {
			*d = def
		}
	}
	fill(&c.HeartbeatInterval, DefaultHeartbeatInterval)
	fill(&c.EventInterval, DefaultEventInterval)
	fill(&c.VideoTimeout, DefaultVideoTimeout)
	fill(&c.EventTimeout, DefaultEventTimeout)

	if c.Logger == nil {
		c.Logger = log
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NewDummy()
	}
	return nil
}

// VideoAddr returns the host:port that receives heartbeats.
func (c Config) VideoAddr() string {
	return net.JoinHostPort(c.RemoteHost, strconv.Itoa(c.VideoPort))
}

// EventAddr returns the host:port that answers event polls.
func (c Config) EventAddr() string {
	return net.JoinHostPort(c.RemoteHost, strconv.Itoa(c.EventPort))
}

func validPort(p int) bool { return p > 0 && p <= 65535 }
