package viewer

import (
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/borescope/scopelink/pkg/capture"
	"github.com/borescope/scopelink/pkg/link"
	"github.com/borescope/scopelink/pkg/util/pathutil"
)

// Capture store types.
const (
	CaptureFile   = "file"
	CaptureBoltDB = "boltdb"
	CaptureMemory = "memory"
)

// Config defines configuration parameters for Viewer.
type Config struct {
	Version string `json:"version"`

	Camera struct {
		Host           string `json:"host"`
		VideoPort      int    `json:"video_port"`
		EventPort      int    `json:"event_port"`
		LocalVideoAddr string `json:"local_video_addr,omitempty"`
	} `json:"camera"`

	Timing struct {
		HeartbeatInterval Duration `json:"heartbeat_interval"`
		EventInterval     Duration `json:"event_interval"`
		VideoTimeout      Duration `json:"video_timeout"`
		EventTimeout      Duration `json:"event_timeout"`
	} `json:"timing"`

	Capture struct {
		Type     string `json:"type"`
		Location string `json:"location"`
	} `json:"capture"`

	Interfaces struct {
		HTTPAddr string `json:"http"` // leave blank to disable the preview API
	} `json:"interfaces"`

	LogLevel        string   `json:"log_level"`
	ShutdownTimeout Duration `json:"shutdown_timeout"` // time value, examples: 10s, 1m, etc
}

// DefaultConfig returns a config for a camera at its factory address,
// saving captures under dir.
func DefaultConfig(dir string) *Config {
	c := &Config{Version: "1.0"}
	c.Camera.Host = link.DefaultRemoteHost
	c.Camera.VideoPort = link.DefaultVideoPort
	c.Camera.EventPort = link.DefaultEventPort
	c.Timing.HeartbeatInterval = Duration(link.DefaultHeartbeatInterval)
	c.Timing.EventInterval = Duration(link.DefaultEventInterval)
	c.Timing.VideoTimeout = Duration(link.DefaultVideoTimeout)
	c.Timing.EventTimeout = Duration(link.DefaultEventTimeout)
	c.Capture.Type = CaptureFile
	c.Capture.Location = filepath.Join(dir, "captures")
	c.Interfaces.HTTPAddr = "localhost:8090"
	c.LogLevel = "info"
	c.ShutdownTimeout = Duration(10 * time.Second)
	return c
}

// ReadConfig decodes a Config from r.
func ReadConfig(r io.Reader) (*Config, error) {
	c := new(Config)
	if err := json.NewDecoder(r).Decode(c); err != nil {
		return nil, pkgerrors.Wrap(err, "decode config")
	}
	return c, nil
}

// LinkConfig returns the session configuration.
func (c *Config) LinkConfig() link.Config {
	return link.Config{
		RemoteHost:        c.Camera.Host,
		VideoPort:         c.Camera.VideoPort,
		EventPort:         c.Camera.EventPort,
		LocalVideoAddr:    c.Camera.LocalVideoAddr,
		HeartbeatInterval: time.Duration(c.Timing.HeartbeatInterval),
		EventInterval:     time.Duration(c.Timing.EventInterval),
		VideoTimeout:      time.Duration(c.Timing.VideoTimeout),
		EventTimeout:      time.Duration(c.Timing.EventTimeout),
	}
}

// CaptureStore returns the configured capture.Store.
func (c *Config) CaptureStore() (capture.Store, error) {
	switch c.Capture.Type {
	case CaptureFile:
		dir, err := pathutil.EnsureDir(c.Capture.Location)
		if err != nil {
			return nil, err
		}
		return capture.FileStore(dir)
	case CaptureBoltDB:
		if c.Capture.Location == "" {
			return nil, errors.New("empty capture location")
		}
		if _, err := pathutil.EnsureDir(filepath.Dir(pathutil.Expand(c.Capture.Location))); err != nil {
			return nil, err
		}
		return capture.BoltDBStore(pathutil.Expand(c.Capture.Location))
	case CaptureMemory, "":
		return capture.InMemoryStore(), nil
	default:
		return nil, pkgerrors.Errorf("unknown capture store type %q", c.Capture.Type)
	}
}

// Duration wraps around time.Duration to allow parsing from and to JSON
type Duration time.Duration

// MarshalJSON implements json marshaling
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements unmarshal from json
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return errors.New("invalid duration")
	}
}
