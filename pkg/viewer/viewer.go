// Package viewer implements the scopelink host: it runs a camera link,
// stores captures and serves a live preview.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/skycoin/skycoin/src/util/logging"

	"github.com/borescope/scopelink/internal/metrics"
	"github.com/borescope/scopelink/pkg/capture"
	"github.com/borescope/scopelink/pkg/link"
)

// Version is the viewer version.
const Version = "0.1.0"

var log = logging.MustGetLogger("viewer")

// ErrNoFrame is returned when no frame has been received yet.
var ErrNoFrame = errors.New("no frame received yet")

// Viewer wires a link.Session to capture storage and the preview API.
type Viewer struct {
	conf *Config

	Logger *logging.MasterLogger
	logger *logging.Logger

	session  *link.Session
	store    capture.Store
	registry *prometheus.Registry
	hub      *hub

	httpMu  sync.Mutex
	httpSrv *http.Server
	httpLis net.Listener
}

// NewViewer constructs new Viewer.
func NewViewer(conf *Config, masterLogger *logging.MasterLogger) (*Viewer, error) {
	v := &Viewer{
		conf:     conf,
		Logger:   masterLogger,
		logger:   masterLogger.PackageLogger("viewer"),
		registry: prometheus.NewRegistry(),
	}

	if conf.LogLevel != "" {
		lvl, err := logging.LevelFromString(conf.LogLevel)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "invalid log_level")
		}
		v.Logger.SetLevel(lvl)
	}

	store, err := conf.CaptureStore()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "capture store")
	}
	v.store = store
	v.hub = newHub(masterLogger.PackageLogger("preview"))

	lc := conf.LinkConfig()
	lc.Logger = masterLogger.PackageLogger("link")
	lc.Metrics = metrics.NewPrometheus("scopelink", v.registry)

	v.session, err = link.NewSession(lc, link.Callbacks{
		OnFrameReady:     v.hub.Frame,
		OnEventTriggered: v.onEvent,
		OnCapture:        v.onCapture,
	})
	if err != nil {
		store.Close() // nolint: errcheck
		return nil, pkgerrors.Wrap(err, "invalid camera config")
	}
	return v, nil
}

// Start starts the camera link and, if configured, the preview API.
func (v *Viewer) Start() error {
	if addr := v.conf.Interfaces.HTTPAddr; addr != "" {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return pkgerrors.Wrapf(err, "listen on %s", addr)
		}
		srv := &http.Server{Handler: v.Handler(), ReadHeaderTimeout: 10 * time.Second}

		v.httpMu.Lock()
		v.httpSrv, v.httpLis = srv, l
		v.httpMu.Unlock()

		go func() {
			v.logger.Infof("Serving preview API on %s", l.Addr())
			if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
				v.logger.WithError(err).Error("Preview API stopped")
			}
		}()
	}

	if err := v.session.Start(); err != nil {
		v.closeHTTP()
		return err
	}
	return nil
}

// Close stops the link, the preview API and the capture store.
func (v *Viewer) Close() error {
	if err := v.session.Stop(); err != nil {
		v.logger.WithError(err).Warn("Failed to stop session")
	}
	v.closeHTTP()
	v.hub.Close()
	return v.store.Close()
}

// HTTPAddr returns the preview API address, or nil when it is disabled.
func (v *Viewer) HTTPAddr() net.Addr {
	v.httpMu.Lock()
	defer v.httpMu.Unlock()
	if v.httpLis == nil {
		return nil
	}
	return v.httpLis.Addr()
}

// LatestFrame returns the last reassembled frame.
func (v *Viewer) LatestFrame() ([]byte, error) {
	if f := v.session.LatestFrame(); f != nil {
		return f, nil
	}
	return nil, ErrNoFrame
}

// SaveLatest stores the last reassembled frame.
func (v *Viewer) SaveLatest() (*capture.Entry, error) {
	f, err := v.LatestFrame()
	if err != nil {
		return nil, err
	}
	return v.save(f, "manual")
}

// Captures lists stored captures.
func (v *Viewer) Captures() ([]*capture.Entry, error) { return v.store.List() }

func (v *Viewer) onEvent() {
	v.logger.Info("Remote capture requested")
}

func (v *Viewer) onCapture(jpeg []byte) {
	if _, err := v.save(jpeg, "remote"); err != nil {
		v.logger.WithError(err).Error("Failed to save remote capture")
	}
}

type captureNotice struct {
	Type   string         `json:"type"`
	Source string         `json:"source"`
	Entry  *capture.Entry `json:"entry"`
}

func (v *Viewer) save(jpeg []byte, source string) (*capture.Entry, error) {
	e, err := v.store.Save(jpeg)
	if err != nil {
		return nil, err
	}
	v.logger.Infof("Saved %s capture %s (%d bytes)", source, e.Name, e.Size)

	if raw, err := json.Marshal(captureNotice{Type: "capture", Source: source, Entry: e}); err == nil {
		v.hub.Notice(raw)
	}
	return e, nil
}

func (v *Viewer) closeHTTP() {
	v.httpMu.Lock()
	srv := v.httpSrv
	v.httpSrv, v.httpLis = nil, nil
	v.httpMu.Unlock()
	if srv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		v.logger.WithError(err).Debug("Preview API shutdown")
	}
}
