package viewer

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/borescope/scopelink/internal/httputil"
	"github.com/borescope/scopelink/pkg/capture"
)

// Status describes the viewer state.
type Status struct {
	Version        string `json:"version"`
	Running        bool   `json:"running"`
	CameraVideo    string `json:"camera_video"`
	CameraEvent    string `json:"camera_event"`
	LocalVideoAddr string `json:"local_video_addr,omitempty"`
	HasFrame       bool   `json:"has_frame"`
	Clients        int    `json:"preview_clients"`
}

// Handler returns the preview API.
func (v *Viewer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: v.logger, NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Get("/ws", v.hub.serveWS)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/status", v.getStatus())
		r.Get("/frame.jpg", v.getFrame())
		r.Get("/captures", v.getCaptures())
		r.Post("/captures", v.postCapture())
		r.Get("/captures/{id}", v.getCapture())
		r.Handle("/metrics", promhttp.HandlerFor(v.registry, promhttp.HandlerOpts{}))
	})
	return r
}

func (v *Viewer) getStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lc := v.conf.LinkConfig()
		s := Status{
			Version:     Version,
			Running:     v.session.Running(),
			CameraVideo: lc.VideoAddr(),
			CameraEvent: lc.EventAddr(),
			HasFrame:    v.session.LatestFrame() != nil,
			Clients:     v.hub.Len(),
		}
		if addr := v.session.LocalVideoAddr(); addr != nil {
			s.LocalVideoAddr = addr.String()
		}
		httputil.WriteJSON(w, r, http.StatusOK, s)
	}
}

func (v *Viewer) getFrame() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := v.LatestFrame()
		if err != nil {
			httputil.WriteJSON(w, r, http.StatusNotFound, err)
			return
		}
		writeJPEG(w, f)
	}
}

func (v *Viewer) getCaptures() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := v.Captures()
		if err != nil {
			httputil.WriteJSON(w, r, http.StatusInternalServerError, err)
			return
		}
		if list == nil {
			list = []*capture.Entry{}
		}
		httputil.WriteJSON(w, r, http.StatusOK, list)
	}
}

func (v *Viewer) postCapture() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := v.SaveLatest()
		switch err {
		case nil:
			httputil.WriteJSON(w, r, http.StatusCreated, e)
		case ErrNoFrame:
			httputil.WriteJSON(w, r, http.StatusConflict, err)
		default:
			httputil.WriteJSON(w, r, http.StatusInternalServerError, err)
		}
	}
}

func (v *Viewer) getCapture() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteJSON(w, r, http.StatusBadRequest, err)
			return
		}
		_, f, err := v.store.Load(id)
		switch err {
		case nil:
			writeJPEG(w, f)
		case capture.ErrNotFound:
			httputil.WriteJSON(w, r, http.StatusNotFound, err)
		default:
			httputil.WriteJSON(w, r, http.StatusInternalServerError, err)
		}
	}
}

func writeJPEG(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(b); err != nil {
		log.WithError(err).Debug("Failed to write frame")
	}
}
