// Package server exposes a running recording over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battcap/pkg/capacity"
	"github.com/charlie0129/battcap/pkg/events"
	"github.com/charlie0129/battcap/pkg/recorder"
	"github.com/charlie0129/battcap/pkg/telemetry"
)

// Server serves the samples of rec and controls src.
type Server struct {
	rec        *recorder.Recorder
	src        recorder.Source
	thresholds capacity.Thresholds
	hub        *events.EventHub
	srv        *http.Server

	// closeMu serializes close-port requests so that exactly one of them
	// closes the source and announces it.
	closeMu sync.Mutex
}

func New(rec *recorder.Recorder, src recorder.Source, thresholds capacity.Thresholds) *Server {
	s := &Server{
		rec:        rec,
		src:        src,
		thresholds: thresholds,
		hub:        events.NewEventHub(),
	}
	s.srv = &http.Server{
		Handler: s.setupRoutes(),
	}
	return s
}

func (s *Server) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logrus.StandardLogger(), s))
	router.GET("/samples", s.getSamples)
	router.GET("/samples/latest", s.getLatestSample)
	router.GET("/plotdata", s.getPlotData)
	router.GET("/capacity", s.getCapacity)
	router.GET("/events", s.streamEvents)
	router.POST("/close-port", s.closePort)
	router.GET("/version", getVersion)

	return router
}

// Handler returns the HTTP handler of s.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start listens on addr and serves in the background. It returns the
// address actually bound, which differs from addr when addr has port 0.
func (s *Server) Start(addr string) (net.Addr, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to listen on %s", addr)
	}

	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("http server stopped: %v", err)
		}
	}()

	return l.Addr(), nil
}

// PublishSample notifies event subscribers of a recorded sample.
func (s *Server) PublishSample(sample telemetry.Sample) {
	s.hub.Publish(events.SampleRecorded, sample)
}

// Subscribers returns the number of open event streams.
func (s *Server) Subscribers() int {
	return s.hub.Len()
}

func (s *Server) Shutdown(ctx context.Context) error {
	logrus.Info("shutting down http server")
	// Event streams never finish on their own.
	s.hub.Close()
	return s.srv.Shutdown(ctx)
}
