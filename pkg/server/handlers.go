package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battcap/pkg/capacity"
	"github.com/charlie0129/battcap/pkg/events"
	"github.com/charlie0129/battcap/pkg/version"
)

func (s *Server) getSamples(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.rec.Samples())
}

func (s *Server) getLatestSample(c *gin.Context) {
	sample, ok := s.rec.Latest()
	if !ok {
		err := errors.New("no samples recorded yet")
		c.IndentedJSON(http.StatusNotFound, err.Error())
		_ = c.AbortWithError(http.StatusNotFound, err)
		return
	}

	c.IndentedJSON(http.StatusOK, sample)
}

func (s *Server) getPlotData(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.rec.Series())
}

func (s *Server) getCapacity(c *gin.Context) {
	res, err := capacity.Compute(s.rec.Series(), s.thresholds)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, capacity.ErrNoValidPoints) {
			status = http.StatusUnprocessableEntity
		} else {
			logrus.Errorf("getCapacity failed: %v", err)
		}
		c.IndentedJSON(status, err.Error())
		_ = c.AbortWithError(status, err)
		return
	}

	c.IndentedJSON(http.StatusOK, res)
}

func (s *Server) closePort(c *gin.Context) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.src.Closed() {
		c.String(http.StatusOK, "Port is already closed")
		return
	}

	if err := s.src.Close(); err != nil {
		logrus.Errorf("closePort failed: %v", err)
		c.String(http.StatusInternalServerError, "Error closing port: "+err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Info("port closed on request")
	s.hub.Publish(events.PortClosed, events.PortClosedEvent{
		Samples: s.rec.Len(),
		Ts:      time.Now().Unix(),
	})
	c.String(http.StatusOK, "Port closed successfully")
}

func (s *Server) streamEvents(c *gin.Context) {
	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	// Send headers now so subscribers are not blocked until the first event.
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(_ io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
