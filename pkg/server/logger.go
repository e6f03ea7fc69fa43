package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// requestLogger logs one entry per request. Event streams are logged when
// they end, with how long the subscriber stayed connected.
func requestLogger(logger logrus.FieldLogger, s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"route":   route,
			"method":  c.Request.Method,
			"status":  status,
			"client":  c.ClientIP(),
			"elapsed": elapsed.Round(time.Millisecond).String(),
			"bytes":   max(c.Writer.Size(), 0),
			"samples": s.rec.Len(),
		})

		if route == "/events" {
			entry.WithField("subscribers", s.Subscribers()).Debug("event stream closed")
			return
		}

		if len(c.Errors) > 0 {
			if status < http.StatusInternalServerError {
				entry.Debug(c.Errors.ByType(gin.ErrorTypePrivate).String())
				return
			}
			entry.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
			return
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}
