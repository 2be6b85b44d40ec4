package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"rpucella.net/red-drive/internal/admin"
)

const PasswordHeader = "X-Admin-Password"

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}

// adminOnly accepts the password from PasswordHeader or from the
// password part of basic auth.
func adminOnly(gate *admin.Gate, log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		password := c.GetHeader(PasswordHeader)
		if password == "" {
			_, password, _ = c.Request.BasicAuth()
		}
		if err := gate.Check(password); err != nil {
			log.WithField("path", c.Request.URL.Path).WithError(err).Warn("admin access refused")
			c.Header("WWW-Authenticate", `Basic realm="reddrive"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}
