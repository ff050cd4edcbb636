package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dietchain/internal/session"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderSessionID = "X-Session-ID"

	loggerKey  = "logger"
	sessionKey = "session"
)

// RequestLogger attaches a logger carrying the request id to every request
// and logs the request once it completes.
func RequestLogger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(HeaderRequestID, rid)

		l := base.With().Str("request_id", rid).Logger()
		c.Set(loggerKey, l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		start := time.Now()
		c.Next()

		l.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// SessionMiddleware resolves the caller's session from the X-Session-ID header,
// creating one when it is missing, and echoes the id back.
func SessionMiddleware(store SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, created := store.GetOrCreate(c.GetHeader(HeaderSessionID))
		c.Header(HeaderSessionID, sess.ID)
		c.Set(sessionKey, sess)

		l := requestLogger(c).With().Str("session_id", sess.ID).Logger()
		c.Set(loggerKey, l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
		if created {
			l.Debug().Msg("session created")
		}
		c.Next()
	}
}

func requestLogger(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(zerolog.Logger); ok {
			return &l
		}
	}
	return zerolog.Ctx(c.Request.Context())
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}
