package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/vip-booking/pkg/errors"
	"github.com/jwalitptl/vip-booking/pkg/httputil"
)

// ErrorHandler logs every error attached to the context and renders the last
// one when the handler did not write a response itself.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		for _, e := range c.Errors {
			code := apperrors.CodeOf(e.Err)
			var event *zerolog.Event
			if code == apperrors.CodeInternal {
				event = log.Error()
			} else {
				event = log.Debug()
			}
			event.
				Err(e.Err).
				Str("code", string(code)).
				Str("request_id", c.GetString(ContextRequestID)).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}
		httputil.RespondWithError(c, c.Errors.Last().Err)
	}
}
