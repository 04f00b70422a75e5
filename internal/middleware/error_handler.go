package middleware

import (
	"github.com/gin-gonic/gin"

	"messenger/pkg/errors"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()

			statusCode := errors.HTTPStatusFromError(err.Err)
			body := gin.H{"error": err.Error()}
			if code := errors.ReasonCode(err.Err); code != "" {
				body["reason"] = code
			}

			c.JSON(statusCode, body)
		}
	}
}
