package handlers

import (
	"log"

	"github.com/gin-gonic/gin"

	"clinic-tracker/backend/internal/apperr"
)

var developmentMode = true

// SetDevelopmentMode controls whether internal error details reach the
// client. Production keeps them in the server log only.
func SetDevelopmentMode(enabled bool) {
	developmentMode = enabled
}

// respondError writes a classified error as JSON. Classified kinds travel
// with their message intact; anything unclassified is an internal error and
// is reported generically.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.StatusCode(err)

	if kind == apperr.KindInternal {
		log.Printf("internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		body := gin.H{
			"error":   string(kind),
			"message": "failed to process request",
		}
		if developmentMode {
			body["details"] = err.Error()
		}
		c.JSON(status, body)
		return
	}

	c.JSON(status, gin.H{
		"error":   string(kind),
		"message": err.Error(),
	})
}
