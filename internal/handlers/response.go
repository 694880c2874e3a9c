package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/pinechat-backend/internal/apierr"
)

// statusForErr maps the error taxonomy to transport statuses. Anything
// unclassified is a server fault.
func statusForErr(err error) int {
	switch apierr.KindOf(err) {
	case apierr.KindValidation:
		return http.StatusBadRequest
	case apierr.KindNotFound:
		return http.StatusNotFound
	case apierr.KindGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondErr(c *gin.Context, err error) {
	c.JSON(statusForErr(err), gin.H{"error": err.Error()})
}
