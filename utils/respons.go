package utils

import (
	"github.com/gin-gonic/gin"
)

// ErrorBody is the shape every error leaves the proxy surface in.
type ErrorBody struct {
	Error interface{} `json:"error"`
}

// RespondError writes {"error": err.Error()} and aborts the chain.
func RespondError(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, ErrorBody{Error: err.Error()})
}

// RespondErrorBody wraps an arbitrary (already decoded) upstream body.
func RespondErrorBody(c *gin.Context, code int, body interface{}) {
	c.AbortWithStatusJSON(code, ErrorBody{Error: body})
}
