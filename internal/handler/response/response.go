package response

import (
	"github.com/gin-gonic/gin"

	"tezos-gateway/pkg/errno"
)

// Response defines the standard JSON structure. Error carries the stable
// identifier of a failure and is empty on success.
type Response struct {
	Code    int         `json:"code"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

// Success returns a success response with data
func Success(c *gin.Context, data interface{}) {
	if data == nil {
		data = gin.H{} // Return empty object instead of null
	}
	c.JSON(errno.OK.HTTPStatus, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Error returns an error response. Unknown errors are flattened to the
// generic internal error.
func Error(c *gin.Context, err error) {
	ErrorWithData(c, err, gin.H{})
}

// ErrorWithData is Error with a body, e.g. a failing health report.
func ErrorWithData(c *gin.Context, err error, data interface{}) {
	e := errno.Lookup(err)
	c.JSON(e.HTTPStatus, Response{
		Code:    e.Code,
		Error:   e.Name,
		Message: e.Message,
		Data:    data,
	})
}
