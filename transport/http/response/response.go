package response

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/cardiac/errors"
)

const (
	defaultSuccessMessage = "success"
	successCode           = http.StatusOK

	defaultErrorMessage = "service temporarily unavailable"
	defaultErrorCode    = http.StatusServiceUnavailable
)

type Response struct {
	Code     int               `json:"code"`               // 业务逻辑代码
	Data     any               `json:"data,omitempty"`     // 响应数据，为nil时省略
	Message  string            `json:"message,omitempty"`  // 响应消息，为空时省略
	Metadata map[string]string `json:"metadata,omitempty"` // 错误元数据
}

// reset 清空所有字段用于对象池复用
func (r *Response) reset() {
	r.Code = 0
	r.Data = nil
	r.Message = ""
	r.Metadata = nil
}

var responsePool = sync.Pool{
	New: func() any {
		return &Response{}
	},
}

func acquireResponse() *Response {
	return responsePool.Get().(*Response)
}

func releaseResponse(r *Response) {
	if r != nil {
		r.reset()
		responsePool.Put(r)
	}
}

// GinJSON 写入成功的 JSON 响应
func GinJSON(c *gin.Context, data any) {
	if c == nil {
		return
	}

	resp := acquireResponse()
	defer releaseResponse(resp)

	resp.Code = successCode
	resp.Data = data
	resp.Message = defaultSuccessMessage
	c.JSON(successCode, resp)
}

// GinJSONE 写入错误响应并中止后续处理。
// 业务码落在 4xx/5xx 时同时作为 HTTP 状态码，其余一律 500
func GinJSONE(c *gin.Context, err error) {
	if c == nil {
		return
	}

	defer c.Abort()

	resp := acquireResponse()
	defer releaseResponse(resp)

	if err == nil {
		resp.Code = defaultErrorCode
		resp.Message = defaultErrorMessage
		c.JSON(defaultErrorCode, resp)
		return
	}

	e := errors.FromError(err)
	resp.Code = e.Code
	resp.Message = e.Message
	resp.Metadata = e.Metadata
	_ = c.Error(err)
	c.JSON(StatusFor(e.Code), resp)
}

// StatusFor 业务码到 HTTP 状态码
func StatusFor(code int) int {
	if code >= 400 && code <= 599 {
		return code
	}
	return http.StatusInternalServerError
}
