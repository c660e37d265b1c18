package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"moff.io/moff-connector/pkg/common"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
	"moff.io/moff-connector/pkg/log/meta"
)

const requestIDHeader = "x-request-id"

// responseBodyWriter records the handler response body.
type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (r responseBodyWriter) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

type httpInfo struct {
	RequestID     string            `json:"request_id,omitempty"`
	Headers       map[string]string `json:"headers"`
	Method        string            `json:"method"`
	RequestAPI    string            `json:"request_api,omitempty"`
	RemoteAddr    string            `json:"remote_addr,omitempty"`
	Response      *response         `json:"response,omitempty"`
	ExecutionTime string            `json:"execution_time,omitempty"`
}

func newHTTPInfo(ctx *gin.Context) *httpInfo {
	return &httpInfo{
		RequestID:  meta.String(ctx.Request.Context(), meta.KeyRequestID),
		Headers:    requestHeaderFilter(ctx.Request.Header),
		Method:     ctx.Request.Method,
		RequestAPI: ctx.Request.RequestURI,
		RemoteAddr: common.TrimIP(ctx.Request.RemoteAddr),
	}
}

// RecoveredHTTPLog logs every request with its response and turns panics into 500s.
// It also starts the request metadata, so it must be registered before handlers reading it.
func RecoveredHTTPLog() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		rctx := meta.Begin(ctx.Request.Context())
		requestID := ctx.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = common.NewCutUUIDString()
		}
		meta.WithValue(rctx, meta.KeyRequestID, requestID)
		meta.WithValue(rctx, meta.KeyCaller, ctx.ClientIP())
		ctx.Request = ctx.Request.WithContext(rctx)
		ctx.Header(requestIDHeader, requestID)

		w := &responseBodyWriter{body: &bytes.Buffer{}, ResponseWriter: ctx.Writer}
		ctx.Writer = w

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				err := errors.ErrorfAndReport("%v", r)
				log.Error(err)
			}
			logHTTP(ctx, w, start)
		}()
		ctx.Next()
	}
}

const defaultRequestTimeout = time.Second * 60

// TimeoutHTTP bounds the request context, 60s unless a positive timeout is given.
func TimeoutHTTP(timeout ...time.Duration) gin.HandlerFunc {
	d := defaultRequestTimeout
	if len(timeout) != 0 && timeout[0] > 0 {
		d = timeout[0]
	}
	return func(ctx *gin.Context) {
		timeoutCtx, cancelFunc := context.WithTimeout(ctx.Request.Context(), d)
		defer cancelFunc()
		ctx.Request = ctx.Request.WithContext(timeoutCtx)
		ctx.Next()
	}
}

func logHTTP(ctx *gin.Context, w *responseBodyWriter, start time.Time) {
	if !ctx.Writer.Written() {
		ctx.JSON(http.StatusInternalServerError, map[string]interface{}{
			"code": 5000,
			"msg":  "Server internal error",
		})
	}

	s := w.Status()
	info := newHTTPInfo(ctx)
	info.Response = decodeHandlerResponse(w.body.Bytes(), s)
	info.ExecutionTime = fmt.Sprintf("%vms", time.Since(start).Milliseconds())
	switch {
	case s < http.StatusBadRequest:
		log.Info(common.MustGetJSONString(info))
	case s >= http.StatusInternalServerError:
		log.Error(common.MustGetJSONString(info))
	default:
		log.Warn(common.MustGetJSONString(info))
	}
}

type response struct {
	// ProtocolCode is the HTTP status code.
	ProtocolCode int `json:"protocol_code"`
	// Code is the business code.
	Code interface{} `json:"code,omitempty"`
	// Message is the response message.
	Message interface{} `json:"msg,omitempty"`
}

func decodeHandlerResponse(respBody []byte, httpCode int) *response {
	var resp response
	_ = json.Unmarshal(respBody, &resp)
	resp.ProtocolCode = httpCode
	return &resp
}

var excludedHeaders = map[string]bool{
	"token":         true,
	"access-token":  true,
	"authorization": true,
}

func requestHeaderFilter(headers map[string][]string) map[string]string {
	filtered := make(map[string]string)
	for k, v := range headers {
		k = strings.ToLower(k)
		if excludedHeaders[k] {
			continue
		}
		filtered[k] = strings.Join(v, ";")
	}
	return filtered
}
