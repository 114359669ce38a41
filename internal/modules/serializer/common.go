package serializer

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/devlog-hq/devlog/internal/pkg/apperr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var log = zap.NewNop()

// SetLogger sets the logger used for internal failures.
func SetLogger(l *zap.Logger) {
	if l != nil {
		log = l
	}
}

// Response
type Response struct {
	Code  int         `json:"code"`
	Data  interface{} `json:"data,omitempty"`
	Msg   string      `json:"msg"`
	Error string      `json:"error,omitempty"`
}

// ErrorResponse carries the rule that failed and the offending fields so
// clients can render the message next to the input.
type ErrorResponse struct {
	Response
	Kind    string   `json:"kind,omitempty"`
	ErrCode string   `json:"err_code,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

// Err
func Err(errCode int, msg string, err error) Response {
	res := Response{
		Code: errCode,
		Msg:  msg,
	}
	// development mode, show error detail
	if err != nil && gin.Mode() != gin.ReleaseMode {
		res.Error = fmt.Sprintf("%+v", err)
	}
	return res
}

// DBErr
func DBErr(msg string, err error) Response {
	if msg == "" {
		msg = "database error"
	}
	return Err(http.StatusInternalServerError, msg, err)
}

// ParamErr
func ParamErr(msg string, err error) Response {
	if msg == "" {
		msg = "parameter error"
	}
	return Err(http.StatusBadRequest, msg, err)
}

// AuthErr
func AuthErr(msg string) Response {
	if msg == "" {
		msg = "authentication error"
	}
	return Err(http.StatusUnauthorized, msg, nil)
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromError renders any service error. Internal failures are logged and
// shown with a generic message.
func FromError(err error) (int, ErrorResponse) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal("unexpected error", err)
	}

	status := StatusOf(ae.Kind)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err), zap.String("kind", string(ae.Kind)))
		msg := "internal error"
		if ae.Kind == apperr.KindDeletionFailed {
			msg = "deletion failed, nothing was removed"
		}
		return status, ErrorResponse{Response: Err(status, msg, err), Kind: string(ae.Kind)}
	}

	msg := ae.Msg
	if msg == "" {
		msg = string(ae.Kind)
	}
	return status, ErrorResponse{
		Response: Response{Code: status, Msg: msg},
		Kind:     string(ae.Kind),
		ErrCode:  string(ae.Code),
		Fields:   ae.Fields,
	}
}

// Abort writes err with the matching status and stops the chain.
func Abort(c *gin.Context, err error) {
	status, body := FromError(err)
	c.AbortWithStatusJSON(status, body)
}
