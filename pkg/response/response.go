package response

import (
	"errors"
	"net/http"

	"rispay/pkg/apperr"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

const (
	CodeInsufficientFunds = 1003
	CodeConflict          = 1009
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Kind    string      `json:"kind,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, status, code int, kind apperr.Kind, message string) {
	c.JSON(status, Response{
		Code:    code,
		Message: message,
		Kind:    string(kind),
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, apperr.KindValidation, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, apperr.KindAuthentication, message)
}

// FromError 按错误分类输出，存储错误只返回通用提示
func FromError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status, code := StatusOf(kind)

	message := "内部错误，请稍后重试"
	var e *apperr.Error
	if errors.As(err, &e) && kind != apperr.KindStore {
		message = e.Message
	}
	Error(c, status, code, kind, message)
}

// StatusOf 错误分类到 HTTP 状态码与业务码的映射
func StatusOf(kind apperr.Kind) (int, int) {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, CodeParamError
	case apperr.KindAuthentication:
		return http.StatusUnauthorized, CodeUnauthorized
	case apperr.KindAuthorization:
		return http.StatusForbidden, CodeForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound, CodeNotFound
	case apperr.KindInsufficientFunds:
		return http.StatusBadRequest, CodeInsufficientFunds
	case apperr.KindConflict:
		return http.StatusConflict, CodeConflict
	default:
		return http.StatusInternalServerError, CodeServerError
	}
}
