package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/familytree-backend/internal/domain/family"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// internalMessage replaces storage detail on 5xx responses.
const internalMessage = "internal error"

// RespondDomainError maps a family error code onto an HTTP status. Only the
// error's public message is exposed; causes stay in the logs.
func RespondDomainError(c *gin.Context, err error) {
	code := family.CodeOf(err)
	status := StatusFor(code)
	msg := internalMessage
	var fe *family.Error
	if errors.As(err, &fe) && (status < http.StatusInternalServerError || code == family.CodeExternalTool) {
		msg = fe.Message
	}
	if code == "" {
		code = family.CodeInternal
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: string(code)}})
}

func StatusFor(code family.ErrorCode) int {
	switch code {
	case family.CodeValidation:
		return http.StatusBadRequest
	case family.CodeNotFound:
		return http.StatusNotFound
	case family.CodeConflict:
		return http.StatusConflict
	case family.CodeExternalTool:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
