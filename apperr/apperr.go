// Package apperr is the error taxonomy shared by every handler. Each error
// carries a human-readable message and a stable machine-readable code.
package apperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cafemanager/logger"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
	KindConflict
)

// generic codes
const (
	CodeInternal     = "INTERNAL"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_FAILED"
	CodeConflict     = "CONFLICT"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: msg}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: msg}
}

// Conflict is reported as 400, like validation failures.
func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "Something went wrong, please try again later", Err: err}
}

// WithCode replaces the generic code.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// Status maps a kind to its HTTP status.
func Status(k Kind) int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// From resolves any error into an *Error. Record-not-found becomes NotFound,
// anything unrecognised becomes Internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound("Not found")
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return Conflict(CodeConflict, "Record already exists")
	}
	return Internal(err)
}

// Is reports whether err resolves to kind k.
func Is(err error, k Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == k
	}
	return k == KindNotFound && errors.Is(err, gorm.ErrRecordNotFound)
}

// Respond writes err in the standard envelope and aborts the chain.
func Respond(c *gin.Context, err error) {
	e := From(err)
	if e.Kind == KindInternal {
		logger.Ctx(c.Request.Context()).Error().Err(e.Err).Str("route", c.FullPath()).Msg("internal error")
	}
	c.AbortWithStatusJSON(Status(e.Kind), gin.H{
		"success": false,
		"error":   e.Message,
		"code":    e.Code,
	})
}
