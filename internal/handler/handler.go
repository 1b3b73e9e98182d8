// Package handler holds the helpers shared by the HTTP handlers.
package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/vip-booking/pkg/errors"
	"github.com/jwalitptl/vip-booking/pkg/httputil"
)

// BindJSON decodes the request body into obj. Field rule violations are left
// on the context for the validation middleware; malformed bodies are answered
// here. It reports whether the handler may continue.
func BindJSON(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return false
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		httputil.RespondWithError(c, apperrors.Validation("request body too large"))
		return false
	}
	httputil.RespondWithError(c, apperrors.Validation("malformed request body"))
	return false
}

// BindQuery is BindJSON for query strings.
func BindQuery(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindQuery(obj)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return false
	}
	httputil.RespondWithError(c, apperrors.Validation("malformed query: "+err.Error()))
	return false
}

// Param returns a trimmed path parameter.
func Param(c *gin.Context, name string) string {
	return strings.TrimSpace(c.Param(name))
}

// Fail renders err with its application error status.
func Fail(c *gin.Context, err error) {
	httputil.RespondWithError(c, err)
}

func OK(c *gin.Context, data interface{}) {
	httputil.RespondWithSuccess(c, http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	httputil.RespondWithSuccess(c, http.StatusCreated, data)
}
