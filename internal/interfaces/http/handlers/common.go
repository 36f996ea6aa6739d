// Package handlers contains the gin HTTP handlers for the ChemLens API.
// Handlers are thin: bind, call the application service, map the result into
// the shared response envelope.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/chemlens/chemlens/pkg/errors"
	"github.com/chemlens/chemlens/pkg/types/common"
)

// respond writes a success envelope with the given status code.
func respond(c *gin.Context, status int, data any) {
	c.JSON(status, common.APIResponse[any]{Success: true, Data: data})
}

// respondError maps an error to its HTTP status via the AppError code table
// and writes an error envelope.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	c.JSON(code.HTTPStatus(), common.APIResponse[any]{
		Success: false,
		Error:   &common.ErrorDetail{Code: code.String(), Message: err.Error()},
	})
}

// badRequest writes a 400 envelope for request binding failures.
func badRequest(c *gin.Context, err error) {
	respondError(c, errors.InvalidParam("invalid request").WithCause(err).WithDetail(err.Error()))
}

// parsePagination reads page / page_size query parameters with sane bounds.
func parsePagination(c *gin.Context) common.Pagination {
	p := common.Pagination{Page: 1, PageSize: 50}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 && v <= 500 {
		p.PageSize = v
	}
	return p
}

// noContent writes an empty 204 response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
