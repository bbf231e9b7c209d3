package handler

import (
	"strconv"

	"merchant-settlement/internal/adapter/http/middleware"
	"merchant-settlement/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// callerID returns the authenticated subject and role.
func callerID(c *gin.Context) (uuid.UUID, string, error) {
	id, role, ok := middleware.Caller(c)
	if !ok {
		return uuid.Nil, "", apperror.ErrInvalidToken()
	}
	return id, role, nil
}

// pathUUID parses a UUID path parameter.
func pathUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid " + name)
	}
	return id, nil
}

// pagination reads page and page_size, clamping them to sane bounds.
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}
