// Package adminapi exposes meetings, participants, notification settings and
// the delivery log over the admin HTTP API.
package adminapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughmeeting/internal/app"
	"github.com/talkincode/toughmeeting/internal/domain"
	"github.com/talkincode/toughmeeting/internal/webserver"
	"github.com/talkincode/toughmeeting/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	operatorHeader  = "X-Operator"
	defaultOperator = "admin"
)

// Init registers every admin route on the current webserver.
func Init() {
	registerMeetingRoutes()
	registerParticipantRoutes()
	registerSettingsRoutes()
	registerLogRoutes()
	registerNotifyRoutes()
	registerWhatsAppRoutes()
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ListResponse is the body of paged list requests.
type ListResponse struct {
	Data interface{} `json:"data"`
	Meta PageMeta    `json:"meta"`
}

type PageMeta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"data": data})
}

func created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, map[string]interface{}{"data": data})
}

func fail(c echo.Context, status int, code, message string, details interface{}) error {
	return c.JSON(status, ErrorResponse{Error: code, Message: message, Details: details})
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, ListResponse{
		Data: data,
		Meta: PageMeta{Total: total, Page: page, PageSize: pageSize},
	})
}

// parsePagination reads page and perPage (or pageSize) from the query string.
func parsePagination(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.QueryParam("perPage"))
	if size == 0 {
		size, _ = strconv.Atoi(c.QueryParam("pageSize"))
	}
	if size < 1 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}

func parseBoolQuery(c echo.Context, name string) *bool {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

func GetAppContext(c echo.Context) app.AppContext {
	return webserver.GetAppContext(c)
}

func GetDB(c echo.Context) *gorm.DB {
	return GetAppContext(c).DB()
}

// location is the business timezone of the running scheduler.
func location(c echo.Context) *time.Location {
	return GetAppContext(c).Clock().Location()
}

// parseDate accepts YYYY-MM-DD or any layout dateparse understands and
// returns the calendar date in the business timezone.
func parseDate(value string, loc *time.Location) (string, error) {
	if d, err := domain.NormalizeDate(value); err == nil {
		return d, nil
	}
	t, err := dateparse.ParseIn(strings.TrimSpace(value), loc)
	if err != nil {
		return "", domain.ErrInvalidDate
	}
	return t.In(loc).Format(domain.DateLayout), nil
}

// parseInstant reads an optional timestamp query parameter.
func parseInstant(c echo.Context, name string) (time.Time, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return time.Time{}, nil
	}
	return dateparse.ParseIn(v, location(c))
}

func operator(c echo.Context) string {
	return common.IfEmptyStr(strings.TrimSpace(c.Request().Header.Get(operatorHeader)), defaultOperator)
}

// audit records an operator action; failures are only logged.
func audit(c echo.Context, action, desc string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := GetAppContext(c).OprLogs().Add(ctx, operator(c), c.RealIP(), action, desc); err != nil {
		zap.L().Warn("adminapi: audit log failed", zap.String("action", action), zap.Error(err))
	}
}
