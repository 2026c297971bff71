package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/labstack/echo/v4"

	"github.com/storacha/devchain/pkg/admin/httpapi"
)

// LogHandler reads and changes the levels of the process's loggers. Every change is
// recorded on its own logger.
type LogHandler struct {
	audit *logging.ZapEventLogger
}

func NewLogHandler() *LogHandler {
	return &LogHandler{audit: logging.Logger("admin/log")}
}

// List returns each logger with its level, optionally only those whose name starts
// with the prefix query parameter.
func (h *LogHandler) List(ctx echo.Context) error {
	prefix := ctx.QueryParam(httpapi.LogPrefixParam)
	loggers := logging.SubsystemLevelNames()
	for name := range loggers {
		if !strings.HasPrefix(name, prefix) {
			delete(loggers, name)
		}
	}
	return ctx.JSON(http.StatusOK, &httpapi.ListLogLevelsResponse{Loggers: loggers})
}

// Set changes the level of one logger. Unknown loggers are a 404.
func (h *LogHandler) Set(ctx echo.Context) error {
	var req httpapi.SetLogLevelRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if req.System == "" {
		return ctx.String(http.StatusBadRequest, "system is required")
	}
	level, err := parseLevel(req.Level)
	if err != nil {
		return ctx.String(http.StatusBadRequest, err.Error())
	}

	if err := logging.SetLogLevel(req.System, level); err != nil {
		if errors.Is(err, logging.ErrNoSuchLogger) {
			return ctx.String(http.StatusNotFound, fmt.Sprintf("no logger named %q", req.System))
		}
		return ctx.String(http.StatusBadRequest, err.Error())
	}
	h.audit.Infow("log level changed", "system", req.System, "level", level)
	return ctx.JSON(http.StatusOK, &httpapi.SetLogLevelResponse{
		Loggers: map[string]string{req.System: level},
	})
}

// SetRegex changes the level of every logger matching the expression and returns the
// loggers it changed.
func (h *LogHandler) SetRegex(ctx echo.Context) error {
	var req httpapi.SetLogLevelRegexRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if req.Expression == "" {
		return ctx.String(http.StatusBadRequest, "expression is required")
	}
	level, err := parseLevel(req.Level)
	if err != nil {
		return ctx.String(http.StatusBadRequest, err.Error())
	}
	expr, err := regexp.Compile(req.Expression)
	if err != nil {
		return ctx.String(http.StatusBadRequest, fmt.Sprintf("invalid expression: %s", err))
	}

	if err := logging.SetLogLevelRegex(req.Expression, level); err != nil {
		return ctx.String(http.StatusBadRequest, err.Error())
	}

	changed := make(map[string]string)
	for name := range logging.SubsystemLevelNames() {
		if expr.MatchString(name) {
			changed[name] = level
		}
	}
	h.audit.Infow("log levels changed", "expression", req.Expression, "level", level, "loggers", len(changed))
	return ctx.JSON(http.StatusOK, &httpapi.SetLogLevelResponse{Loggers: changed})
}

// parseLevel checks level and returns its canonical name.
func parseLevel(level string) (string, error) {
	if level == "" {
		return "", errors.New("level is required")
	}
	lvl, err := logging.Parse(level)
	if err != nil {
		return "", fmt.Errorf("invalid level %q", level)
	}
	return lvl.String(), nil
}
