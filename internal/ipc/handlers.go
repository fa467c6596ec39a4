package ipc

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"

	"github.com/matjam/vidpaper"
	"github.com/matjam/vidpaper/internal/engine"
)

// GET /status
func statusHandler(runner CommandRunner) echo.HandlerFunc {
	return func(c echo.Context) error {
		res, err := runner.Do(c.Request().Context(), engine.Command{Type: engine.CommandStatus})
		if err != nil {
			return commandError(c, err)
		}
		return c.JSONPretty(http.StatusOK, StatusResponse{
			Status:  "ok",
			Message: "vidpaper is running",
			Version: strings.Trim(vidpaper.Version, "\n\r "),
			PID:     os.Getpid(),
			Socket:  SocketPath(),
			Config:  viper.ConfigFileUsed(),
			Uptime:  res.Uptime,
			Outputs: res.Outputs,
		}, "  ")
	}
}

// GET /list
func listHandler(runner CommandRunner) echo.HandlerFunc {
	return func(c echo.Context) error {
		cmd := engine.Command{
			Type:   engine.CommandList,
			Output: c.QueryParam("output"),
		}
		res, err := runner.Do(c.Request().Context(), cmd)
		if err != nil {
			return commandError(c, err)
		}
		return c.JSONPretty(http.StatusOK, Response{Status: "ok", Data: res}, "  ")
	}
}

// POST /set, /next, /random, /stop. The path names the command; the JSON
// body carries its arguments.
func commandHandler(runner CommandRunner) echo.HandlerFunc {
	return func(c echo.Context) error {
		var cmd engine.Command
		if err := c.Bind(&cmd); err != nil {
			return c.JSON(http.StatusBadRequest, Response{
				Status: "error", Message: "invalid command body",
			})
		}
		cmd.Type = engine.CommandType(strings.TrimPrefix(c.Path(), "/"))

		res, err := runner.Do(c.Request().Context(), cmd)
		if err != nil {
			return commandError(c, err)
		}
		return c.JSON(http.StatusOK, Response{Status: "ok", Data: res})
	}
}

func commandError(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	if errors.Is(err, engine.ErrUnknownOutput) {
		code = http.StatusNotFound
	}
	return c.JSON(code, Response{Status: "error", Message: err.Error()})
}
