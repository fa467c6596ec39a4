package ipc

import (
	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, runner CommandRunner) {
	e.GET("/status", statusHandler(runner))
	e.GET("/list", listHandler(runner))
	e.POST("/set", commandHandler(runner))
	e.POST("/next", commandHandler(runner))
	e.POST("/random", commandHandler(runner))
	e.POST("/stop", commandHandler(runner))
}
