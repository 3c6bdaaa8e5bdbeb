package ipc

import (
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/matjam/shaderpaper"
	"github.com/spf13/viper"
)

// GET /status
func statusHandler(m ManagerInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		status := m.Status()
		status.Status = "ok"
		status.Message = "shaderpaper is running"
		status.Version = strings.Trim(shaderpaper.Version, "\n\r ")
		status.PID = os.Getpid()
		status.Socket = SocketPath()
		status.Config = viper.ConfigFileUsed()
		return c.JSONPretty(http.StatusOK, status, "  ")
	}
}

// POST /stop
func stopHandler(m ManagerInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !m.EnqueueCommand(Command{Type: CommandStop}) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "another command is pending"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

// POST /reload
func reloadHandler(m ManagerInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !m.EnqueueCommand(Command{Type: CommandReload}) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "another command is pending"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

// POST /load
func loadHandler(m ManagerInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req LoadRequest
		if err := c.Bind(&req); err != nil || req.Path == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "expected a JSON object with a shader path"})
		}

		if !m.EnqueueCommand(Command{Type: CommandLoad, Args: []string{req.Path}}) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "another command is pending"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"status": "ok",
			"shader": req.Path,
		})
	}
}
