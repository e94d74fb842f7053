package daemon

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"inboxsync/internal/logger"
	"inboxsync/internal/model"
	"inboxsync/internal/syncer"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 20

type Server struct {
	echo    *echo.Echo
	manager *Manager
	port    int
	stopCh  chan struct{}
}

func NewServer(manager *Manager, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:    e,
		manager: manager,
		port:    port,
		stopCh:  make(chan struct{}, 1),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/status", s.handleStatus)
	s.echo.POST("/stop", s.handleStop)

	s.echo.POST("/sync", s.handleSync)
	s.echo.GET("/history", s.handleHistory)
	s.echo.GET("/connection", s.handleConnection)

	g := s.echo.Group("/ledger")
	g.POST("/cleanup", s.handleCleanup)
	g.POST("/reset", s.handleReset)
}

// Start listens on localhost only; the API has no authentication.
func (s *Server) Start() {
	go func() {
		addr := "127.0.0.1:" + strconv.Itoa(s.port)
		logger.Log.Info("daemon server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("daemon server error", zap.Error(err))
		}
	}()
}

// Stop waits for the manager to go idle and then shuts the API down. The
// ledger is safe to close once it returns nil.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.manager.Shutdown(ctx); err != nil {
		_ = s.echo.Close()
		return err
	}
	return s.echo.Shutdown(ctx)
}

func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.manager.Snapshot())
}

func (s *Server) handleStop(c echo.Context) error {
	select {
	case s.stopCh <- struct{}{}:
	default:
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleSync(c echo.Context) error {
	result, err := s.manager.Trigger(s.manager.Context(), model.TriggerManual)
	if errors.Is(err, syncer.ErrAlreadyRunning) {
		return c.JSON(http.StatusConflict, result)
	}
	if errors.Is(err, ErrStopped) {
		return c.JSON(http.StatusServiceUnavailable, result)
	}

	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleHistory(c echo.Context) error {
	n := defaultHistoryLimit
	if nStr := c.QueryParam("n"); nStr != "" {
		if parsed, err := strconv.Atoi(nStr); err == nil {
			n = parsed
		}
	}

	return c.JSON(http.StatusOK, s.manager.History(n))
}

func (s *Server) handleConnection(c echo.Context) error {
	return c.JSON(http.StatusOK, s.manager.TestConnection(c.Request().Context()))
}

func (s *Server) handleCleanup(c echo.Context) error {
	removed, err := s.manager.Cleanup(c.Request().Context())
	if errors.Is(err, syncer.ErrAlreadyRunning) {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleReset(c echo.Context) error {
	err := s.manager.ResetLedger(c.Request().Context())
	if errors.Is(err, syncer.ErrAlreadyRunning) {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "reset"})
}
