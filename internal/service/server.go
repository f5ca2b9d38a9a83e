package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server 看板 HTTP 服务；Stop 先停止接收请求，再按注册的逆序关闭依赖资源
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	closers    []closer
}

type closer struct {
	name string
	fn   func() error
}

func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return &Server{httpServer: s, logger: logger}
}

// OnStop 注册退出时关闭的资源（实时订阅、Redis、数据库连接等）
func (s *Server) OnStop(name string, fn func() error) {
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

// Start 阻塞直到服务退出；正常 Stop 返回 nil
func (s *Server) Start() error {
	s.logger.Info("Dashboard API listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.logger.Warn("Dashboard API shutdown incomplete", zap.Error(err))
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if cerr := c.fn(); cerr != nil {
			s.logger.Warn("Failed to release resource", zap.String("resource", c.name), zap.Error(cerr))
		}
	}
	s.closers = nil
	s.logger.Info("Dashboard API stopped")
	return err
}
