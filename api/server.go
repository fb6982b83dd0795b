package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer 是 *http.Server 的最小接口。
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// ServerService 把 HTTP 服务包装为 suture.Service：ctx 结束时优雅关闭。
type ServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
}

func NewServerService(name string, server HTTPServer, shutdownTimeout time.Duration) *ServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	if name == "" {
		name = "http-server"
	}
	return &ServerService{server: server, shutdownTimeout: shutdownTimeout, name: name}
}

// NewHTTPServer 创建带常用超时的 *http.Server。
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *ServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s failed: %w", s.name, err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s shutdown failed: %w", s.name, err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *ServerService) String() string { return s.name }
