package stub

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/workload-runner/internal/logger"
	"github.com/workload-runner/internal/model"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Server is one stub service bound to its own listener. POST /shutdown stops
// it the same way SIGTERM stops the real services.
type Server struct {
	name string
	srv  *http.Server
	log  *zap.Logger

	once sync.Once
	done chan struct{}
}

func NewServer(name, addr string, store *Store, service model.Service, log *zap.Logger) *Server {
	s := &Server{
		name: name,
		log:  log.With(zap.String("service", name)),
		done: make(chan struct{}),
	}

	r := gin.New()
	r.Use(gin.Recovery(), logger.Middleware(s.log))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	NewHandler(store, service, s.stop).RegisterRoutes(r)

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

func (s *Server) Name() string { return s.name }

// Serve blocks until the server is shut down.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("starting stub service", zap.String("addr", ln.Addr().String()))
	err := s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-s.done
		return nil
	}
	return err
}

func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.log.Info("shutting down stub service")
		err = s.srv.Shutdown(ctx)
		close(s.done)
	})
	return err
}

func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		s.log.Error("stub service forced to shutdown", zap.Error(err))
	}
}
