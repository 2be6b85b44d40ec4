// Package server exposes the catalog over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"rpucella.net/red-drive/internal/admin"
	"rpucella.net/red-drive/internal/archive"
	"rpucella.net/red-drive/internal/catalog"
	"rpucella.net/red-drive/internal/logger"
	"rpucella.net/red-drive/internal/upload"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	store       *catalog.Store
	coord       *upload.Coordinator
	bundler     *archive.Bundler
	gate        *admin.Gate
	archiveName string
	log         *logrus.Entry
}

func New(store *catalog.Store, coord *upload.Coordinator, bundler *archive.Bundler, gate *admin.Gate, archiveName string, log *logrus.Entry) *Server {
	if archiveName == "" {
		archiveName = archive.ArchiveName
	}
	return &Server{store, coord, bundler, gate, archiveName, logger.OrDefault(log, "server")}
}

// Router builds the gin engine serving the API.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/resources", s.listResources)
		v1.GET("/resources/:id", s.getResource)
		v1.GET("/categories", s.listCategories)
		v1.GET("/archive", s.downloadArchive)
	}
	mutations := v1.Group("/resources")
	mutations.Use(adminOnly(s.gate, s.log))
	{
		mutations.POST("", s.createResource)
		mutations.PUT("/:id", s.editResource)
		mutations.DELETE("/:id", s.deleteResource)
	}
	return router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	errc := make(chan error, 1)
	go func() {
		s.log.WithField("address", addr).Info("listening")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info("stopped")
	return nil
}
