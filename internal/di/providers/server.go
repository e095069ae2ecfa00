package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/shelfsyncapp/shelfsync-server/internal/api"
	"github.com/shelfsyncapp/shelfsync-server/internal/config"
	"github.com/shelfsyncapp/shelfsync-server/internal/logger"
	"github.com/shelfsyncapp/shelfsync-server/internal/service"
)

// ServerHandle wraps the API server with Shutdownable.
type ServerHandle struct {
	*api.Server
}

// Shutdown implements do.Shutdownable.
func (h *ServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP API server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*ServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Import: do.MustInvoke[*service.ImportService](i),
		Book:   do.MustInvoke[*service.BookService](i),
	}

	srv := api.NewServer(cfg, storeHandle.Store, services, sseHandle.Manager, log)

	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &ServerHandle{Server: srv}, nil
}
