package providers

import (
	"github.com/samber/do/v2"

	"github.com/shelfsyncapp/shelfsync-server/internal/config"
	"github.com/shelfsyncapp/shelfsync-server/internal/ingest"
	"github.com/shelfsyncapp/shelfsync-server/internal/logger"
	"github.com/shelfsyncapp/shelfsync-server/internal/service"
)

// ProvideMatchQueue provides the manual match queue.
func ProvideMatchQueue(i do.Injector) (*ingest.Queue, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return ingest.NewQueue(cfg.Import.QueueRetention), nil
}

// ProvideImportService provides the import service and its pipeline engine.
func ProvideImportService(i do.Injector) (*service.ImportService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	queue := do.MustInvoke[*ingest.Queue](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	opts := ingest.Options{
		BatchSize: cfg.Import.BatchSize,
		Strict:    cfg.Import.StrictMode,
	}

	return service.NewImportService(storeHandle.Store, indexHandle.Index, queue, sseHandle.Manager, log, opts), nil
}

// ProvideBookService provides the book service.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBookService(storeHandle.Store, indexHandle.Index, log), nil
}
