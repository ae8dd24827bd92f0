package cmds

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/go-go-golems/librarian/pkg/assistant"
	"github.com/go-go-golems/librarian/pkg/inference/engine/factory"
	"github.com/go-go-golems/librarian/pkg/inference/toolloop"
	"github.com/go-go-golems/librarian/pkg/inference/tools"
	"github.com/go-go-golems/librarian/pkg/library"
	"github.com/go-go-golems/librarian/pkg/steps/ai/settings"
	"github.com/go-go-golems/librarian/pkg/store"
)

const (
	DefaultDataDir      = "book-data"
	DefaultModelTimeout = 60 * time.Second
	DefaultRetryBackoff = time.Second
	DefaultCacheTTL     = 5 * time.Minute
)

var (
	DefaultBooksDB         = filepath.Join(DefaultDataDir, "books.db")
	DefaultConversationsDB = filepath.Join(DefaultDataDir, "conversations.db")
)

// App holds the collaborators a command needs to answer questions.
type App struct {
	Catalog  *library.Catalog
	Toolset  *library.Toolset
	Registry *tools.Registry
	Store    *store.Store
	Service  *assistant.Service
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return errors.Wrapf(os.MkdirAll(dir, 0o755), "could not create %s", dir)
}

// openCatalog opens the book catalog and seeds it when it is empty.
func openCatalog(ctx context.Context) (*library.Catalog, error) {
	path := viper.GetString("books-db")
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	catalog, err := library.Open(path)
	if err != nil {
		return nil, err
	}
	genres, err := catalog.ListGenres(ctx)
	if err != nil {
		_ = catalog.Close()
		return nil, err
	}
	if len(genres) == 0 {
		log.Info().Str("path", path).Msg("Seeding empty book catalog")
		if err := catalog.Seed(ctx, time.Now()); err != nil {
			_ = catalog.Close()
			return nil, err
		}
	}
	return catalog, nil
}

func openStore() (*store.Store, error) {
	path := viper.GetString("conversations-db")
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return store.Open(path)
}

// NewApp wires settings, model backend, book tools, conversation store and the assistant.
func NewApp(ctx context.Context) (*App, error) {
	ss := settings.NewStepSettings()
	if err := ss.UpdateFromViper(viper.GetViper()); err != nil {
		return nil, err
	}
	eng, err := factory.NewStandardEngineFactory().CreateEngine(ss)
	if err != nil {
		return nil, errors.Wrap(err, "could not create model backend")
	}

	catalog, err := openCatalog(ctx)
	if err != nil {
		return nil, err
	}
	app := &App{Catalog: catalog, Registry: tools.NewRegistry()}

	app.Toolset = library.NewToolset(catalog, library.WithCacheTTL(viper.GetDuration("cache-ttl")))
	if err := app.Toolset.Register(app.Registry); err != nil {
		app.Close()
		return nil, err
	}

	app.Store, err = openStore()
	if err != nil {
		app.Close()
		return nil, err
	}

	loopCfg := toolloop.DefaultLoopConfig()
	if viper.IsSet("max-iterations") {
		loopCfg = loopCfg.WithMaxIterations(viper.GetInt("max-iterations"))
	}
	if viper.IsSet("model-timeout") {
		loopCfg = loopCfg.WithModelTimeout(viper.GetDuration("model-timeout"))
	}

	app.Service, err = assistant.NewService(eng, app.Registry, app.Store,
		assistant.WithLoopConfig(loopCfg),
		assistant.WithSystemPromptTemplate(viper.GetString("system-prompt")),
	)
	if err != nil {
		app.Close()
		return nil, err
	}

	log.Debug().
		Str("provider", string(ss.Chat.Provider())).
		Str("model", ss.Chat.Model()).
		Strs("tools", app.Registry.Names()).
		Msg("Assistant ready")
	return app, nil
}

func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			log.Warn().Err(err).Msg("Could not close conversation store")
		}
	}
	if a.Catalog != nil {
		if err := a.Catalog.Close(); err != nil {
			log.Warn().Err(err).Msg("Could not close book catalog")
		}
	}
}
