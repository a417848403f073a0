package app

import (
	"database/sql"
	"fmt"

	"moviehub/internal/catalog"
	"moviehub/internal/ingest"
	"moviehub/pkg/database"
	"moviehub/pkg/logger"
	"moviehub/pkg/utils"
)

// Env is what every binary opens at startup.
type Env struct {
	Config  utils.Config
	Log     *logger.Logger
	DB      *sql.DB
	DBPath  string
	Catalog *catalog.Repo
}

// Bootstrap loads configuration, builds the logger and opens the migrated catalog.
func Bootstrap(name string) (*Env, error) {
	cfg, err := utils.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return Open(cfg, log.With("app", name))
}

// Open opens the catalog described by cfg and applies the schema.
func Open(cfg utils.Config, log *logger.Logger) (*Env, error) {
	dbCfg := database.DefaultConfig()
	if cfg.DatabasePath != "" {
		dbCfg.Path = cfg.DatabasePath
	}
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	log = logger.OrNop(log)
	log.Info("catalog opened", "path", dbCfg.Path, "schema_version", database.SchemaVersion())
	return &Env{Config: cfg, Log: log, DB: db, DBPath: dbCfg.Path, Catalog: catalog.NewRepo(db)}, nil
}

// Pipeline wires the HTTP source, local asset storage and the catalog.
func (e *Env) Pipeline() (*ingest.Pipeline, error) {
	in := e.Config.Ingest
	assets, err := ingest.NewLocalAssets(in.AssetDir)
	if err != nil {
		return nil, err
	}
	src := ingest.NewClient(in.FeedURL, in.UserAgent, in.FetchTimeout, in.RequestsPerSecond)
	p := ingest.New(src, e.Catalog, assets, in, e.Log)
	// api-server, grpc-server and cmd/ingest may all point at one catalog file
	p.LockPath = e.DBPath + ".ingest.lock"
	return p, nil
}

func (e *Env) Close() {
	if err := e.DB.Close(); err != nil {
		e.Log.Warn("db close failed", "error", err)
	}
	e.Log.Sync()
}
