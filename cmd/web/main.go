// cmd/web/main.go
//
// Formforge – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load env vars (jail-wide file → .env fallback).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Dial Vault when any config value is a vault: reference, then load,
//     resolve, and validate config.
//
//  4. Open the database, apply the schema, and wrap the store in the
//     published-form cache.
//
//  5. Optionally import YAML seed forms (-seed).
//
//  6. Wire the forms engine (catalog, builder, editor, processor, previewer)
//     and hand it to every registered component.
//
//  7. Root router:
//
//     • request id, real-ip aware enrichment, panic recovery
//     • optional HTTPS redirect and security headers
//     • /metrics, /healthz, static /uploads
//     • every component’s routes
//
//  8. Serve until SIGINT / SIGTERM, then drain.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/formforge/internal/component"
	"github.com/yanizio/formforge/internal/config"
	"github.com/yanizio/formforge/internal/database"
	"github.com/yanizio/formforge/internal/form"
	"github.com/yanizio/formforge/internal/lang"
	"github.com/yanizio/formforge/internal/logger"
	"github.com/yanizio/formforge/internal/message"
	"github.com/yanizio/formforge/internal/middleware"
	"github.com/yanizio/formforge/internal/requestinfo"
	"github.com/yanizio/formforge/internal/server"
	"github.com/yanizio/formforge/internal/storage"
	"github.com/yanizio/formforge/internal/store"
	"github.com/yanizio/formforge/internal/vault"

	_ "github.com/yanizio/formforge/components/builder" // admin JSON API
	_ "github.com/yanizio/formforge/components/submit"  // public form surface
)

const serverEnvPath = "/usr/local/etc/formforge/global.env"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	seed := flag.Bool("seed", false, "import YAML form definitions from forms.seed_dirs before serving")
	seedOnly := flag.Bool("seed-only", false, "import YAML form definitions and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := config.Root()
	logOut, err := logger.New(root, runningInTTY(), logger.Options{})
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer logOut.Sync()

	//
	// ── 1.  Config (+ Vault) ────────────────────────────────────────────
	//
	var secrets config.SecretResolver
	if config.NeedsVault() {
		vc, err := vault.New(ctx, logOut)
		if err != nil {
			logOut.Fatalw("vault client", "err", err)
		}
		secrets = vc
	}
	cfg, err := config.Load(ctx, secrets)
	if err != nil {
		logOut.Fatalw("load config", "err", err)
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		logOut.Fatalw("log level", "err", err)
	}

	//
	// ── 2.  Database ────────────────────────────────────────────────────
	//
	logOut.Infow("connecting to database", "driver", cfg.Database.Driver)
	db, err := database.OpenWithOptions(cfg.Database.Driver, cfg.Database.ResolvedDSN(),
		orInt(cfg.Database.MaxOpen, 15), orInt(cfg.Database.MaxIdle, 5))
	if err != nil {
		logOut.Fatalw("connect database", "err", err)
	}
	defer db.Close()

	sqlStore := store.New(db)
	if err := sqlStore.Migrate(ctx); err != nil {
		logOut.Fatalw("migrate", "err", err)
	}
	repo := store.NewCached(sqlStore, cfg.Forms.SchemaCacheSize)
	logOut.Info("database online")

	//
	// ── 3.  Forms engine ────────────────────────────────────────────────
	//
	catalog := form.DefaultCatalog()

	if *seed || *seedOnly {
		n, err := seedForms(ctx, repo, catalog, cfg)
		if err != nil {
			logOut.Fatalw("seed forms", "err", err)
		}
		logOut.Infow("seed forms imported", "count", n)
		if *seedOnly {
			return
		}
	}

	uploadDir := absPath(root, cfg.Forms.UploadDir)
	disk, err := storage.NewDisk(uploadDir, cfg.Forms.UploadURL)
	if err != nil {
		logOut.Fatalw("upload storage", "err", err)
	}

	bundle, err := lang.Load(absPath(root, cfg.Lang.Dir), cfg.Forms.DefaultLocale)
	if err != nil {
		logOut.Fatalw("load languages", "err", err)
	}

	proc := form.NewProcessor(repo, disk, catalog)
	proc.MaxPerWindow = cfg.Forms.MaxSubmissionsPerHour
	proc.Window = cfg.Forms.RateWindow
	proc.UploadPrefix = cfg.Forms.UploadPrefix
	proc.Translator = bundle.For(cfg.Forms.DefaultLocale)
	proc.Notifier = &form.EmailNotifier{
		Queue:  &message.LogQueue{},
		From:   cfg.Forms.NotifyFrom,
		Locale: cfg.Forms.DefaultLocale,
	}

	deps := component.Deps{
		Config:    cfg,
		Repo:      repo,
		Lister:    repo,
		Catalog:   catalog,
		Editor:    form.NewEditor(repo, form.NewBuilder(catalog), cfg.Forms.DefaultLocale),
		Processor: proc,
		Previewer: form.NewPreviewer(),
		Lang:      bundle,
	}
	if err := component.InitAll(deps); err != nil {
		logOut.Fatalw("init components", "err", err)
	}

	//
	// ── 4.  Router ──────────────────────────────────────────────────────
	//
	enricher, err := requestinfo.NewEnricher(cfg.HTTP.TrustProxy, cfg.GeoIP.DBPath)
	if err != nil {
		logOut.Fatalw("geoip", "err", err)
	}
	defer enricher.Close()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(enricher.Middleware)
	r.Use(chimw.Recoverer)
	if cfg.HTTP.ForceHTTPS {
		r.Use(middleware.ForceHTTPS(cfg.HTTP.TrustProxy))
	}
	r.Use(middleware.Security(cfg.HTTP.TrustProxy))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if cfg.Forms.UploadURL != "" {
		prefix := "/" + strings.Trim(cfg.Forms.UploadURL, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(uploadDir))))
	}

	for _, c := range component.All() {
		logOut.Infow("mount component", "name", c.Name())
		c.Routes(r)
	}

	//
	// ── 5.  Serve ───────────────────────────────────────────────────────
	//
	srv := server.New(cfg.HTTP, r)
	if err := server.Run(ctx, srv, cfg.HTTP.ShutdownTimeout); err != nil {
		logOut.Errorw("http server", "err", err)
	}
	logOut.Info("formforge stopped")
}

// seedForms imports every definition whose id is not already stored.
// Existing forms are never overwritten; edit them through the builder.
func seedForms(ctx context.Context, repo form.Repository, c *form.Catalog, cfg *config.Config) (int, error) {
	dirs := make([]string, 0, len(cfg.Forms.SeedDirs))
	for _, d := range cfg.Forms.SeedDirs {
		dirs = append(dirs, absPath(cfg.Paths.Root, d))
	}
	if len(dirs) == 0 {
		dirs = []string{absPath(cfg.Paths.Root, "forms")}
	}

	defs, err := form.LoadDefinitions(dirs, c)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range defs {
		if _, err := repo.LoadForm(ctx, f.ID); err == nil {
			zap.L().Info("seed form exists; skipped", zap.String("form", f.ID))
			continue
		}
		if err := repo.SaveForm(ctx, f); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func absPath(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
