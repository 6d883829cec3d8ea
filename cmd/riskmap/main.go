package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-risk/internal/config"
	"github.com/joeblew999/plat-risk/internal/db"
	"github.com/joeblew999/plat-risk/internal/fetch"
	"github.com/joeblew999/plat-risk/internal/observability"
	"github.com/joeblew999/plat-risk/internal/pipeline"
	"github.com/joeblew999/plat-risk/internal/server"
	"github.com/joeblew999/plat-risk/internal/service"
	"github.com/joeblew999/plat-risk/internal/source"
)

// Options defines all CLI flags and env vars for the risk map server.
// Flags: --host, --port, --config, --data-dir, --web-dir, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_CONFIG, SERVICE_DATA_DIR, ...
type Options struct {
	Host         string `doc:"Host to bind to" default:"0.0.0.0"`
	Port         int    `doc:"Port to listen on" short:"p" default:"8087"`
	Config       string `doc:"Map config file (YAML)" short:"c" default:"riskmap.yaml"`
	DataDir      string `doc:"Directory for the DuckDB feature index" default:".data"`
	WebDir       string `doc:"Path to web/ directory" default:"web"`
	FetchTimeout int    `doc:"Per-request fetch timeout in seconds" default:"15"`
	FetchRetries int    `doc:"Retries for transient fetch failures" default:"2"`
	Concurrency  int    `doc:"Concurrent geometry fetches per dataset" default:"8"`
	Refresh      string `doc:"Cron schedule for atlas refresh, e.g. @every 30m (empty disables)" default:""`
	RedisAddr    string `doc:"Redis address for a shared fetch cache (empty uses memory)" default:""`
	LogLevel     string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat    string `doc:"Log format: json or text" default:"json"`
}

// app holds everything built from the options.
type app struct {
	logger  *slog.Logger
	builder *pipeline.Builder
	atlas   *service.AtlasService
	conn    *sql.DB
	closers []func() error
}

func newApp(ctx context.Context, opts *Options, metrics *observability.Metrics, withDB bool) *app {
	logger := observability.NewLogger(opts.LogLevel, opts.LogFormat)
	a := &app{logger: logger}

	var cache fetch.Cache = fetch.NewMemoryCache(512)
	if opts.RedisAddr != "" {
		client, err := fetch.OpenRedis(ctx, opts.RedisAddr, os.Getenv("REDIS_PASSWORD"), 0)
		if err != nil {
			logger.Warn("redis unavailable, using memory cache", "addr", opts.RedisAddr, "error", err)
		} else {
			cache = fetch.NewRedisCache(client, "plat-risk:fetch:", time.Hour, logger)
			a.closers = append(a.closers, client.Close)
		}
	}

	fcfg := fetch.DefaultConfig()
	fcfg.Timeout = time.Duration(opts.FetchTimeout) * time.Second
	fcfg.Retries = opts.FetchRetries
	client := fetch.NewClient(fcfg, cache, logger, metrics)

	a.builder = pipeline.NewBuilder(source.NewCSVLoader(client), client,
		pipeline.Options{Concurrency: opts.Concurrency}, logger, metrics)

	if withDB {
		conn, err := db.Get(db.Config{DataDir: opts.DataDir, DBName: "risk"})
		if err != nil {
			logger.Warn("duckdb unavailable, feature index disabled", "error", err)
		} else {
			a.conn = conn
			a.closers = append(a.closers, db.Close)
		}
	}

	path := opts.Config
	a.atlas = service.NewAtlasService(a.builder, func() (*config.Config, error) {
		return config.Load(path)
	}, a.conn, nil, logger)
	return a
}

func (a *app) close() {
	a.atlas.Stop()
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}

// runBuild builds the atlas once, writes the summary to stdout and returns
// the exit code: 1 when the build fails, 2 when any dataset failed. The app
// is closed before returning so os.Exit never skips it.
func runBuild(ctx context.Context, a *app, cfg *config.Config, stdout, stderr io.Writer) int {
	defer a.close()

	atlas, err := a.builder.Build(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error building atlas: %v\n", err)
		return 1
	}
	out, _ := json.MarshalIndent(summarize(atlas), "", "  ")
	fmt.Fprintln(stdout, string(out))
	if len(atlas.Failures) > 0 {
		return 2
	}
	return 0
}

func newServer(opts *Options, a *app) *server.Server {
	return server.New(server.Config{
		Host:    opts.Host,
		Port:    fmt.Sprintf("%d", opts.Port),
		DataDir: opts.DataDir,
		WebDir:  opts.WebDir,
		Atlas:   a.atlas,
		DB:      a.conn,
		Logger:  a.logger,
	})
}

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		ctx, cancel := context.WithCancel(context.Background())
		a := newApp(ctx, opts, observability.NewMetrics(), true)
		srv := newServer(opts, a)
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
			Handler:           srv,
			ReadHeaderTimeout: 10 * time.Second,
		}

		hooks.OnStart(func() {
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-risk server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Config:  %s\n", opts.Config)
			fmt.Println()
			fmt.Printf("  Pages:   %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			// The first build runs in the background; until it finishes the
			// API answers 503 and the sidebar shows a loading state.
			go func() {
				if _, err := a.atlas.Reload(ctx); err != nil {
					a.logger.Error("initial atlas build failed", "config", opts.Config, "error", err)
				}
			}()
			if err := a.atlas.StartRefresh(ctx, opts.Refresh); err != nil {
				a.logger.Error("refresh not scheduled", "error", err)
			}

			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("server error", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			cancel()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("shutdown", "error", err)
			}
			a.close()
		})
	})

	cli.Root().Use = "riskmap"
	cli.Root().Short = "Risk atlas server: choropleth and point layers with a layer switcher"
	cli.Root().Version = "0.1.0"

	// build subcommand: run the pipeline once and print a summary
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build the atlas once and print a JSON summary",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cfg, err := config.Load(opts.Config)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}
			a := newApp(cmd.Context(), opts, observability.NewMetricsForTesting(), false)
			if code := runBuild(cmd.Context(), a, cfg, os.Stdout, os.Stderr); code != 0 {
				os.Exit(code)
			}
		}),
	}
	cli.Root().AddCommand(buildCmd)

	// validate subcommand: check the map config without fetching anything
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the map config file",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cfg, err := config.Load(opts.Config)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s: %d datasets, %d point datasets, default base %q\n",
				opts.Config, len(cfg.Datasets), len(cfg.Points), cfg.InitialBase())
		}),
	}
	cli.Root().AddCommand(validateCmd)

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			a := newApp(cmd.Context(), opts, observability.NewMetricsForTesting(), false)
			defer a.close()
			spec := newServer(opts, a).OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	cli.Run()
}

type datasetSummary struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Records  int      `json:"records"`
	Features int      `json:"features"`
	Layers   []string `json:"layers"`
	Error    string   `json:"error,omitempty"`
}

type atlasSummary struct {
	ID       string                    `json:"id"`
	Duration string                    `json:"duration"`
	Bases    []string                  `json:"bases"`
	Overlays []string                  `json:"overlays"`
	Datasets []datasetSummary          `json:"datasets"`
	Failures []pipeline.DatasetFailure `json:"failures,omitempty"`
}

func summarize(a *pipeline.Atlas) atlasSummary {
	s := atlasSummary{ID: a.ID.String(), Duration: a.Duration.String(), Failures: a.Failures}
	for _, l := range a.Bases {
		s.Bases = append(s.Bases, l.Key)
	}
	for _, l := range a.Overlays {
		s.Overlays = append(s.Overlays, l.Key)
	}
	for _, d := range a.Datasets {
		n := 0
		if d.Features != nil {
			n = len(d.Features.Features)
		}
		s.Datasets = append(s.Datasets, datasetSummary{
			Name: d.Name, Kind: d.Kind, Records: d.Records, Features: n, Layers: d.Layers, Error: d.Error,
		})
	}
	return s
}
