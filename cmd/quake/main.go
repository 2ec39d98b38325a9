package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-quake/internal/api"
	"github.com/joeblew999/plat-quake/internal/config"
	"github.com/joeblew999/plat-quake/internal/db"
	"github.com/joeblew999/plat-quake/internal/feed"
	"github.com/joeblew999/plat-quake/internal/observability"
	"github.com/joeblew999/plat-quake/internal/server"
	"github.com/joeblew999/plat-quake/internal/service"
	"github.com/joeblew999/plat-quake/internal/templates"
)

// Options defines all CLI flags and env vars for the quake server.
// Flags: --host, --port, --config, --log-level, --log-format
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_CONFIG, SERVICE_LOG_LEVEL, SERVICE_LOG_FORMAT
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8086"`
	Config    string `doc:"Path to the YAML map profile" short:"c"`
	LogLevel  string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat string `doc:"Log format: json or text" default:"json"`
}

// app is everything a command needs, built from Options.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	composer *service.Composer
	catalog  *db.Catalog
	server   *server.Server
}

func newApp(ctx context.Context, opts *Options, withCatalog bool) (*app, error) {
	logger := observability.NewLogger(opts.LogLevel, opts.LogFormat)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	client := feed.NewClient(cfg.EarthquakesURL, cfg.PlatesURL, cfg.FetchTimeout, metrics, logger)

	a := &app{cfg: cfg, logger: logger, registry: reg}

	composerOpts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(metrics),
	}
	if withCatalog {
		catalog, err := db.Open(ctx, logger)
		if err != nil {
			logger.Warn("catalog unavailable, SQL endpoints disabled", "error", err)
		} else {
			a.catalog = catalog
			composerOpts = append(composerOpts, service.WithSnapshot(catalog.ReplaceEarthquakes))
		}
	}
	a.composer = service.NewComposer(client, client, cfg.Profile(), composerOpts...)

	renderer, err := templates.New()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	a.server = server.New(server.Config{
		Host:           opts.Host,
		Port:           fmt.Sprintf("%d", opts.Port),
		EarthquakesURL: cfg.EarthquakesURL,
		PlatesURL:      cfg.PlatesURL,
	}, server.Deps{
		Composer: a.composer,
		Catalog:  a.catalog,
		Renderer: renderer,
		Gatherer: reg,
		Logger:   logger,
	})
	return a, nil
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		ctx, cancel := context.WithCancel(context.Background())
		var httpServer *http.Server

		hooks.OnStart(func() {
			a, err := newApp(ctx, opts, true)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer a.server.Close()

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-quake API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Feeds:   %s\n", a.cfg.EarthquakesURL)
			fmt.Printf("           %s\n", a.cfg.PlatesURL)
			fmt.Println()
			fmt.Printf("  Pages:   %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			go func() {
				if err := a.composer.Run(ctx); err != nil {
					a.logger.Warn("initial composition failed", "error", err)
				}
			}()
			if a.cfg.RefreshInterval > 0 {
				go a.composer.Watch(ctx, a.cfg.RefreshInterval)
			}

			httpServer = &http.Server{
				Addr:              addr,
				Handler:           a.server,
				ReadHeaderTimeout: 10 * time.Second,
			}
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("server error", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			cancel()
			if httpServer == nil {
				return
			}
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = httpServer.Shutdown(shutdownCtx)
		})
	})

	cli.Root().Use = "quake"
	cli.Root().Short = "Recent earthquakes over tectonic plate boundaries"
	cli.Root().Version = api.Version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			a, err := newApp(context.Background(), opts, false)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			printOutput(cmd, a.server.OpenAPI())
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// view subcommand: compose once against the live feeds and print the result
	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "Compose the map once and print the view (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, opts, false)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if err := a.composer.Run(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			<-a.composer.Done()

			v, _ := a.composer.View()
			printOutput(cmd, v)
		}),
	}
	viewCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(viewCmd)

	cli.Run()
}

func printOutput(cmd *cobra.Command, v any) {
	useYAML, _ := cmd.Flags().GetBool("yaml")

	var output []byte
	var err error
	if useYAML {
		output, err = yaml.Marshal(v)
	} else {
		output, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(output))
}
