package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/primer/internal"
	"github.com/starford/primer/internal/apperr"
	"github.com/starford/primer/internal/cache"
	"github.com/starford/primer/internal/fetch"
	"github.com/starford/primer/internal/index"
	"github.com/starford/primer/internal/manifest"
	"github.com/starford/primer/internal/meta"
	"github.com/starford/primer/internal/storage"
	pkgconfig "github.com/starford/primer/pkg/config"
)

// runtime bundles the pieces a one-shot command needs. Logs go to stderr
// so stdout stays clean for primer content.
type runtime struct {
	store    storage.Provider
	registry *manifest.Service
	primers  *cache.Cache
	logger   *slog.Logger
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()

	configPath := cmd.String("config")
	if _, err := os.Stat(configPath); err == nil {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if cmd.IsSet("config") {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	if remote := cmd.String("remote"); remote != "" {
		cfg.Remote.BaseURL = remote
	}
	if dir := cmd.String("dir"); dir != "" {
		cfg.Mirror.Dir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRuntime(cfg *internal.Config) (*runtime, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Mirror.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create mirror dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Mirror.Dir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	metas := meta.NewStore(filepath.Join(cfg.Mirror.Dir, meta.FileName))
	client := fetch.New(cfg.Remote.Timeout(), cfg.Remote.Token)
	registry := manifest.NewService(store, client, metas, cfg.Remote.BaseURL, logger)
	primers := cache.New(store, registry, client, metas, cfg.Mirror.Concurrency, logger)

	return &runtime{
		store:    store,
		registry: registry,
		primers:  primers,
		logger:   logger,
	}, nil
}

func requireRemote(cfg *internal.Config) error {
	if cfg.Remote.BaseURL == "" {
		return fmt.Errorf("no remote configured: set remote.base_url in %s or pass --remote", internal.DefaultConfigPath())
	}
	return nil
}

func isInstalled(primers *cache.Cache, name string) bool {
	for _, b := range primers.Installed() {
		if b == name {
			return true
		}
	}
	return false
}

// resolveTopic runs the lookup flow shared by show and path: resolve
// locally, install the leading bundle on a miss and retry, refresh an
// already-installed bundle in the background on a hit, and fall back to
// "did you mean" suggestions when nothing matches.
func resolveTopic(ctx context.Context, cfg *internal.Config, rt *runtime, topic string, resolve func([]string) error) error {
	segments := strings.Split(topic, ".")

	err := resolve(segments)
	if err == nil {
		if isInstalled(rt.primers, segments[0]) {
			rt.primers.RefreshInBackground(segments[0])
		}
		return nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	if remoteErr := requireRemote(cfg); remoteErr != nil {
		return remoteErr
	}
	if ensureErr := rt.primers.Ensure(ctx, segments[0]); ensureErr == nil {
		if err := resolve(segments); err == nil {
			return nil
		}
	}

	msg := fmt.Sprintf("not found: %s", topic)
	if suggestions := rt.primers.SuggestSimilar(ctx, segments); len(suggestions) > 0 {
		msg += "\ndid you mean:\n  " + strings.Join(suggestions, "\n  ")
	}
	return cli.Exit(msg, 1)
}

func cmdList(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireRemote(cfg); err != nil {
		return err
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}

	m, err := rt.registry.Get(ctx)
	if err != nil {
		return err
	}
	installed := map[string]bool{}
	for _, name := range rt.primers.Installed() {
		installed[name] = true
	}
	for _, name := range m.Names() {
		marker := " "
		if installed[name] {
			marker = "*"
		}
		fmt.Printf("%s %-24s %s\n", marker, name, m.Bundles[name].Description)
	}
	return nil
}

func cmdShow(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: primer show <topic>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}

	var data []byte
	err = resolveTopic(ctx, cfg, rt, cmd.Args().First(), func(segments []string) error {
		var rerr error
		data, rerr = rt.primers.Resolve(segments)
		return rerr
	})
	if err != nil {
		return err
	}
	_, _ = os.Stdout.Write(data)
	return nil
}

func cmdPath(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: primer path <topic>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}

	var location string
	err = resolveTopic(ctx, cfg, rt, cmd.Args().First(), func(segments []string) error {
		var rerr error
		location, rerr = rt.primers.ResolvePath(segments)
		return rerr
	})
	if err != nil {
		return err
	}
	fmt.Println(location)
	return nil
}

func cmdInstall(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("usage: primer install <primer>...")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireRemote(cfg); err != nil {
		return err
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}

	for _, name := range cmd.Args().Slice() {
		if err := rt.primers.Ensure(ctx, name); err != nil {
			return fmt.Errorf("install %s: %w", name, err)
		}
		fmt.Printf("installed %s\n", name)
	}
	return nil
}

func cmdRefresh(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireRemote(cfg); err != nil {
		return err
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}

	if name := cmd.String("bundle"); name != "" {
		changed, err := rt.primers.Refresh(ctx, name)
		if err != nil {
			return err
		}
		if changed {
			fmt.Printf("%s updated\n", name)
		} else {
			fmt.Printf("%s unchanged\n", name)
		}
		return nil
	}

	changed, err := rt.primers.RefreshAll(ctx)
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		fmt.Println("all primers up to date")
		return nil
	}
	for _, name := range changed {
		fmt.Printf("%s updated\n", name)
	}
	return nil
}

func cmdSearch(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("usage: primer search <query>")
	}
	query := strings.Join(cmd.Args().Slice(), " ")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Index.Path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	db, err := index.Open(cfg.Index.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()
	if err := index.Sync(db, rt.store, rt.logger); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}

	results, err := db.Search(query, cmd.String("primer"), int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, res := range results {
		fmt.Printf("%s\t%s\t%s\n", res.Path, res.Title, res.Snippet)
	}
	return nil
}

func cmdServe(ctx context.Context, cmd *cli.Command) error {
	return runDaemon(ctx, cmd, internal.ModeServe)
}

func cmdMCP(ctx context.Context, cmd *cli.Command) error {
	return runDaemon(ctx, cmd, internal.ModeMCP)
}

func runDaemon(ctx context.Context, cmd *cli.Command, mode internal.Mode) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithMode(mode)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "primer",
		Usage: "Lazily mirrored reference bundles: fetch, browse, and serve primers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "~/.config/primer/config.yaml",
				Value:       internal.DefaultConfigPath(),
				Sources:     cli.EnvVars("PRIMER_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "remote",
				Usage:   "Registry base URL override",
				Sources: cli.EnvVars("PRIMER_REMOTE"),
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Mirror directory override",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List registry primers; * marks installed ones",
				Action: cmdList,
			},
			{
				Name:      "show",
				Usage:     "Print a primer topic, installing its bundle on first use",
				ArgsUsage: "<topic>",
				Action:    cmdShow,
			},
			{
				Name:      "path",
				Usage:     "Print the local file location of a primer topic",
				ArgsUsage: "<topic>",
				Action:    cmdPath,
			},
			{
				Name:      "install",
				Usage:     "Install one or more primers",
				ArgsUsage: "<primer>...",
				Action:    cmdInstall,
			},
			{
				Name:  "refresh",
				Usage: "Re-check installed primers against the registry",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "bundle",
						Usage: "Refresh a single primer instead of all installed ones",
					},
				},
				Action: cmdRefresh,
			},
			{
				Name:      "search",
				Usage:     "Full-text search over installed primer content",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "primer",
						Usage: "Restrict the search to one primer",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 20,
					},
				},
				Action: cmdSearch,
			},
			{
				Name:   "serve",
				Usage:  "Serve the mirror as a registry origin over HTTP",
				Action: cmdServe,
			},
			{
				Name:   "mcp",
				Usage:  "Expose the mirror to LLM agents over MCP stdio",
				Action: cmdMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
