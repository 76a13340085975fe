package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vesperhq/vesper/internal/audiobook"
	"github.com/vesperhq/vesper/internal/clipboard"
	"github.com/vesperhq/vesper/internal/config"
	"github.com/vesperhq/vesper/internal/continuity"
	"github.com/vesperhq/vesper/internal/database"
	"github.com/vesperhq/vesper/internal/library"
	"github.com/vesperhq/vesper/internal/playback"
	"github.com/vesperhq/vesper/internal/player/mpv"
	"github.com/vesperhq/vesper/internal/prefs"
	"github.com/vesperhq/vesper/internal/providers"
	"github.com/vesperhq/vesper/internal/providers/extract"
	providerhttp "github.com/vesperhq/vesper/internal/providers/http"
	"github.com/vesperhq/vesper/internal/resolver"
	"github.com/vesperhq/vesper/internal/session"
	"github.com/vesperhq/vesper/internal/tui"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	noColor   bool
	debugMode bool

	// Initialized in the persistent pre-run
	cfg      *config.Config
	logger   *slog.Logger
	registry *providers.Registry
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vesper",
	Short: "A terminal front-end for movies, series, and audiobooks",
	Long: `vesper plays movies, series, and audiobooks sourced from unreliable
third-party providers: video embeds, torrent-debrid extraction backends,
and direct/HLS streams. It ranks sources per language, fails over between
them, recovers from transient playback errors, and keeps your position
when you switch provider or language mid-stream.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for config init
		if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
			return nil
		}

		if err := config.InitializeDirs(); err != nil {
			return fmt.Errorf("failed to initialize directories: %w", err)
		}

		var err error
		var v *viper.Viper
		cfg, v, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if debugMode {
			cfg.Advanced.Debug = true
			if logLevel == "" {
				cfg.Logging.Level = "debug"
			}
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if noColor {
			cfg.Logging.Color = false
		}

		logger, err = config.InitLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := database.Init(&cfg.Database); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		registry = providers.NewRegistry()
		if err := registerProviders(registry, cfg); err != nil {
			return fmt.Errorf("failed to register providers: %w", err)
		}

		// Hot reload: rebuild the provider set when the config changes
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			logger.Info("config file changed", "name", e.Name)
			if err := v.Unmarshal(cfg); err != nil {
				logger.Error("failed to reload config", "error", err)
				return
			}
			fresh := providers.NewRegistry()
			if err := registerProviders(fresh, cfg); err != nil {
				logger.Error("failed to reload providers", "error", err)
				return
			}
			registry = fresh
			logger.Info("providers reloaded", "count", registry.Count())
		})

		// Health checks run in the background; the TUI shows results as
		// they arrive
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			registry.CheckAll(ctx)
			logger.Debug("provider health checks complete")
		}()

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := database.Close(); err != nil && logger != nil {
			logger.Error("failed to close database", "error", err)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Info("vesper starting", "version", version)
		return runTUI()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/vesper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug mode (verbose logging)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(watchlistCmd)
	rootCmd.AddCommand(audiobookCmd)
}

func registerProviders(reg *providers.Registry, cfg *config.Config) error {
	extractClient := extract.NewClient(extract.ClientConfig{
		BaseURL: cfg.Extractor.BaseURL,
		Timeout: cfg.Extractor.Timeout,
		Debug:   cfg.Advanced.Debug,
		Logger:  logger,
	})
	httpClient := providerhttp.NewClient(providerhttp.ClientConfig{
		Timeout: cfg.Extractor.Timeout,
		Debug:   cfg.Advanced.Debug,
		Logger:  logger,
	})
	return providers.RegisterDefaults(reg, cfg, extractClient, httpClient, logger)
}

func libraryClient() *library.Client {
	return library.NewClient(library.ClientConfig{
		BaseURL: cfg.Library.BaseURL,
		Timeout: cfg.Library.Timeout,
		Debug:   cfg.Advanced.Debug,
	})
}

// buildEngine wires the session engine and its collaborators. The
// returned syncer still needs a Run goroutine.
func buildEngine(events session.Events) (*session.Engine, *continuity.Syncer, error) {
	handle, err := mpv.New(mpv.Options{
		Debug:          cfg.Advanced.Debug,
		LoadUserConfig: cfg.Player.LoadUserConfig,
		PollInterval:   cfg.Playback.ProgressPoll,
		AttachTimeout:  cfg.Playback.AttachTimeout,
		Logger:         logger,
	})
	if err != nil {
		return nil, nil, err
	}

	db := database.GetDB()
	client := libraryClient()

	engine := session.NewEngine(session.EngineConfig{
		Registry: registry,
		Resolver: resolver.New(cfg.Extractor.Timeout, logger),
		Handle:   handle,
		Playback: playback.Config{
			NetworkRetries:  cfg.Playback.NetworkRetries,
			NetworkBackoff:  cfg.Playback.NetworkBackoff,
			AutoplayOnReady: cfg.Playback.AutoplayOnReady,
		},
		Metadata:  client,
		Prefs:     prefs.NewStore(prefs.NewDBRepository(db), cfg.Session.DefaultLanguage),
		Volume:    cfg.Player.Volume,
		ExtraArgs: cfg.Player.ExtraArgs,
		OpenURL:   browser.OpenURL,
		Events:    events,
		Logger:    logger,
	})

	syncer := continuity.NewSyncer(
		continuity.NewLocalStore(db),
		continuity.NewRemoteStore(client),
		cfg.Continuity.SyncInterval,
		logger,
	)
	return engine, syncer, nil
}

func runTUI() error {
	relay := tui.NewEventRelay()
	engine, syncer, err := buildEngine(relay.SessionEvents())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go syncer.Run(ctx)

	sleep := audiobook.NewSleepTimer(func() {
		pauseCtx, pauseCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pauseCancel()
		if err := engine.Controller().Pause(pauseCtx); err != nil {
			logger.Warn("sleep timer pause failed", "error", err)
		}
	})

	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := engine.Stop(stopCtx); err != nil {
			logger.Warn("failed to stop session on exit", "error", err)
		}
	}()

	return tui.Run(tui.Dependencies{
		Library:         libraryClient(),
		Engine:          engine,
		Registry:        registry,
		Syncer:          syncer,
		Clipboard:       clipboard.NewService(logger, cfg.Advanced.ClipboardCommand),
		Sleep:           sleep,
		Bookmarks:       audiobook.NewBookmarks(database.GetDB()),
		Relay:           relay,
		Logger:          logger,
		StartFullscreen: cfg.Player.Fullscreen,
		IdleHideAfter:   cfg.Session.IdleHideAfter,
	})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vesper version %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a commented default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			configPath = config.DefaultConfigPath()
		}

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s", configPath)
		}

		if err := config.SaveDefaultConfig(configPath); err != nil {
			return err
		}
		fmt.Printf("Default configuration written to %s\n", configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Log level: %s\n", cfg.Logging.Level)
		fmt.Printf("Database: %s\n", cfg.Database.Path)
		fmt.Printf("Library API: %s\n", cfg.Library.BaseURL)
		fmt.Printf("Extractor API: %s\n", cfg.Extractor.BaseURL)
		fmt.Printf("Default language: %s\n", cfg.Session.DefaultLanguage)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Display the configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			fmt.Println(cfgFile)
		} else {
			fmt.Println(config.DefaultConfigPath())
		}
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

// playCmd starts playback without the TUI, printing state transitions
// until the stream ends
var playCmd = &cobra.Command{
	Use:   "play <item-id>",
	Short: "Play an item directly by its library id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID := args[0]
		seasonNum, _ := cmd.Flags().GetInt("season")
		episodeNum, _ := cmd.Flags().GetInt("episode")
		language, _ := cmd.Flags().GetString("language")
		providerID, _ := cmd.Flags().GetString("provider")
		fullscreen, _ := cmd.Flags().GetBool("fullscreen")
		if !cmd.Flags().Changed("fullscreen") {
			fullscreen = cfg.Player.Fullscreen
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		item, err := libraryClient().GetItem(ctx, itemID)
		if err != nil {
			return fmt.Errorf("failed to look up item: %w", err)
		}

		done := make(chan error, 1)
		engine, syncer, err := buildEngine(session.Events{
			OnStreamChange: func(s session.Snapshot) {
				fmt.Printf("Playing %s via %s (%s)\n", s.Title, s.ProviderID, s.StreamKind)
			},
			OnStateChange: func(from, to playback.State) {
				logger.Debug("playback state", "from", from.String(), "to", to.String())
				if to == playback.StateEnded {
					select {
					case done <- nil:
					default:
					}
				}
			},
			OnFailure: func(f session.Failure) {
				select {
				case done <- f.Err:
				default:
				}
			},
		})
		if err != nil {
			return err
		}

		syncCtx, syncCancel := context.WithCancel(context.Background())
		defer syncCancel()
		go syncer.Run(syncCtx)

		resume, _ := syncer.Resume(ctx, item.ID, seasonNum, episodeNum)
		if resume > 0 {
			fmt.Printf("Resuming from %s\n", resume.Round(time.Second))
		}

		err = engine.Start(ctx, *item, session.StartOptions{
			Season:     seasonNum,
			Episode:    episodeNum,
			Language:   language,
			ProviderID: providerID,
			ResumeFrom: resume,
			Fullscreen: fullscreen,
		})
		if err != nil {
			return err
		}

		snap, _ := engine.Current()
		if snap.External {
			fmt.Println("Stream opened in browser")
			return nil
		}

		err = <-done
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if stopErr := engine.Stop(stopCtx); stopErr != nil {
			logger.Warn("failed to stop session", "error", stopErr)
		}
		return err
	},
}

func init() {
	playCmd.Flags().IntP("season", "s", 0, "season number (series only)")
	playCmd.Flags().IntP("episode", "e", 0, "episode number (series only)")
	playCmd.Flags().StringP("language", "l", "", "language code (default: last used)")
	playCmd.Flags().StringP("provider", "p", "", "pin a provider as the first candidate")
	playCmd.Flags().BoolP("fullscreen", "f", false, "start fullscreen")
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the library",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := args[0]

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		items, err := libraryClient().Search(ctx, query)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		fmt.Printf("Found %d results:\n\n", len(items))
		for i, item := range items {
			if item.Year > 0 {
				fmt.Printf("%d. %s (%d)\n", i+1, item.Title, item.Year)
			} else {
				fmt.Printf("%d. %s\n", i+1, item.Title)
			}
			fmt.Printf("   ID: %s\n", item.ID)
			fmt.Printf("   Type: %s\n", item.MediaType)
			fmt.Println()
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Watch history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recently watched items",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		records, err := continuity.NewLocalStore(database.GetDB()).Recent(ctx, limit)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No watch history yet")
			return nil
		}

		for _, r := range records {
			label := r.Title
			if r.Season > 0 || r.Episode > 0 {
				label = fmt.Sprintf("%s S%02dE%02d", r.Title, r.Season, r.Episode)
			}
			status := fmt.Sprintf("%.0f%%", r.Percent())
			if r.Completed {
				status = "completed"
			}
			fmt.Printf("%-50s %-10s %s\n", label, status, humanize.Time(r.WatchedAt))
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear <content-id>",
	Short: "Remove an item's watch history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := continuity.NewLocalStore(database.GetDB()).Delete(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Println("History cleared")
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntP("limit", "n", 20, "number of entries to show")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyClearCmd)
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Manage stream providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered providers",
	Run: func(cmd *cobra.Command, args []string) {
		statuses := registry.Statuses()
		if len(statuses) == 0 {
			fmt.Println("No providers registered")
			return
		}

		fmt.Printf("Registered providers (%d):\n\n", len(statuses))
		for _, st := range statuses {
			fmt.Printf("- %-12s %s\n", st.ProviderID, st.Status)
		}
	},
}

var providersCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run health checks on all providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		fmt.Println("Checking providers...")
		registry.CheckAll(ctx)

		for _, st := range registry.Statuses() {
			mark := "✗"
			if st.Healthy {
				mark = "✓"
			}
			fmt.Printf("%s %-12s %s\n", mark, st.ProviderID, st.Status)
		}
		return nil
	},
}

var providersRankCmd = &cobra.Command{
	Use:   "rank <language>",
	Short: "Show the provider ranking for a language",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ranked := registry.Rank(args[0])
		for i, p := range ranked {
			fmt.Printf("%d. %s\n", i+1, p.ID())
		}
	},
}

func init() {
	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersCheckCmd)
	providersCmd.AddCommand(providersRankCmd)
}

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Manage the library watchlist",
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the watchlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		items, err := libraryClient().GetWatchlist(ctx)
		if err != nil {
			return fmt.Errorf("failed to load watchlist: %w", err)
		}
		if len(items) == 0 {
			fmt.Println("Watchlist is empty")
			return nil
		}

		for i, item := range items {
			fmt.Printf("%d. %s (%s)\n", i+1, item.Title, item.ID)
		}
		return nil
	},
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add <item-id>",
	Short: "Add an item to the watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := libraryClient().AddToWatchlist(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to add to watchlist: %w", err)
		}
		fmt.Println("Added to watchlist")
		return nil
	},
}

func init() {
	watchlistCmd.AddCommand(watchlistListCmd)
	watchlistCmd.AddCommand(watchlistAddCmd)
}

var audiobookCmd = &cobra.Command{
	Use:   "audiobook",
	Short: "Audiobook tools",
}

var bookmarksCmd = &cobra.Command{
	Use:   "bookmarks <content-id>",
	Short: "List bookmarks for an audiobook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		bookmarks, err := audiobook.NewBookmarks(database.GetDB()).List(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to load bookmarks: %w", err)
		}
		if len(bookmarks) == 0 {
			fmt.Println("No bookmarks")
			return nil
		}

		for _, bm := range bookmarks {
			fmt.Printf("%4d  %-30s %s\n", bm.ID, bm.Label, bm.Position.Round(time.Second))
		}
		return nil
	},
}

var bookmarkDeleteCmd = &cobra.Command{
	Use:   "bookmark-rm <id>",
	Short: "Delete a bookmark by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid bookmark id: %s", args[0])
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := audiobook.NewBookmarks(database.GetDB()).Delete(ctx, uint(id)); err != nil {
			return fmt.Errorf("failed to delete bookmark: %w", err)
		}
		fmt.Println("Bookmark deleted")
		return nil
	},
}

func init() {
	audiobookCmd.AddCommand(bookmarksCmd)
	audiobookCmd.AddCommand(bookmarkDeleteCmd)
}
