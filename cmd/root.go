package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version information - set via ldflags during build
	// Example: go build -ldflags "-X github.com/airframesio/archive-columnar/cmd.Version=1.2.3"
	Version = "dev" // Default to "dev" if not set during build

	cfgFile      string
	debug        bool
	logFormat    string
	inputs       []string
	output       string
	useStdout    bool
	filter       string
	noBody       bool
	noSource     bool
	noHash       bool
	rowGroupSize int
	workers      int
	compression  string
	s3Endpoint   string
	s3AccessKey  string
	s3SecretKey  string
	s3Region     string

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true).
			Underline(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D9FF"))

	logger *slog.Logger
)

// textOnlyHandler is a custom slog handler that outputs human-readable text
// without key=value pairs, suitable for interactive terminal usage
type textOnlyHandler struct {
	opts   slog.HandlerOptions
	writer io.Writer
}

func newTextOnlyHandler(w io.Writer, opts *slog.HandlerOptions) *textOnlyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &textOnlyHandler{
		opts:   *opts,
		writer: w,
	}
}

func (h *textOnlyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *textOnlyHandler) Handle(_ context.Context, r slog.Record) error {
	// Format: YYYY-MM-DD HH:MM:SS LEVEL message
	timestamp := r.Time.Format("2006-01-02 15:04:05")
	level := r.Level.String()

	_, err := fmt.Fprintf(h.writer, "%s %s %s\n", timestamp, level, r.Message)
	return err
}

func (h *textOnlyHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	// For simplicity, attributes are ignored in text-only mode
	return h
}

func (h *textOnlyHandler) WithGroup(_ string) slog.Handler {
	return h
}

// initLogger initializes the slog logger based on debug flag and log format.
// Logs go to stderr when the parquet stream is on stdout.
func initLogger(isDebug bool, format string, toStderr bool) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if isDebug {
		opts.Level = slog.LevelDebug
	}

	out := io.Writer(os.Stdout)
	if toStderr {
		out = os.Stderr
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "logfmt":
		// logfmt uses slog.TextHandler which outputs key=value pairs
		handler = slog.NewTextHandler(out, opts)
	default: // "text" or anything else
		handler = newTextOnlyHandler(out, opts)
	}

	logger = slog.New(handler)
}

var rootCmd = &cobra.Command{
	Use:     "archive-columnar",
	Version: Version,
	Short:   "📦 Convert archive files (zip/tar) to columnar parquet output",
	Long: titleStyle.Render("Archive Columnar") + `

A CLI tool to convert collections of archive files into a single parquet
artifact, one row per archive entry. Archives are read in parallel and
streamed through a bounded queue, so inputs and outputs may exceed memory.
Supports zip, tar, tar.gz and tar.lz4 containers, per-entry SHA-256 hashes,
and file, stdout or S3 output destinations.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// Show help when no subcommand is specified
		cmd.Help()
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert archives to a parquet artifact",
	Long: `Convert archives to a parquet artifact with four columns: name,
source, body, hash. Entries stream through a worker pool into row groups;
interrupting the run deletes the partial output file.`,
	Run: func(_ *cobra.Command, _ []string) {
		runConvert()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(convertCmd)

	// Persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.archive-columnar.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, logfmt, json)")

	// Convert-specific flags
	convertCmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "input archive path or glob pattern (repeatable)")
	convertCmd.Flags().StringVarP(&output, "output", "o", "", "output path (local file or s3://bucket/key)")
	convertCmd.Flags().BoolVar(&useStdout, "stdout", false, "write the parquet stream to standard output")
	convertCmd.Flags().StringVarP(&filter, "filter", "g", "", "glob pattern matched against entry names (default: all entries)")
	convertCmd.Flags().BoolVar(&noBody, "no-body", false, "omit entry bodies from the output (significantly reduces size and time)")
	convertCmd.Flags().BoolVar(&noSource, "no-source", false, "omit the source archive path column")
	convertCmd.Flags().BoolVar(&noHash, "no-hash", false, "omit the SHA-256 content hash column")
	convertCmd.Flags().IntVar(&rowGroupSize, "row-group-size", 10000, "rows per parquet row group (also the queue capacity)")
	convertCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "number of parallel archive readers")
	convertCmd.Flags().StringVar(&compression, "compression", "snappy", "parquet compression codec: snappy, zstd, gzip, lz4, none")

	convertCmd.Flags().StringVar(&s3Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL (for s3:// output)")
	convertCmd.Flags().StringVar(&s3AccessKey, "s3-access-key", "", "S3 access key (for s3:// output)")
	convertCmd.Flags().StringVar(&s3SecretKey, "s3-secret-key", "", "S3 secret key (for s3:// output)")
	convertCmd.Flags().StringVar(&s3Region, "s3-region", "auto", "S3 region")

	// Note: We don't use MarkFlagRequired because it checks before viper loads the config file.
	// Instead, validation happens in config.Validate() which runs after all config sources are loaded.

	// Bind persistent flags
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Bind convert flags
	_ = viper.BindPFlag("input", convertCmd.Flags().Lookup("input"))
	_ = viper.BindPFlag("output", convertCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("stdout", convertCmd.Flags().Lookup("stdout"))
	_ = viper.BindPFlag("filter", convertCmd.Flags().Lookup("filter"))
	_ = viper.BindPFlag("no_body", convertCmd.Flags().Lookup("no-body"))
	_ = viper.BindPFlag("no_source", convertCmd.Flags().Lookup("no-source"))
	_ = viper.BindPFlag("no_hash", convertCmd.Flags().Lookup("no-hash"))
	_ = viper.BindPFlag("row_group_size", convertCmd.Flags().Lookup("row-group-size"))
	_ = viper.BindPFlag("workers", convertCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("compression", convertCmd.Flags().Lookup("compression"))
	_ = viper.BindPFlag("s3.endpoint", convertCmd.Flags().Lookup("s3-endpoint"))
	_ = viper.BindPFlag("s3.access_key", convertCmd.Flags().Lookup("s3-access-key"))
	_ = viper.BindPFlag("s3.secret_key", convertCmd.Flags().Lookup("s3-secret-key"))
	_ = viper.BindPFlag("s3.region", convertCmd.Flags().Lookup("s3-region"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".archive-columnar")
	}

	viper.SetEnvPrefix("ARCHIVE_COLUMNAR")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && debug {
		if logger == nil {
			initLogger(debug, logFormat, false)
		}
		logger.Debug(fmt.Sprintf("📄 Using config file: %s", viper.ConfigFileUsed()))
	}
}

//nolint:gocognit // top-level orchestration function
func runConvert() {
	// Add panic recovery to catch any unexpected crashes
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n❌ PANIC: %v\n", r)
			os.Exit(1)
		}
	}()

	config := &Config{
		Debug:        viper.GetBool("debug"),
		LogFormat:    viper.GetString("log_format"),
		Inputs:       viper.GetStringSlice("input"),
		Output:       viper.GetString("output"),
		Stdout:       viper.GetBool("stdout"),
		Filter:       viper.GetString("filter"),
		NoBody:       viper.GetBool("no_body"),
		NoSource:     viper.GetBool("no_source"),
		NoHash:       viper.GetBool("no_hash"),
		RowGroupSize: viper.GetInt("row_group_size"),
		Workers:      viper.GetInt("workers"),
		Compression:  viper.GetString("compression"),
		S3: S3Config{
			Endpoint:  viper.GetString("s3.endpoint"),
			AccessKey: viper.GetString("s3.access_key"),
			SecretKey: viper.GetString("s3.secret_key"),
			Region:    viper.GetString("s3.region"),
		},
	}

	// The parquet-on-stdout mode owns stdout; logs move to stderr
	useTUI := !config.Debug && !config.Stdout
	initLogger(config.Debug, config.LogFormat, config.Stdout)

	// Log startup banner
	logger.Info("")
	logger.Info(fmt.Sprintf("🚀 Archive Columnar v%s", Version))
	logger.Info("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	logger.Debug("Validating configuration...")
	if err := config.Validate(); err != nil {
		logger.Error(fmt.Sprintf("❌ Configuration error: %s", err.Error()))
		os.Exit(1)
	}
	logger.Debug("Configuration validated successfully")

	// Signal-aware context: SIGINT/SIGTERM trigger the cooperative abort
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Stop-file fallback (for terminals that swallow CTRL-C)
	_ = RemoveStopFile()
	if err := WritePIDFile(); err != nil {
		logger.Debug(fmt.Sprintf("Failed to write PID file: %v", err))
	}
	defer func() {
		_ = RemovePIDFile()
	}()
	go watchStopFile(ctx, cancel)

	if config.Debug {
		fmt.Fprintln(os.Stderr, "\n"+infoStyle.Render("💡 To stop the converter: Press CTRL-C, or run:"))
		fmt.Fprintf(os.Stderr, "   "+infoStyle.Render("touch %s")+"\n\n", GetStopFilePath())
	}

	// Force-exit if graceful shutdown takes too long
	exited := make(chan struct{})
	go func() {
		<-ctx.Done()
		select {
		case <-exited:
			return
		case <-time.After(5 * time.Second):
			logger.Error("⚠️  Graceful shutdown timed out, forcing exit...")
			os.Exit(130)
		}
	}()

	logger.Debug("Creating converter...")
	converter := NewConverter(config, logger)

	var err error
	if useTUI {
		err = runWithTUI(ctx, cancel, converter)
	} else {
		converter.SetReporter(&logReporter{logger: logger})
		err = converter.Run(ctx)
	}
	close(exited)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("")
			logger.Info("⚠️  Conversion cancelled by user — partial output deleted")
			os.Exit(130)
		}
		logger.Error(fmt.Sprintf("❌ Conversion failed: %s", err.Error()))
		os.Exit(1)
	}

	logger.Info("")
	logger.Info("✅ Conversion completed successfully!")
}

// runWithTUI drives the converter under the Bubble Tea progress display.
// The converter runs in a goroutine and reports through the program; the
// TUI's cancel key feeds the same context the signal handler does.
func runWithTUI(ctx context.Context, cancel context.CancelFunc, converter *Converter) error {
	model := newProgressModel(cancel)
	// Our signal context handles CTRL-C; Bubble Tea's own handler would
	// race with it
	program := tea.NewProgram(model, tea.WithoutSignalHandler())

	reporter := &tuiReporter{program: program}
	converter.SetReporter(reporter)

	errChan := make(chan error, 1)
	go func() {
		err := converter.Run(ctx)
		errChan <- err
		program.Send(convertDoneMsg{err: err, records: int(reporter.records.Load())})
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-errChan
		return fmt.Errorf("error running progress display: %w", err)
	}

	return <-errChan
}

// watchStopFile polls for the stop file and cancels the run when it shows
// up.
func watchStopFile(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if StopFileExists() {
				logger.Info("🛑 Stop file detected, shutting down...")
				_ = RemoveStopFile()
				cancel()
				return
			}
		}
	}
}
