package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nitrodl/nitro-downloader/api"
	"github.com/nitrodl/nitro-downloader/api/handlers"
	"github.com/nitrodl/nitro-downloader/internal/app"
	"github.com/nitrodl/nitro-downloader/internal/domain"
	"github.com/nitrodl/nitro-downloader/internal/infrastructure"
	"github.com/nitrodl/nitro-downloader/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	configPath = flag.String("config", os.Getenv("NITRO_CONFIG"), "Path to config file (default $NITRO_CONFIG)")
	detach     = flag.Bool("detach", false, "Start the server in the background and exit")
)

func main() {
	flag.Parse()
	handlers.Version = version

	if *detach {
		startAsDaemon()
		return
	}

	if err := runServer(); err != nil {
		fmt.Fprintf(os.Stderr, "nitro-server: %v\n", err)
		os.Exit(1)
	}
}

// startAsDaemon re-executes the binary in the foreground, detached from
// the terminal
func startAsDaemon() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	args := []string{}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}

	cmd := exec.Command(execPath, args...)
	cmd.Env = os.Environ()
	detachProcess(cmd)

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", os.DevNull, err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
}

func runServer() error {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := createDirectories(config); err != nil {
		return err
	}

	general, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// provisioning, queue and error events each get their own file
	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer multiLog.Close()

	logAdapter := logger.NewLoggerAdapter(general, multiLog)
	defer logAdapter.Sync()
	log := logAdapter.General()

	log.Info("Starting Nitro server",
		zap.String("version", version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("base_dir", config.Download.BaseDir))

	repo, err := infrastructure.NewSQLiteRepository(config.Queue.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()

	runner := infrastructure.NewExecRunner(config.Tools.Shell, log)
	notifier := infrastructure.NewNotificationService(&config.Notification, runner, log)
	brew := infrastructure.NewHomebrew(config.Tools.ProbePaths, config.Tools.BootstrapCommand)
	provisioner := app.NewProvisioner(domain.DefaultCatalog(), brew, runner, notifier, logAdapter.Provisioning())

	ytdlp := resolveYtDlp(config, brew)
	log.Info("Using yt-dlp", zap.String("path", ytdlp))

	fetcher := infrastructure.NewYtDlpFetcher(ytdlp, config.Media.CookieFile, runner, log)
	downloader := infrastructure.NewYtDlpDownloader(
		ytdlp,
		config.Media.CookieFile,
		config.Download.BaseDir,
		config.Download.LogsDir,
		runner,
		multiLog,
	)

	media := app.NewMediaService(fetcher, repo, repo, &config.Media, log)
	downloadMgr := app.NewDownloadManager(repo, downloader, notifier, &config.Download, logAdapter.Queue())
	queueMgr := app.NewQueueManager(repo, downloadMgr, &config.Queue, notifier, multiLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.Tools.AutoCheckOnStart {
		provisioner.BeginCheck(ctx)
	}

	if n, err := media.PurgeCache(); err != nil {
		logAdapter.LogError(logger.CategoryError, "Failed to purge metadata cache", zap.Error(err))
	} else if n > 0 {
		log.Info("Purged expired metadata", zap.Int64("entries", n))
	}

	if config.Download.AutoStartWorkers {
		if err := queueMgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start queue manager: %w", err)
		}
	}

	router := api.SetupRouter(api.Dependencies{
		Provisioner: provisioner,
		Media:       media,
		QueueMgr:    queueMgr,
		DownloadMgr: downloadMgr,
		Preferences: repo,
		LogAdapter:  logAdapter,
		LogsDir:     config.Download.LogsDir,
		RunCtx:      ctx,
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal OR auto-exit from queue manager
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Received shutdown signal")
	case <-queueMgr.WaitForExit():
		log.Info("Queue manager triggered auto-exit (queue stayed empty)")
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("Shutting down server...")

	// running downloads and tool checks see the cancellation; downloads are
	// requeued for the next start
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if queueMgr.IsRunning() {
		if err := queueMgr.Stop(); err != nil {
			log.Error("Error stopping queue manager", zap.Error(err))
		}
	}

	if err := provisioner.Wait(shutdownCtx); err != nil {
		log.Warn("Tool check did not finish", zap.Error(err))
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}

// resolveYtDlp picks the yt-dlp executable. The path may not exist yet; the
// fetcher and downloader check it on every call, so a later install is
// picked up without a restart.
func resolveYtDlp(config *domain.Config, brew *infrastructure.Homebrew) string {
	if config.Tools.YtDlpPath != "" {
		return config.Tools.YtDlpPath
	}

	spec, _ := domain.FindTool(domain.DefaultCatalog(), domain.ToolYtDlp)
	if brewPath, ok := brew.Locate(); ok {
		return brew.ToolPath(brewPath, spec)
	}
	if path, err := exec.LookPath(spec.Executable()); err == nil {
		return path
	}

	probes := config.Tools.ProbePaths
	if len(probes) == 0 {
		probes = domain.DefaultProbePaths
	}
	return brew.ToolPath(probes[0], spec)
}

func createDirectories(config *domain.Config) error {
	dirs := []string{
		config.Download.BaseDir,
		config.Download.LogsDir,
		filepath.Dir(config.Queue.DatabasePath),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
