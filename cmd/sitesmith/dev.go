package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forgeline/sitesmith/pkg/logger"
	"github.com/forgeline/sitesmith/pkg/tools"
)

var devCmd = &cobra.Command{
	Use:   "dev [project]",
	Short: "Watch a project and rebuild on source changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDev(args[0])
	},
}

// sourceExts are the file types that trigger a rebuild.
var sourceExts = map[string]bool{
	".ts":   true,
	".tsx":  true,
	".css":  true,
	".html": true,
	".json": true,
}

func runDev(project string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging.Level, true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	tk, err := tools.New(tools.Options{Root: cfg.Workspace.Root, Logger: log})
	if err != nil {
		return err
	}
	dir, err := tk.Workspace().Resolve(project)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err != nil {
		return errors.Errorf("project %q not found in workspace", project)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	if err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			name := info.Name()
			if path != dir && (name == "node_modules" || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	}); err != nil {
		return errors.Wrap(err, "failed to set up file watching")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("watching project", zap.String("project", project), zap.String("dir", dir))

	debounce := time.NewTimer(0)
	<-debounce.C
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !sourceExts[filepath.Ext(event.Name)] {
				continue
			}
			log.Info("change detected", zap.String("file", filepath.Base(event.Name)))
			debounce.Reset(200 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		case <-debounce.C:
			rebuild(ctx, tk, log, project)
		}
	}
}

func rebuild(ctx context.Context, tk *tools.Toolkit, log *zap.Logger, project string) {
	start := time.Now()
	_, err := tk.RunScript(ctx, project, "build", 0)
	if err != nil {
		log.Error("build failed", zap.Error(err))
		return
	}
	log.Info("build succeeded", zap.Duration("elapsed", time.Since(start)))
}
