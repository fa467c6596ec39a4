package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	daemon "github.com/sevlyar/go-daemon"
	"github.com/spf13/viper"

	"github.com/matjam/vidpaper/internal/compositor"
	"github.com/matjam/vidpaper/internal/compositor/hyprvis"
	"github.com/matjam/vidpaper/internal/compositor/layershell"
	"github.com/matjam/vidpaper/internal/config"
	"github.com/matjam/vidpaper/internal/decode"
	"github.com/matjam/vidpaper/internal/engine"
	"github.com/matjam/vidpaper/internal/ipc"
)

// StartDaemon runs the engine, forking into the background first when
// asked to.
func StartDaemon(background bool) {
	if background && os.Getenv("BACKGROUND_PROCESS") != "1" {
		daemonize()
		return
	}
	runDaemon()
}

func daemonize() {
	runDir := os.Getenv("XDG_RUNTIME_DIR")
	if runDir == "" {
		runDir = os.TempDir()
	}

	cntxt := &daemon.Context{
		PidFileName: filepath.Join(runDir, "vidpaper.pid"),
		PidFilePerm: 0644,
		Env:         append(os.Environ(), "BACKGROUND_PROCESS=1"),
	}

	child, err := cntxt.Reborn()
	if err != nil {
		log.Fatalf("Failed to fork into background: %v", err)
	}
	if child != nil {
		log.Infof("vidpaper started in background, PID %d", child.Pid)
		return
	}
	defer func() { _ = cntxt.Release() }()

	runDaemon()
}

func runDaemon() {
	log.Infof("vidpaper starting in PID %d", os.Getpid())

	if os.Getenv("BACKGROUND_PROCESS") == "1" {
		setupRotatingLogger()
	}

	if status, err := ipc.SendStatus(); err == nil {
		log.Infof("vidpaper is already running (PID %d), exiting", status.PID)
		os.Exit(0)
	}

	snap, err := config.Load(viper.GetViper())
	if err != nil {
		log.Fatalf("%v", err)
	}

	client, err := layershell.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to compositor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	vis := hyprvis.Watch(ctx, time.Duration(snap.PollSeconds)*time.Second)
	eng := engine.New(compositor.Merge(client, vis), snap, decode.Backends())

	go func() {
		log.Infof("Starting socket server")
		ipc.Start(eng)
	}()

	viper.OnConfigChange(func(fsnotify.Event) {
		next, err := config.Load(viper.GetViper())
		if err != nil {
			log.Errorf("Ignoring config reload: %v", err)
			return
		}
		eng.Reload(next)
	})
	viper.WatchConfig()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Infof("Received %v, shutting down", s)
		cancel()
	}()

	if err := eng.Run(ctx); err != nil {
		log.Errorf("Engine error: %v", err)
	}

	os.Remove(ipc.SocketPath())
	log.Infof("vidpaper exited")
}

func setupRotatingLogger() {
	home := os.Getenv("HOME")
	logDir := filepath.Join(home, ".local", "share", "vidpaper")
	logPath := filepath.Join(logDir, "vidpaper.log")

	writer, err := rotatelogs.New(
		logPath+".%Y%m%d%H%M",
		rotatelogs.WithLinkName(logPath),
		rotatelogs.WithMaxAge(7*24*time.Hour),
		rotatelogs.WithRotationSize(10*1024*1024),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		log.Fatalf("failed to configure log rotation: %v", err)
	}

	log.SetOutput(writer)
	log.SetLevel(log.InfoLevel)
}
