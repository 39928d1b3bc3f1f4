package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/integrii/flaggy"

	"github.com/sam-bristow/exclave/internal/config"
	"github.com/sam-bristow/exclave/internal/logging"
	"github.com/sam-bristow/exclave/internal/unitbroadcaster"
	"github.com/sam-bristow/exclave/internal/unitlibrary"
	"github.com/sam-bristow/exclave/internal/unitmanager"
	"github.com/sam-bristow/exclave/internal/unitwatcher"
)

const defaultVersion = "unversioned"

var (
	version = defaultVersion

	configPath    = ""
	debuggingFlag = false
	unitDirs      []string
)

func main() {
	flaggy.SetName("exclaved")
	flaggy.SetDescription("Test harness daemon: watches unit files and supervises Interface processes")
	flaggy.DefaultParser.AdditionalHelpPrepend = "https://github.com/sam-bristow/exclave"

	flaggy.String(&configPath, "c", "config", "Path to a YAML config file")
	flaggy.Bool(&debuggingFlag, "d", "debug", "Enable debug logging")
	flaggy.StringSlice(&unitDirs, "u", "unit-dir", "Additional unit directory to watch (repeatable)")
	flaggy.SetVersion(version)

	flaggy.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err.Error())
	}
	cfg.Debug = debuggingFlag
	cfg.UnitDirectories = append(cfg.UnitDirectories, unitDirs...)

	logger := logging.NewLogger(cfg)

	broadcaster := unitbroadcaster.New()
	manager := unitmanager.New(cfg, broadcaster, logger)
	library := unitlibrary.New(broadcaster, manager, logger)

	unsubscribe := library.Subscribe()
	defer unsubscribe()

	go manager.ProcessControlLoop()
	defer manager.Close()

	// Also deferred, so Shutdown runs a second time after the explicit
	// shutdown at the end of main; interfaces already stopped there are
	// signalled again, and any error from that is only logged.
	defer manager.Shutdown()

	unsubStatus := broadcaster.Subscribe(func(evt unitbroadcaster.Event) {
		printStatus(evt)
	})
	defer unsubStatus()

	watcher, err := unitwatcher.New(broadcaster, logger)
	if err != nil {
		log.Fatal(err.Error())
	}
	defer watcher.Close()

	for _, dir := range cfg.UnitDirectories {
		if err := watcher.AddPath(dir); err != nil {
			logger.WithError(err).Warnf("watching %s", dir)
			continue
		}
		color.Green("watching %s", dir)
	}

	broadcaster.Broadcast(unitbroadcaster.RescanRequest())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	color.Yellow("shutting down")

	// §5 Cancellation: close the watcher first so no new filesystem events
	// arrive, then deactivate every live interface, ahead of the deferred
	// manager.Close(), respecting each one's terminate-timeout.
	_ = watcher.Close()
	manager.Shutdown()
}

func printStatus(evt unitbroadcaster.Event) {
	switch evt.Kind {
	case unitbroadcaster.EventRescanStart:
		color.Cyan("rescan started")
	case unitbroadcaster.EventRescanFinish:
		color.Cyan("rescan finished")
	case unitbroadcaster.EventStatus:
		se := evt.Status
		switch {
		case se.Status.IsLoadFailed():
			color.Red("%s: %s", se.Name, se.Status.Reason())
		default:
			fmt.Printf("%s: %s\n", se.Name, se.Status)
		}
	case unitbroadcaster.EventCategory:
		ce := evt.Category
		fmt.Printf("[%s] %s\n", ce.Kind, ce.Summary)
	}
}
