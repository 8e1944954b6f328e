package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/camview/camview/pkg/config"
	"github.com/camview/camview/pkg/logger"
	"github.com/camview/camview/pkg/thread"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	code := 0
	thread.Run(func() { code = run() })
	os.Exit(code)
}

func run() int {
	var path string
	pre := flag.NewFlagSet("conf", flag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.Usage = func() {}
	pre.StringVar(&path, "conf", "", "Directory of config.yaml")
	_ = pre.Parse(os.Args[1:])

	conf, err := config.NewConfig(path)
	if err != nil {
		logger.Default().Error().Err(err).Msg("config")
		return 1
	}
	// reloads are compared with the file values, flags stay in effect
	file := conf
	flag.StringVar(&path, "conf", path, "Directory of config.yaml")
	conf.WithFlags(flag.CommandLine)
	flag.Parse()

	log := logger.NewConsole(conf.Debug, "v", conf.Window.NoColor)
	if conf.LogJSON {
		log = logger.New(os.Stdout, conf.Debug)
	}
	log.Info().Msgf("version %s", Version)
	log.Debug().Msgf("config: %+v", conf)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := New(conf, file, log)
	if err != nil {
		log.Error().Err(err).Msg("init")
		return 1
	}
	defer app.Close()

	if file, ok := config.Find(path); ok {
		go func() {
			if err := config.Watch(ctx, file, log, app.Reload); err != nil {
				log.Warn().Err(err).Msg("no config reload")
			}
		}()
	}

	if err := app.Run(ctx); err != nil {
		log.Error().Err(err).Msg("viewer")
		return 1
	}
	return 0
}
