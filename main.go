/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/dawn/engine"
	"github.com/spaghettifunk/dawn/engine/core"
	"github.com/spaghettifunk/dawn/testbed"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "application config (TOML)")
	assetsDir := pflag.String("assets", "", "directory of containers, overrides the config")
	pflag.Parse()

	cfg := engine.DefaultApplicationConfig()
	if *configPath != "" {
		var err error
		if cfg, err = engine.LoadApplicationConfig(*configPath); err != nil {
			core.LogFatal("%s", err)
		}
	}
	if *assetsDir != "" {
		cfg.AssetsDir = *assetsDir
	}

	startup := make([]core.AssetID, 0, pflag.NArg())
	for _, arg := range pflag.Args() {
		startup = append(startup, core.AssetID(arg))
	}
	tb := testbed.NewTestGame(cfg, startup...)

	engine, err := engine.New(tb.Game)
	if err != nil {
		panic(err)
	}

	if err := engine.Initialize(); err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// start shutdown goroutine
	go func() {
		// capture sigterm and other system call here
		<-sigCh
		_ = engine.Shutdown()
	}()

	// run engine
	if err := engine.Run(); err != nil {
		panic(err)
	}
}
