package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/talkincode/toughmeeting/config"
	"github.com/talkincode/toughmeeting/internal/adminapi"
	"github.com/talkincode/toughmeeting/internal/app"
	"github.com/talkincode/toughmeeting/internal/webserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var (
	version   = "develop"
	h         = flag.Bool("h", false, "help usage")
	showVer   = flag.Bool("v", false, "show version")
	conffile  = flag.String("c", "", "config yaml file")
	envfile   = flag.String("env", ".env", "dotenv file loaded before the config")
	initdb    = flag.Bool("initdb", false, "drop all tables and seed the default settings")
	printConf = flag.Bool("printcfg", false, "print the effective config and exit")
)

func main() {
	flag.Parse()

	if *h {
		flag.Usage()
		return
	}
	if *showVer {
		fmt.Println(version)
		return
	}

	if err := godotenv.Load(*envfile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envfile, err)
	}

	cfg, err := config.LoadConfig(*conffile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *printConf {
		out, _ := yaml.Marshal(cfg)
		fmt.Println(string(out))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.NewApplication(cfg)
	if err := application.Init(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	defer application.Release()

	if *initdb {
		if err := application.InitDb(ctx); err != nil {
			zap.S().Errorf("initdb: %v", err)
			return
		}
		zap.S().Info("database initialized")
		return
	}

	srv := webserver.Init(application)
	adminapi.Init()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx, cfg.Web.Host, cfg.Web.Port)
	})
	g.Go(func() error {
		return application.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		zap.S().Errorf("toughmeeting stopped: %v", err)
		return
	}
	zap.S().Info("toughmeeting stopped")
}
