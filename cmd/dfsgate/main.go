package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/marmos91/dfsgate/internal/logger"
	"github.com/marmos91/dfsgate/pkg/config"
	"github.com/marmos91/dfsgate/pkg/filesystem"
	"github.com/marmos91/dfsgate/pkg/store/dfs"
	"github.com/marmos91/dfsgate/pkg/stream"
)

// session is everything a command needs: the service and the handle of the
// configured filesystem.
type session struct {
	svc    *filesystem.Service
	handle filesystem.Handle
	cfg    *config.Config
}

type command struct {
	usage string
	run   func(ctx context.Context, s *session, args []string) error
}

var commands = map[string]command{
	"mkfs":     {"mkfs", runMkfs},
	"rmfs":     {"rmfs", runRmfs},
	"ls":       {"ls [path]", runLs},
	"stat":     {"stat <path>", runStat},
	"mkdir":    {"mkdir <path>", runMkdir},
	"rm":       {"rm [-r] <path>", runRm},
	"mv":       {"mv <source> <destination>", runMv},
	"put":      {"put [-overwrite] <local|-> <path>", runPut},
	"cat":      {"cat <path>", runCat},
	"getprops": {"getprops [path]", runGetProps},
	"setprops": {"setprops [-path path] key=value...", runSetProps},
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: dfsgate [--config path] <command> [args]\n\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  init [-force]\n")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
	fmt.Fprintf(os.Stderr, "\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/dfsgate/config.yaml)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	name, args := flag.Arg(0), flag.Args()[1:]

	if name == "init" {
		if err := runInit(*configPath, args); err != nil {
			fmt.Fprintf(os.Stderr, "dfsgate: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "dfsgate: unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, *configPath, cmd, args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dfsgate: %v\n", err)
		os.Exit(1)
	}
}

func runInit(configPath string, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	force := fs.Bool("force", false, "Overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := configPath
	if path == "" {
		written, err := config.InitConfig(*force)
		if err != nil {
			return err
		}
		path = written
	} else if err := config.InitConfigToPath(path, *force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

func run(ctx context.Context, configPath string, cmd command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return err
	}

	// Metrics must be initialized before the client factory picks up the
	// REST metrics.
	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := metricsResult.Server.Start(metricsCtx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
		defer func() {
			cancelMetrics()
			<-done
		}()
	}

	clients, err := config.CreateClientFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := clients.Close(); err != nil {
			logger.Error("Failed to close store: %v", err)
		}
	}()

	streams := stream.NewFactory(config.StreamConfig(cfg))
	defer func() {
		if err := streams.Close(); err != nil {
			logger.Error("Stream factory shutdown error: %v", err)
		}
	}()

	svc, err := filesystem.New(config.ServiceConfig(cfg), clients, streams,
		filesystem.WithMetrics(metricsResult.FilesystemMetrics))
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Shutdown(); err != nil {
			logger.Error("Service shutdown error: %v", err)
		}
	}()

	account := cfg.Account.Name
	if raw, ok := dfs.ExtractRawAccount(account); ok {
		account = raw
	}

	s := &session{
		svc:    svc,
		handle: filesystem.NewHandle(account, cfg.Account.FileSystem),
		cfg:    cfg,
	}

	start := time.Now()
	err = cmd.run(ctx, s, args)
	logger.Debug("%s completed in %v", cmd.usage, time.Since(start))
	return err
}
