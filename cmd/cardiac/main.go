// Command cardiac 远程心电监测客户端。
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/log"
	"github.com/kochabx/cardiac/store"
)

const usage = `Usage: cardiac [flags] <command> [args]

Commands:
  login <deviceId>                     exchange credentials for a session token
  logout                               forget the stored token
  status                               verify the stored session and print it
  watch                                live chart, session timer and status server
  save on|off                          toggle server-side persistence (admin)
  download current|previous|<id>...    fetch session readings as PNG
  snapshot <file.png>                  capture one window of samples to a PNG

Flags:
`

type flags struct {
	config   string
	password string
	logLevel string
	storage  string
	status   bool
	addr     string
	duration time.Duration
}

func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "cardiac:", message(err))
			os.Exit(exitCode(err))
		}
	}
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var f flags
	fs := pflag.NewFlagSet("cardiac", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVarP(&f.config, "config", "c", "", "config file (default ./cardiac.yaml or $HOME/.cardiac/cardiac.yaml)")
	fs.StringVarP(&f.password, "password", "p", "", "device password for login (or CARDIAC_PASSWORD)")
	fs.StringVar(&f.logLevel, "log-level", "", "override log.level")
	fs.StringVar(&f.storage, "storage", "", "override storage.backend (file, memory, redis, etcd, db, mongo)")
	fs.BoolVar(&f.status, "status", false, "serve the status API while watching")
	fs.StringVar(&f.addr, "addr", "", "override status.addr")
	fs.DurationVar(&f.duration, "duration", 10*time.Second, "maximum capture time for snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return pflag.ErrHelp
	}
	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fs.Usage()
		return errors.New(400, "unknown command %q", name)
	}

	cfg, conf, err := loadConfig(f.config)
	if err != nil {
		return err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.storage != "" {
		cfg.Storage.Backend = store.Backend(f.storage)
	}
	if f.status {
		cfg.Status.Enabled = true
	}
	if f.addr != "" {
		cfg.Status.Addr = f.addr
	}

	logger, err := log.NewFromConfig(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Close()
	log.SetGlobalLogger(logger)

	d, err := newDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn().Err(err).Msg("release resources")
		}
	}()

	return cmd(ctx, &env{deps: d, flags: &f, conf: conf, out: stdout}, rest)
}

func message(err error) string {
	e := errors.FromError(err)
	if e == nil || e.Message == "" {
		return err.Error()
	}
	if cause := e.GetCause(); cause != nil && cause.Error() != e.Message {
		return e.Message + ": " + cause.Error()
	}
	return e.Message
}

// exitCode 用法错误为 2，需要重新登录为 3，其余为 1
func exitCode(err error) int {
	switch {
	case errors.Code(err) == 400:
		return 2
	case errors.Is(err, errors.ErrRedirectLogin):
		return 3
	default:
		return 1
	}
}
