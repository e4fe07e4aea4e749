// Command davlockd serves a mountable virtual filesystem with WebDAV
// locking over gRPC and WebDAV, with Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jathurchan/davlock/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"grpc-address":    "grpc.address",
	"webdav-address":  "webdav.address",
	"metrics-address": "metrics.address",
	"store-path":      "store.path",
	"log-level":       "log_level",
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "davlockd",
		Short: "WebDAV lock manager over a mountable virtual filesystem",
		Long: `davlockd serves a tree of in-memory filesystems, mounted into one
namespace, with WebDAV locking. Locks and filesystem operations are exposed
over gRPC and WebDAV; metrics are exported for Prometheus.

Configuration is read from a YAML file, DAVLOCK_* environment variables
(e.g. DAVLOCK_GRPC_ADDRESS for grpc.address) and flags, in increasing order
of precedence.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := newViper(cfgFile)
			if err != nil {
				return err
			}
			if err := bindFlags(cmd, v); err != nil {
				return err
			}
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDaemon(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfgFile, "config", "c", "", "path to a YAML config file")
	flags.String("grpc-address", "", "gRPC listen address")
	flags.String("webdav-address", "", "WebDAV listen address (empty disables)")
	flags.String("metrics-address", "", "Prometheus listen address (empty disables)")
	flags.String("store-path", "", "SQLite database for lock persistence")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	return cmd
}

// bindFlags binds the flags that were set on the command line, so unset
// flags do not mask the file or environment.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("davlockd: bind flag %s: %w", flag, err)
		}
	}
	return nil
}

func runDaemon(ctx context.Context, cfg Config) error {
	log := logger.NewStdLogger(cfg.LogLevel)

	d, err := newDaemon(ctx, cfg, log)
	if err != nil {
		log.Errorw("failed to initialize", "error", err)
		return err
	}
	if err := d.run(ctx); err != nil {
		log.Errorw("daemon stopped with error", "error", err)
		return err
	}
	log.Infow("daemon stopped")
	return nil
}
