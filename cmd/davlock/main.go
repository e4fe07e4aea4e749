// Command davlock is a command-line client for a davlockd server. It takes
// and releases WebDAV locks and browses or edits the mounted tree over gRPC.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jathurchan/davlock/client"
	"github.com/jathurchan/davlock/server"
	"github.com/jathurchan/davlock/types"
)

const (
	envPrefix      = "DAVLOCK"
	defaultTimeout = 5 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli holds the settings shared by every subcommand.
type cli struct {
	v *viper.Viper

	// newClient is replaced in tests.
	newClient func(endpoint string, timeout time.Duration) (client.Client, error)
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New(), newClient: dial}
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "davlock",
		Short: "Command-line client for davlockd",
		Long: `davlock talks to a davlockd server over gRPC. It takes, refreshes and
releases WebDAV locks and reads or modifies the mounted filesystem tree.

Mutations on locked resources need the lock tokens, passed with --token.
The endpoint may also be set with DAVLOCK_ENDPOINT.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringP("endpoint", "e", server.DefaultListenAddress, "davlockd gRPC address")
	pf.Duration("request-timeout", defaultTimeout, "per-request timeout")
	pf.StringSliceP("token", "t", nil, "lock token to present (repeatable)")
	pf.Bool("json", false, "print results as JSON")
	for _, name := range []string{"endpoint", "request-timeout", "token", "json"} {
		_ = c.v.BindPFlag(name, pf.Lookup(name))
	}

	root.AddCommand(
		c.lockCmd(),
		c.refreshCmd(),
		c.unlockCmd(),
		c.infoCmd(),
		c.locksCmd(),
		c.statCmd(),
		c.lsCmd(),
		c.mkcolCmd(),
		c.putCmd(),
		c.rmCmd(),
	)
	return root
}

func dial(endpoint string, timeout time.Duration) (client.Client, error) {
	return client.NewDavLockClientBuilder(endpoint).
		WithTimeout(timeout).
		Build()
}

// run connects to the server and calls fn with a client that is closed
// afterwards.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, dc client.Client, out *printer) error) error {
	dc, err := c.newClient(c.v.GetString("endpoint"), c.v.GetDuration("request-timeout"))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer dc.Close()

	return fn(cmd.Context(), dc, newPrinter(cmd.OutOrStdout(), c.v.GetBool("json")))
}

func (c *cli) tokens() []types.StateToken {
	raw := c.v.GetStringSlice("token")
	out := make([]types.StateToken, 0, len(raw))
	for _, t := range raw {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, types.StateToken(t))
		}
	}
	return out
}

// parseTimeout accepts a Go duration or "infinite". An empty string means
// the server default.
func parseTimeout(s string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0, nil
	case "infinite", "infinity":
		return types.InfiniteTimeout, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid timeout %q: must be positive", s)
	}
	return d, nil
}

// readContent reads a document body from the named file, or from in when
// name is empty or "-".
func readContent(name string, in io.Reader) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(in)
	}
	return os.ReadFile(name)
}
