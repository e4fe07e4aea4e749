package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jathurchan/davlock/client"
	"github.com/jathurchan/davlock/types"
)

func (c *cli) lockCmd() *cobra.Command {
	var (
		recursive bool
		owner     string
		access    string
		share     string
		timeout   string
	)
	cmd := &cobra.Command{
		Use:   "lock <path>",
		Short: "Take a lock on a resource",
		Long: `Take a lock on path and print it. The path may name an unmapped
resource whose parent collection exists; the name is then reserved until
the lock is released.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := client.LockOptions{Recursive: recursive, Owner: owner}
			var err error
			if opts.Access, err = types.ParseAccessType(access); err != nil {
				return err
			}
			if opts.Share, err = types.ParseShareMode(share); err != nil {
				return err
			}
			if opts.Timeout, err = parseTimeout(timeout); err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, dc client.Client, out *printer) error {
				info, err := dc.Lock(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return out.lock(info)
			})
		},
	}
	f := cmd.Flags()
	f.BoolVarP(&recursive, "recursive", "r", false, "lock every descendant too (Depth: infinity)")
	f.StringVar(&owner, "owner", "", "opaque owner stored with the lock")
	f.StringVar(&access, "access", "write", "access type: write or read")
	f.StringVar(&share, "share", "exclusive", "share mode: exclusive or shared")
	f.StringVar(&timeout, "timeout", "", `lease duration, e.g. 10m, or "infinite" (default: server default)`)
	return cmd
}

func (c *cli) refreshCmd() *cobra.Command {
	var timeout string
	cmd := &cobra.Command{
		Use:   "refresh <token>",
		Short: "Renew a lock's lease",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseTimeout(timeout)
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, dc client.Client, out *printer) error {
				info, err := dc.Refresh(ctx, types.StateToken(args[0]), d)
				if err != nil {
					return err
				}
				return out.lock(info)
			})
		},
	}
	cmd.Flags().StringVar(&timeout, "timeout", "", `new lease duration, or "infinite" (default: server default)`)
	return cmd
}

func (c *cli) unlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <token>...",
		Short: "Release one or more locks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, dc client.Client, out *printer) error {
				for _, token := range args {
					if err := dc.Unlock(ctx, types.StateToken(token)); err != nil {
						return fmt.Errorf("unlock %s: %w", token, err)
					}
					out.done("released", token)
				}
				return nil
			})
		},
	}
}

func (c *cli) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <token>",
		Short: "Show a lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, dc client.Client, out *printer) error {
				info, err := dc.LockInfo(ctx, types.StateToken(args[0]))
				if err != nil {
					return err
				}
				return out.lock(info)
			})
		},
	}
}

func (c *cli) locksCmd() *cobra.Command {
	var q client.LocksQuery
	cmd := &cobra.Command{
		Use:   "locks",
		Short: "List active locks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, dc client.Client, out *printer) error {
				page, err := dc.Locks(ctx, q)
				if err != nil {
					return err
				}
				return out.locks(page)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.PathPrefix, "prefix", "", "only locks at or below this path")
	f.StringVar(&q.Owner, "owner", "", "only locks with this owner")
	f.DurationVar(&q.ExpiringWithin, "expiring", 0, "only finite locks expiring within this duration")
	f.IntVar(&q.Limit, "limit", 0, "page size (default: server default)")
	f.IntVar(&q.Offset, "offset", 0, "number of locks to skip")
	return cmd
}

func (c *cli) statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, dc client.Client, out *printer) error {
				info, err := dc.Stat(ctx, args[0])
				if err != nil {
					return err
				}
				return out.node(info)
			})
		},
	}
}

func (c *cli) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List a collection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 1 {
				path = args[0]
			}
			return c.run(cmd, func(ctx context.Context, dc client.Client, out *printer) error {
				children, err := dc.List(ctx, path)
				if err != nil {
					return err
				}
				return out.nodes(children)
			})
		},
	}
}

func (c *cli) mkcolCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkcol <path>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, dc client.Client, out *printer) error {
				info, err := dc.CreateCollection(ctx, args[0], c.tokens()...)
				if err != nil {
					return err
				}
				return out.node(info)
			})
		},
	}
}

func (c *cli) putCmd() *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "put <path> [file]",
		Short: "Create a document",
		Long:  `Create a document at path with the contents of file, or of stdin when file is omitted or "-".`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src string
			if len(args) == 2 {
				src = args[1]
			}
			content, err := readContent(src, cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read content: %w", err)
			}
			return c.run(cmd, func(ctx context.Context, dc client.Client, out *printer) error {
				info, err := dc.CreateDocument(ctx, args[0], content, contentType, c.tokens()...)
				if err != nil {
					return err
				}
				return out.node(info)
			})
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type of the document")
	return cmd
}

func (c *cli) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a resource and its subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, dc client.Client, out *printer) error {
				if err := dc.Delete(ctx, args[0], c.tokens()...); err != nil {
					return err
				}
				out.done("deleted", args[0])
				return nil
			})
		},
	}
}
