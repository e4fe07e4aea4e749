package main

import (
	"encoding/json"
	"io"
	"text/tabwriter"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jathurchan/davlock/client"
	"github.com/jathurchan/davlock/types"
	"github.com/jathurchan/davlock/vfs"
)

// printer renders results either as aligned text or as indented JSON.
type printer struct {
	w     io.Writer
	json  bool
	p     *message.Printer
	title cases.Caser
}

func newPrinter(w io.Writer, asJSON bool) *printer {
	return &printer{
		w:     w,
		json:  asJSON,
		p:     message.NewPrinter(language.English),
		title: cases.Title(language.English),
	}
}

func (o *printer) encode(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *printer) table() *tabwriter.Writer {
	return tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
}

func (o *printer) lock(info *types.LockInfo) error {
	if o.json {
		return o.encode(info)
	}
	tw := o.table()
	o.p.Fprintf(tw, "Token:\t%s\n", info.Token)
	o.p.Fprintf(tw, "Path:\t%s\n", info.Path)
	o.p.Fprintf(tw, "Depth:\t%s\n", depth(info.Recursive))
	o.p.Fprintf(tw, "Access:\t%s\n", o.title.String(info.Access.String()))
	o.p.Fprintf(tw, "Share:\t%s\n", o.title.String(info.Share.String()))
	if info.Owner != "" {
		o.p.Fprintf(tw, "Owner:\t%s\n", info.Owner)
	}
	o.p.Fprintf(tw, "Timeout:\t%s\n", timeoutString(info.Timeout))
	o.p.Fprintf(tw, "Expires:\t%s\n", expiresString(info))
	return tw.Flush()
}

func (o *printer) locks(page *client.LocksPage) error {
	if o.json {
		return o.encode(page)
	}
	tw := o.table()
	o.p.Fprintln(tw, "TOKEN\tPATH\tDEPTH\tSHARE\tOWNER\tEXPIRES")
	for _, info := range page.Locks {
		o.p.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			info.Token, info.Path, depth(info.Recursive), info.Share, info.Owner, expiresString(info))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	o.p.Fprintf(o.w, "%d of %d locks\n", len(page.Locks), page.Total)
	return nil
}

func (o *printer) node(info vfs.NodeInfo) error {
	if o.json {
		return o.encode(info)
	}
	tw := o.table()
	o.p.Fprintf(tw, "Path:\t%s\n", info.Path)
	o.p.Fprintf(tw, "Kind:\t%s\n", o.title.String(info.Kind.String()))
	if !info.IsCollection() {
		o.p.Fprintf(tw, "Size:\t%d bytes\n", info.Size)
		o.p.Fprintf(tw, "Content-Type:\t%s\n", info.ContentType)
		o.p.Fprintf(tw, "ETag:\t%s\n", info.ETag)
	}
	o.p.Fprintf(tw, "Modified:\t%s\n", info.ModTime.Format(time.RFC3339))
	o.p.Fprintf(tw, "Filesystem:\t%s%s\n", info.Filesystem, flags(info))
	return tw.Flush()
}

func (o *printer) nodes(children []vfs.NodeInfo) error {
	if o.json {
		if children == nil {
			children = []vfs.NodeInfo{}
		}
		return o.encode(children)
	}
	tw := o.table()
	o.p.Fprintln(tw, "NAME\tKIND\tSIZE\tMODIFIED\tFILESYSTEM")
	for _, info := range children {
		name := info.Name
		if info.IsCollection() {
			name += "/"
		}
		o.p.Fprintf(tw, "%s\t%s\t%d\t%s\t%s%s\n",
			name, info.Kind, info.Size, info.ModTime.Format(time.RFC3339), info.Filesystem, flags(info))
	}
	return tw.Flush()
}

// done reports a mutation without a result body.
func (o *printer) done(action, subject string) {
	if o.json {
		_ = o.encode(map[string]string{"status": action, "subject": subject})
		return
	}
	o.p.Fprintf(o.w, "%s %s\n", action, subject)
}

func depth(recursive bool) string {
	if recursive {
		return "infinity"
	}
	return "0"
}

func timeoutString(d time.Duration) string {
	if d == types.InfiniteTimeout {
		return "infinite"
	}
	return d.String()
}

func expiresString(info *types.LockInfo) string {
	if info.IsInfinite() {
		return "never"
	}
	return info.ExpiresAt.Format(time.RFC3339)
}

func flags(info vfs.NodeInfo) string {
	switch {
	case info.MountPoint && info.ReadOnly:
		return " (mount, read-only)"
	case info.MountPoint:
		return " (mount)"
	case info.ReadOnly:
		return " (read-only)"
	}
	return ""
}
