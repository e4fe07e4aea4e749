package davhttp

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/webdav"

	"github.com/jathurchan/davlock/davfs"
	"github.com/jathurchan/davlock/lock"
	"github.com/jathurchan/davlock/logger"
	"github.com/jathurchan/davlock/types"
)

// HandlerOption configures NewHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	prefix string
	logger logger.Logger
}

// WithPrefix strips prefix from request paths before they reach the filesystem.
func WithPrefix(prefix string) HandlerOption {
	return func(c *handlerConfig) {
		c.prefix = prefix
	}
}

// WithLogger sets the request logger. Nil is ignored.
func WithLogger(l logger.Logger) HandlerOption {
	return func(c *handlerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewHandler serves svc over WebDAV. Lock tokens are confirmed by the
// handler's LockSystem, so filesystem calls run with davfs.WithLocksConfirmed.
//
// Without an If header the webdav handler only takes a zero-depth temporary
// lock on the target, which does not see locks held on descendants. DELETE
// and MOVE sources, and MOVE or COPY destinations that may be overwritten,
// are therefore checked against the whole subtree first and answered with
// 423 Locked on conflict. Temporary locks are ephemeral: they conflict like
// any other lock but are never persisted, listed or announced.
func NewHandler(svc *davfs.Service, opts ...HandlerOption) http.Handler {
	cfg := handlerConfig{logger: logger.NewNoOpLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.logger.WithComponent("davhttp")

	ls := NewLockSystem(svc.Locks())
	dav := &webdav.Handler{
		Prefix:     cfg.prefix,
		FileSystem: NewFileSystem(svc),
		LockSystem: ls,
		Logger: func(r *http.Request, err error) {
			if err != nil {
				log.WithPath(r.URL.Path).Debugw("request failed", "method", r.Method, "error", err)
				return
			}
			log.WithPath(r.URL.Path).Debugw("request served", "method", r.Method)
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := checkSubtree(r, cfg.prefix, svc.Locks()); err != nil {
			log.WithPath(r.URL.Path).Debugw("request rejected by locks", "method", r.Method, "error", err)
			http.Error(w, "Locked", webdav.StatusLocked)
			return
		}
		h := *dav
		h.LockSystem = ls.bind(r)
		h.ServeHTTP(w, r.WithContext(davfs.WithLocksConfirmed(r.Context())))
	})
}

func checkSubtree(r *http.Request, prefix string, locks lock.LockManager) error {
	if r.Header.Get("If") != "" {
		return nil
	}

	var paths []string
	switch r.Method {
	case "DELETE":
		paths = append(paths, r.URL.Path)
	case "MOVE", "COPY":
		// The webdav handler overwrites on COPY unless told not to, but on
		// MOVE only when asked.
		overwrite := r.Header.Get("Overwrite") != "F"
		if r.Method == "MOVE" {
			paths = append(paths, r.URL.Path)
			overwrite = r.Header.Get("Overwrite") == "T"
		}
		if overwrite {
			if u, err := url.Parse(r.Header.Get("Destination")); err == nil && u.Path != "" {
				paths = append(paths, u.Path)
			}
		}
	default:
		return nil
	}

	for _, p := range paths {
		rel, ok := strings.CutPrefix(p, prefix)
		if !ok {
			continue
		}
		err := locks.Confirm(r.Context(), lock.ConfirmRequest{Path: types.CleanPath(rel), Recursive: true})
		if errors.Is(err, lock.ErrConflict) {
			return err
		}
	}
	return nil
}
