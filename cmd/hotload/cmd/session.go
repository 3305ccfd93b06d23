package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dbsmedya/hotload/internal/config"
	"github.com/dbsmedya/hotload/internal/heap"
	"github.com/dbsmedya/hotload/internal/hotload"
	"github.com/dbsmedya/hotload/internal/logger"
	"github.com/dbsmedya/hotload/internal/manifest"
	"github.com/dbsmedya/hotload/internal/meta"
	"github.com/dbsmedya/hotload/internal/registry"
)

// session is one configured reload with its manifests loaded.
type session struct {
	name   string
	cfg    *config.Config
	conf   *config.SessionConfig
	before *meta.Image
	after  *meta.Image
	live   *manifest.LiveHeap
}

// loadConfig loads the configuration file and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat, overrides.Workers, overrides.NoColor)
	return cfg, nil
}

// loadSession loads the manifests of the named session. Relative manifest
// paths are resolved against the directory of the configuration file.
func loadSession(cfg *config.Config, name string) (*session, error) {
	conf, err := cfg.GetSession(name)
	if err != nil {
		return nil, err
	}

	before, err := manifest.LoadImage(manifestPath(conf.Before))
	if err != nil {
		return nil, fmt.Errorf("failed to load before image: %w", err)
	}
	after, err := manifest.LoadImage(manifestPath(conf.After))
	if err != nil {
		return nil, fmt.Errorf("failed to load after image: %w", err)
	}

	live := &manifest.LiveHeap{Statics: heap.NewStatics(), Objects: map[string]*heap.Object{}}
	if conf.Heap != "" {
		if live, err = manifest.LoadHeap(manifestPath(conf.Heap), before); err != nil {
			return nil, fmt.Errorf("failed to load heap: %w", err)
		}
	}

	return &session{name: name, cfg: cfg, conf: conf, before: before, after: after, live: live}, nil
}

func manifestPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(GetConfigFile()), p)
}

// engine creates a hotload engine with the registries of the session.
func (s *session) engine(log *logger.Logger) (*hotload.Hotload, error) {
	h, err := hotload.New(s.cfg.GetSessionHotload(s.name), s.before, s.after, s.live.Statics)
	if err != nil {
		return nil, err
	}
	if log != nil {
		log = log.WithSession(s.name)
	}
	h.SetLogger(log)

	for _, r := range s.conf.Replace {
		if err := h.ReplacingAssembly(r.Old, r.New); err != nil {
			return nil, err
		}
	}
	for _, w := range s.conf.Watch {
		if err := h.WatchAssembly(w.Assembly, namespaceFilter(w.Namespaces)); err != nil {
			return nil, err
		}
	}
	for _, asm := range s.conf.Upgraders {
		if _, err := h.AddUpgraders(asm); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// namespaceFilter selects types declared in one of the namespaces or below.
// Nested types use the namespace of their outermost declaring type.
func namespaceFilter(namespaces []string) registry.TypeFilter {
	if len(namespaces) == 0 {
		return nil
	}
	return func(t *meta.Type) bool {
		outer := t
		for outer.DeclaringType != nil {
			outer = outer.DeclaringType
		}
		for _, ns := range namespaces {
			if outer.Namespace == ns || strings.HasPrefix(outer.Namespace, ns+".") {
				return true
			}
		}
		return false
	}
}
