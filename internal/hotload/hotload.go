// Package hotload is the entry point of the engine. A Hotload holds the
// process-wide registries (replacements, watched roots, upgraders and
// new-side singletons) and runs passes that migrate the live heap from the
// "before" image to the "after" image.
package hotload

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dbsmedya/hotload/internal/config"
	"github.com/dbsmedya/hotload/internal/heap"
	"github.com/dbsmedya/hotload/internal/logger"
	"github.com/dbsmedya/hotload/internal/meta"
	"github.com/dbsmedya/hotload/internal/metrics"
	"github.com/dbsmedya/hotload/internal/registry"
	"github.com/dbsmedya/hotload/internal/report"
	"github.com/dbsmedya/hotload/internal/typemap"
	"github.com/dbsmedya/hotload/internal/upgrade"
	"github.com/dbsmedya/hotload/internal/walker"
)

// ErrPassInProgress is returned when a pass or a registry change is
// requested while another pass is running.
var ErrPassInProgress = errors.New("hotload pass already in progress")

// Hotload configures and runs hotload passes.
type Hotload struct {
	cfg     config.HotloadConfig
	before  meta.Facade
	after   meta.Facade
	statics *heap.Statics

	replacements *registry.Replacements
	watches      *registry.Watches
	upgraders    *upgrade.Registry

	mu         sync.Mutex
	singletons map[string]*heap.Object

	running atomic.Bool
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// New creates an engine over the two program images and the static field
// store holding the live roots.
func New(cfg config.HotloadConfig, before, after meta.Facade, statics *heap.Statics) (*Hotload, error) {
	if before == nil {
		return nil, fmt.Errorf("before image is nil")
	}
	if after == nil {
		return nil, fmt.Errorf("after image is nil")
	}
	if statics == nil {
		return nil, fmt.Errorf("static field store is nil")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	return &Hotload{
		cfg:          cfg,
		before:       before,
		after:        after,
		statics:      statics,
		replacements: registry.NewReplacements(),
		watches:      registry.NewWatches(),
		upgraders:    upgrade.NewRegistry(),
		singletons:   make(map[string]*heap.Object),
		logger:       logger.NewNop(),
	}, nil
}

// SetLogger sets the logger used for pass logging.
func (h *Hotload) SetLogger(l *logger.Logger) {
	if l != nil {
		h.logger = l
	}
}

// SetMetrics enables Prometheus instrumentation.
func (h *Hotload) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
}

// Upgraders returns the upgrader registry.
func (h *Hotload) Upgraders() *upgrade.Registry {
	return h.upgraders
}

// Replacements returns the registered assembly replacements.
func (h *Hotload) Replacements() []registry.Replacement {
	return h.replacements.All()
}

// Watches returns the registered watched roots.
func (h *Hotload) Watches() []registry.WatchedRoot {
	return h.watches.All()
}

// idle rejects registry changes while a pass runs.
func (h *Hotload) idle() error {
	if h.running.Load() {
		return ErrPassInProgress
	}
	return nil
}

// WatchAssembly makes the static fields of the named assembly roots of the
// next passes. A nil filter selects every type.
func (h *Hotload) WatchAssembly(name string, filter registry.TypeFilter) error {
	if err := h.idle(); err != nil {
		return err
	}
	return h.watches.Add(registry.WatchedRoot{Assembly: name, Filter: filter})
}

// ReplacingAssembly pairs an assembly of the before image with its
// replacement in the after image.
func (h *Hotload) ReplacingAssembly(oldName, newName string) error {
	if err := h.idle(); err != nil {
		return err
	}
	oldAsm, err := registry.Resolve(h.before, oldName)
	if err != nil {
		return fmt.Errorf("replaced assembly: %w", err)
	}
	newAsm, err := registry.Resolve(h.after, newName)
	if err != nil {
		return fmt.Errorf("replacement assembly: %w", err)
	}
	if err := h.replacements.Add(oldAsm, newAsm); err != nil {
		return err
	}

	h.logger.Debugw("Replacement registered", "old", oldAsm.Name, "new", newAsm.Name)
	return nil
}

// Register adds an upgrader.
func (h *Hotload) Register(u upgrade.Upgrader) error {
	if err := h.idle(); err != nil {
		return err
	}
	return h.upgraders.Register(u)
}

// AddUpgrader registers a zero-valued upgrader of type T.
func AddUpgrader[T any, PT interface {
	*T
	upgrade.Upgrader
}](h *Hotload) (PT, error) {
	if err := h.idle(); err != nil {
		return nil, err
	}
	return upgrade.AddUpgrader[T, PT](h.upgraders), nil
}

// AddUpgraders registers a pattern upgrader for every type of the named
// assembly tagged with the upgrader attribute. The assembly is looked up in
// the after image first, then in the before image.
func (h *Hotload) AddUpgraders(assemblyName string) (int, error) {
	if err := h.idle(); err != nil {
		return 0, err
	}
	asm, err := registry.Resolve(h.after, assemblyName)
	if err != nil {
		if asm, err = registry.Resolve(h.before, assemblyName); err != nil {
			return 0, fmt.Errorf("upgrader assembly: %w", err)
		}
	}

	found, err := upgrade.FromAssembly(asm, h.cfg.UpgraderAttribute)
	if err != nil {
		return 0, fmt.Errorf("failed to load upgraders from %s: %w", asm.Name, err)
	}
	for _, u := range found {
		if err := h.upgraders.Register(u); err != nil {
			return 0, err
		}
	}

	h.logger.Debugw("Upgraders loaded", "assembly", asm.Name, "count", len(found))
	return len(found), nil
}

// RegisterInstance records an already constructed new-side instance. Live
// instances with the same logical identity migrate into it instead of into
// a fresh instance.
func (h *Hotload) RegisterInstance(identity string, obj *heap.Object) error {
	if err := h.idle(); err != nil {
		return err
	}
	if identity == "" {
		return fmt.Errorf("instance identity is empty")
	}
	if obj == nil {
		return fmt.Errorf("instance %q is nil", identity)
	}
	h.mu.Lock()
	h.singletons[identity] = obj
	h.mu.Unlock()
	return nil
}

// ClearReplacements removes every registered replacement.
func (h *Hotload) ClearReplacements() error {
	if err := h.idle(); err != nil {
		return err
	}
	h.replacements.Clear()
	return nil
}

// ClearWatches removes every watched root.
func (h *Hotload) ClearWatches() error {
	if err := h.idle(); err != nil {
		return err
	}
	h.watches.Clear()
	return nil
}

// ClearUpgraders removes every user upgrader and registered instance.
// Built-in upgraders stay.
func (h *Hotload) ClearUpgraders() error {
	if err := h.idle(); err != nil {
		return err
	}
	h.upgraders.Clear()
	h.mu.Lock()
	h.singletons = make(map[string]*heap.Object)
	h.mu.Unlock()
	return nil
}

// UpdateReferences runs one pass synchronously and returns its report. A
// call made while another pass runs fails with ErrPassInProgress; anything
// that goes wrong inside the pass is reported as entries of the result.
func (h *Hotload) UpdateReferences() (*report.Result, error) {
	if !h.running.CompareAndSwap(false, true) {
		h.metrics.ObserveRejected()
		return nil, ErrPassInProgress
	}
	defer h.running.Store(false)

	passID := uuid.New().String()
	log := h.logger.WithPass(passID)
	start := time.Now()

	effective := h.replacements.Effective()
	if len(effective) == 0 {
		log.Infow("Hotload pass skipped", "reason", "no effective replacements")
		res := report.NoActionResult(passID)
		h.metrics.ObservePass(res)
		return res, nil
	}

	log.Infow("Starting hotload pass",
		"replacements", len(effective),
		"watches", h.watches.Len(),
		"upgraders", h.upgraders.Len(),
	)

	mapper := typemap.NewMapper(effective)
	layout := typemap.NewComparator(mapper)
	pre := newPrecompute(mapper, layout, h.cfg.Workers, log)
	types := pre.run(effective)
	h.metrics.ObservePrecompute(types)

	w, err := walker.New(walker.Config{
		Mapper:     mapper,
		Layout:     layout,
		Upgraders:  h.upgraders,
		Old:        h.before,
		Watches:    h.watches.All(),
		Statics:    h.statics,
		Singletons: h.snapshotSingletons(),
		Options: walker.Options{
			SkipAttribute:      h.cfg.SkipAttribute,
			ResetAttribute:     h.cfg.ResetAttribute,
			CallbackAttribute:  h.cfg.CallbackAttribute,
			WarnGenericStatics: h.cfg.WarnGenericStatics,
		},
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create walker: %w", err)
	}

	c := report.NewCollector()
	w.Run(c)
	res := c.Result(passID, time.Since(start))

	log.Infow("Hotload pass completed",
		"no_action", res.NoAction,
		"instances", res.InstancesProcessed,
		"infos", res.Count(report.Info),
		"warnings", res.Count(report.Warning),
		"errors", res.Count(report.Error),
		"duration_ms", res.ProcessingTimeMs,
	)
	if res.HasErrors() {
		log.Errorw("Hotload pass left broken references", "errors", res.Count(report.Error))
	}

	h.metrics.ObservePass(res)
	return res, nil
}

func (h *Hotload) snapshotSingletons() map[string]*heap.Object {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]*heap.Object, len(h.singletons))
	for k, v := range h.singletons {
		out[k] = v
	}
	return out
}
