package hotload

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/hotload/internal/config"
	"github.com/dbsmedya/hotload/internal/heap"
	"github.com/dbsmedya/hotload/internal/meta"
	"github.com/dbsmedya/hotload/internal/metrics"
	"github.com/dbsmedya/hotload/internal/registry"
	"github.com/dbsmedya/hotload/internal/report"
	"github.com/dbsmedya/hotload/internal/upgrade"
)

// images holds a before/after pair and the live statics of the before side.
type images struct {
	before, after *meta.Image
	oldAsm        *meta.Assembly
	newAsm        *meta.Assembly
	statics       *heap.Statics
}

func newImages() *images {
	oldAsm, newAsm := meta.NewAssembly("Before"), meta.NewAssembly("After")
	return &images{
		before:  meta.NewImage("before", oldAsm),
		after:   meta.NewImage("after", newAsm),
		oldAsm:  oldAsm,
		newAsm:  newAsm,
		statics: heap.NewStatics(),
	}
}

// engine creates a Hotload replacing Before with After and watching Before.
func (im *images) engine(t *testing.T) *Hotload {
	t.Helper()
	cfg := config.DefaultHotload()
	cfg.Workers = 2
	h, err := New(cfg, im.before, im.after, im.statics)
	require.NoError(t, err)
	require.NoError(t, h.ReplacingAssembly("Before", "After"))
	require.NoError(t, h.WatchAssembly("Before", nil))
	return h
}

func run(t *testing.T, h *Hotload) *report.Result {
	t.Helper()
	res, err := h.UpdateReferences()
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

var funcOfInt = meta.MustInstantiate(meta.Func1, meta.Int32)

// counter defines Counter with an OnTick delegate field, an Instance root
// and, when keepScope is set, MakeAdder with its capturing closure. The
// static lambda Tick body is identified by body.
func counter(asm *meta.Assembly, keepScope bool, body string) *meta.Type {
	c := asm.Define("Game", "Counter", meta.KindClass)
	c.AddField("total", meta.Int32)
	c.AddField("OnTick", funcOfInt)
	c.AddField("Handlers", meta.Action)
	c.AddStaticField("Instance", c)
	if keepScope {
		c.AddMethod("MakeAdder", funcOfInt, meta.Int32)
		closure := c.NestSynthesized("<>c__DisplayClass0_0", meta.SynthClosure, "MakeAdder")
		closure.AddField("n", meta.Int32)
		closure.AddMethod("<MakeAdder>b__0", meta.Int32).InScope("MakeAdder").Implement("add", func(self any, _ []any) (any, error) {
			return self.(*heap.Object).Get("n").(int32) + 1, nil
		})
	}
	c.AddMethod("Tick", nil)
	c.AddStaticMethod("<Tick>b__1_0", nil).InScope("Tick").Implement(body, func(any, []any) (any, error) {
		return nil, nil
	})
	return c
}

// makeAdder reproduces Counter.MakeAdder(n) on the live heap.
func makeAdder(c *meta.Type, n int32) *heap.Delegate {
	closure := c.NestedTypes[0]
	obj := heap.New(closure).MustSet("n", n)
	return heap.NewDelegate(funcOfInt, heap.Bind(obj, closure.Methods[0]))
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	im := newImages()
	cfg := config.DefaultHotload()

	_, err := New(cfg, nil, im.after, im.statics)
	assert.Error(t, err)
	_, err = New(cfg, im.before, nil, im.statics)
	assert.Error(t, err)
	_, err = New(cfg, im.before, im.after, nil)
	assert.Error(t, err)

	cfg.Workers = 0
	h, err := New(cfg, im.before, im.after, im.statics)
	require.NoError(t, err)
	assert.Equal(t, 1, h.cfg.Workers)
}

func TestClosureScenarioKeepsBehaviour(t *testing.T) {
	im := newImages()
	oldCounter := counter(im.oldAsm, true, "h1")
	newCounter := counter(im.newAsm, true, "h1")

	instance := heap.New(oldCounter).MustSet("OnTick", makeAdder(oldCounter, 5))
	im.statics.Set(oldCounter.StaticField("Instance"), instance)

	before, err := instance.Get("OnTick").(*heap.Delegate).Invoke()
	require.NoError(t, err)

	res := run(t, im.engine(t))

	assert.False(t, res.HasErrors())
	assert.False(t, res.NoAction)
	assert.NotEmpty(t, res.PassID)

	migrated := im.statics.Get(newCounter.StaticField("Instance")).(*heap.Object)
	assert.Same(t, newCounter, migrated.Type)
	after, err := migrated.Get("OnTick").(*heap.Delegate).Invoke()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, int32(6), after)
}

func TestIdentityReplacementIsIdempotent(t *testing.T) {
	asm := meta.NewAssembly("Game")
	img := meta.NewImage("live", asm)
	c := counter(asm, true, "h1")
	cache := asm.DefineGeneric("Game", "Cache", meta.KindClass, "T")
	cache.AddStaticField("items", meta.Int32)

	statics := heap.NewStatics()
	instance := heap.New(c).MustSet("OnTick", makeAdder(c, 1))
	statics.Set(c.StaticField("Instance"), instance)

	h, err := New(config.DefaultHotload(), img, img, statics)
	require.NoError(t, err)
	require.NoError(t, h.ReplacingAssembly("Game", "Game"))
	require.NoError(t, h.WatchAssembly("Game", nil))

	res := run(t, h)

	assert.True(t, res.NoAction)
	assert.Empty(t, res.Entries)
	assert.Same(t, instance, statics.Get(c.StaticField("Instance")))
}

func TestSharedReferencesStayShared(t *testing.T) {
	im := newImages()
	define := func(asm *meta.Assembly, extra bool) *meta.Type {
		item := asm.Define("Game", "Item", meta.KindClass)
		item.AddField("name", meta.String)
		if extra {
			item.AddField("rarity", meta.Int32)
		}
		inv := asm.Define("Game", "Inventory", meta.KindClass)
		inv.AddField("equipped", item)
		inv.AddField("slots", meta.ArrayOf(item, 1))
		inv.AddStaticField("Main", inv)
		inv.AddStaticField("Favourite", item)
		return inv
	}
	oldInv := define(im.oldAsm, false)
	newInv := define(im.newAsm, true)
	oldItem := im.oldAsm.Type("Game.Item")

	sword := heap.New(oldItem).MustSet("name", "sword")
	inv := heap.New(oldInv).
		MustSet("equipped", sword).
		MustSet("slots", heap.ArrayOf(oldItem, sword, heap.New(oldItem).MustSet("name", "shield")))
	im.statics.Set(oldInv.StaticField("Main"), inv)
	im.statics.Set(oldInv.StaticField("Favourite"), sword)

	res := run(t, im.engine(t))
	require.False(t, res.HasErrors())

	main := im.statics.Get(newInv.StaticField("Main")).(*heap.Object)
	fav := im.statics.Get(newInv.StaticField("Favourite")).(*heap.Object)
	slots := main.Get("slots").(*heap.Array)

	assert.Equal(t, "sword", fav.Get("name"))
	assert.Same(t, fav, main.Get("equipped"))
	assert.Same(t, fav, slots.At(0))
	assert.Equal(t, "shield", slots.At(1).(*heap.Object).Get("name"))
}

func TestUnswappedDelegateIsReused(t *testing.T) {
	im := newImages()
	lib := meta.NewAssembly("Lib")
	im.before.Add(lib)
	im.after.Add(lib)
	logFn := lib.Define("Lib", "Util", meta.KindClass).AddStaticMethod("Log", nil)

	oldCounter := counter(im.oldAsm, true, "h1")
	newCounter := counter(im.newAsm, true, "h1")
	d := heap.NewDelegate(meta.Action, heap.Bind(nil, logFn))
	im.statics.Set(oldCounter.StaticField("Instance"), heap.New(oldCounter).MustSet("Handlers", d))

	res := run(t, im.engine(t))
	require.Empty(t, res.Entries)

	migrated := im.statics.Get(newCounter.StaticField("Instance")).(*heap.Object)
	assert.Same(t, d, migrated.Get("Handlers"))
}

func TestDeletedScopeDegradesGracefully(t *testing.T) {
	im := newImages()
	oldCounter := counter(im.oldAsm, true, "h1")
	newCounter := counter(im.newAsm, false, "h1")
	spare := oldCounter.AddStaticField("Spare", oldCounter)
	newCounter.AddStaticField("Spare", newCounter)

	im.statics.Set(oldCounter.StaticField("Instance"), heap.New(oldCounter).MustSet("OnTick", makeAdder(oldCounter, 1)))
	im.statics.Set(spare, heap.New(oldCounter).MustSet("OnTick", makeAdder(oldCounter, 2)))

	res := run(t, im.engine(t))

	assert.False(t, res.HasErrors())
	require.Equal(t, 1, res.Count(report.Warning), "one warning per missing declaration")

	for _, name := range []string{"Instance", "Spare"} {
		obj := im.statics.Get(newCounter.StaticField(name)).(*heap.Object)
		d := obj.Get("OnTick").(*heap.Delegate)
		_, err := d.Invoke()
		assert.ErrorIs(t, err, heap.ErrUnimplementedAfterReload, name)
	}
}

func TestMulticastPreservesEntries(t *testing.T) {
	im := newImages()
	oldCounter := counter(im.oldAsm, true, "h1")
	newCounter := counter(im.newAsm, true, "h2")
	fire := im.oldAsm.Define("Game", "Gone", meta.KindClass).AddStaticMethod("Fire", nil)

	tick := oldCounter.MethodsNamed("<Tick>b__1_0")[0]
	handlers := heap.NewDelegate(meta.Action,
		heap.Bind(nil, tick),
		heap.Bind(nil, fire),
		heap.Bind(nil, tick),
	)
	im.statics.Set(oldCounter.StaticField("Instance"), heap.New(oldCounter).MustSet("Handlers", handlers))

	res := run(t, im.engine(t))

	migrated := im.statics.Get(newCounter.StaticField("Instance")).(*heap.Object)
	got := migrated.Get("Handlers").(*heap.Delegate)
	require.Len(t, got.Entries, 3)
	newTick := newCounter.MethodsNamed("<Tick>b__1_0")[0]
	assert.Same(t, newTick, got.Entries[0].Method)
	assert.Equal(t, heap.BindStub, got.Entries[1].Kind)
	assert.Same(t, newTick, got.Entries[2].Method)

	warnings := res.Filter(report.Warning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "Before::Game.Counter.Instance.Handlers#1", warnings[0].Path)
}

func TestGenericStaticWarnsAgainstDeclaringType(t *testing.T) {
	im := newImages()
	for _, asm := range []*meta.Assembly{im.oldAsm, im.newAsm} {
		pool := asm.DefineGeneric("Game", "Pool", meta.KindClass, "T")
		pool.AddStaticField("shared", meta.Int32)
		pool.AddStaticField("ignored", meta.Int32).With(meta.Attr("SkipHotload"))
	}

	res := run(t, im.engine(t))

	warnings := res.Filter(report.Warning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "Before::Game.Pool`1", warnings[0].Type)
	assert.Equal(t, "Before::Game.Pool`1.shared", warnings[0].Path)
}

func TestSwappedExplicitOffsetsAreNotLayoutEquivalent(t *testing.T) {
	im := newImages()
	define := func(asm *meta.Assembly, a, b int) *meta.Type {
		h := asm.Define("Game", "Header", meta.KindStruct).Explicit()
		h.AddField("tag", meta.Int32).At(a)
		h.AddField("size", meta.Int32).At(b)
		holder := asm.Define("Game", "Packet", meta.KindClass)
		holder.AddField("header", h)
		holder.AddStaticField("Last", holder)
		return holder
	}
	oldPacket := define(im.oldAsm, 0, 4)
	newPacket := define(im.newAsm, 4, 0)

	header := heap.New(im.oldAsm.Type("Game.Header")).MustSet("tag", int32(7)).MustSet("size", int32(64))
	packet := heap.New(oldPacket).MustSet("header", header)
	im.statics.Set(oldPacket.StaticField("Last"), packet)

	res := run(t, im.engine(t))
	require.False(t, res.HasErrors())

	got := im.statics.Get(newPacket.StaticField("Last")).(*heap.Object)
	assert.NotSame(t, packet, got, "offsets changed, so the instance is rebuilt")
	migrated := got.Get("header").(*heap.Object)
	assert.Same(t, im.newAsm.Type("Game.Header"), migrated.Type)
	assert.Equal(t, int32(7), migrated.Get("tag"))
	assert.Equal(t, int32(64), migrated.Get("size"))
}

func TestUnresolvableRootIsError(t *testing.T) {
	im := newImages()
	boss := im.oldAsm.Define("Game", "Boss", meta.KindClass)
	oldLevel := im.oldAsm.Define("Game", "Level", meta.KindClass)
	oldLevel.AddStaticField("Boss", boss)
	im.newAsm.Define("Game", "Level", meta.KindClass).AddStaticField("Boss", meta.Object)
	im.statics.Set(oldLevel.StaticField("Boss"), heap.New(boss))

	res := run(t, im.engine(t))

	assert.True(t, res.HasErrors())
	assert.Equal(t, 1, res.Count(report.Error))
}

func TestNoReplacementsIsNoAction(t *testing.T) {
	im := newImages()
	counter(im.oldAsm, true, "h1")
	h, err := New(config.DefaultHotload(), im.before, im.after, im.statics)
	require.NoError(t, err)
	require.NoError(t, h.WatchAssembly("Before", nil))

	res := run(t, h)
	assert.True(t, res.NoAction)
	assert.Empty(t, res.Entries)
	assert.Zero(t, res.TypeTimings.Len())
}

func TestReplacingAssemblyResolvesNames(t *testing.T) {
	im := newImages()
	h, err := New(config.DefaultHotload(), im.before, im.after, im.statics)
	require.NoError(t, err)

	assert.ErrorIs(t, h.ReplacingAssembly("Missing", "After"), registry.ErrAssemblyNotFound)
	assert.ErrorIs(t, h.ReplacingAssembly("Before", "Missing"), registry.ErrAssemblyNotFound)

	require.NoError(t, h.ReplacingAssembly("before", "AFTER"))
	got := h.Replacements()
	require.Len(t, got, 1)
	assert.Same(t, im.oldAsm, got[0].Old)
	assert.Same(t, im.newAsm, got[0].New)
}

func TestPassInProgressRejectsReentry(t *testing.T) {
	im := newImages()
	oldCounter := counter(im.oldAsm, true, "h1")

	var (
		h          *Hotload
		passErr    error
		watchErr   error
		clearErr   error
		registered error
	)
	newCounter := counter(im.newAsm, true, "h1")
	newCounter.AddMethod("Reloaded", nil).With(meta.Attr("OnHotloaded")).Implement("cb", func(any, []any) (any, error) {
		_, passErr = h.UpdateReferences()
		watchErr = h.WatchAssembly("After", nil)
		clearErr = h.ClearReplacements()
		registered = h.RegisterInstance("x", heap.New(newCounter))
		return nil, nil
	})
	im.statics.Set(oldCounter.StaticField("Instance"), heap.New(oldCounter))

	m := metrics.New("hotload", prometheus.NewRegistry())
	h = im.engine(t)
	h.SetMetrics(m)

	res := run(t, h)
	assert.False(t, res.HasErrors())

	assert.ErrorIs(t, passErr, ErrPassInProgress)
	assert.ErrorIs(t, watchErr, ErrPassInProgress)
	assert.ErrorIs(t, clearErr, ErrPassInProgress)
	assert.ErrorIs(t, registered, ErrPassInProgress)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PassesTotal.WithLabelValues(metrics.OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PassesTotal.WithLabelValues(metrics.OutcomeMigrated)))

	// The guard is released once the pass returns.
	_, err := h.UpdateReferences()
	assert.NoError(t, err)
}

func TestAddUpgradersFromAssembly(t *testing.T) {
	im := newImages()
	define := func(asm *meta.Assembly) *meta.Type {
		p := asm.Define("Game", "Player", meta.KindClass)
		p.AddField("hp", meta.Int32)
		p.AddField("cache", meta.Object)
		p.AddStaticField("Local", p)
		return p
	}
	oldPlayer := define(im.oldAsm)
	newPlayer := define(im.newAsm)
	im.newAsm.Define("Game.Upgraders", "ResetCaches", meta.KindClass).
		With(meta.Attribute{
			Type:  "HotloadUpgrader",
			Named: map[string]any{upgrade.NamedMember: "Game.Player.cache", upgrade.NamedAction: "reset"},
		})

	im.statics.Set(oldPlayer.StaticField("Local"),
		heap.New(oldPlayer).MustSet("hp", int32(3)).MustSet("cache", heap.New(meta.Object)))

	h := im.engine(t)
	n, err := h.AddUpgraders("After")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, h.Upgraders().Len())

	_, err = h.AddUpgraders("Nowhere")
	assert.ErrorIs(t, err, registry.ErrAssemblyNotFound)

	res := run(t, h)
	got := im.statics.Get(newPlayer.StaticField("Local")).(*heap.Object)
	assert.Equal(t, int32(3), got.Get("hp"))
	assert.Nil(t, got.Get("cache"))

	stat, ok := res.ProcessorTimings.Get("Game.Upgraders.ResetCaches")
	require.True(t, ok)
	assert.Equal(t, 1, stat.Instances)

	require.NoError(t, h.ClearUpgraders())
	assert.Zero(t, h.Upgraders().Len())
}

// renameUpgrader carries the old "hp" member into the renamed "health".
type renameUpgrader struct{}

func (*renameUpgrader) Name() string  { return "rename-hp" }
func (*renameUpgrader) Priority() int { return 10 }
func (*renameUpgrader) Applies(_, newField *meta.Field) bool {
	return newField != nil && newField.Name == "health"
}
func (*renameUpgrader) Apply(_ upgrade.Context, s upgrade.Slot) upgrade.Outcome {
	s.Set(int32(100))
	return upgrade.Copied
}

func TestAddUpgraderGeneric(t *testing.T) {
	im := newImages()
	h, err := New(config.DefaultHotload(), im.before, im.after, im.statics)
	require.NoError(t, err)

	u, err := AddUpgrader[renameUpgrader](h)
	require.NoError(t, err)
	assert.Equal(t, "rename-hp", u.Name())
	assert.Equal(t, 1, h.Upgraders().Len())
}

func TestRegisteredInstanceReceivesState(t *testing.T) {
	im := newImages()
	oldSvc := im.oldAsm.Define("Game", "Services", meta.KindClass)
	oldSvc.AddField("seed", meta.Int64)
	oldSvc.AddStaticField("Current", oldSvc)
	newSvc := im.newAsm.Define("Game", "Services", meta.KindClass)
	newSvc.AddField("seed", meta.Int64)
	newSvc.AddField("rng", meta.Object)
	newSvc.AddStaticField("Current", newSvc)

	live := heap.New(oldSvc).MustSet("seed", int64(1234))
	live.Identity = "services"
	im.statics.Set(oldSvc.StaticField("Current"), live)

	constructed := heap.New(newSvc)
	h := im.engine(t)
	assert.Error(t, h.RegisterInstance("", constructed))
	assert.Error(t, h.RegisterInstance("services", nil))
	require.NoError(t, h.RegisterInstance("services", constructed))

	run(t, h)

	assert.Same(t, constructed, im.statics.Get(newSvc.StaticField("Current")))
	assert.Equal(t, int64(1234), constructed.Get("seed"))
}

func TestPrecomputeCoversReplacedTypes(t *testing.T) {
	im := newImages()
	counter(im.oldAsm, true, "h1")
	counter(im.newAsm, true, "h1")
	base := im.oldAsm.Define("Game", "Entity", meta.KindClass)
	im.oldAsm.Define("Game", "Player", meta.KindClass).Extends(base)

	m := metrics.New("hotload", prometheus.NewRegistry())
	h := im.engine(t)
	h.SetMetrics(m)
	run(t, h)

	assert.Equal(t, float64(len(im.oldAsm.Types())), testutil.ToFloat64(m.PrecomputedTypesTotal))
}

func TestClearLifecycle(t *testing.T) {
	im := newImages()
	oldCounter := counter(im.oldAsm, true, "h1")
	counter(im.newAsm, true, "h1")
	im.statics.Set(oldCounter.StaticField("Instance"), heap.New(oldCounter))

	h := im.engine(t)
	require.NoError(t, h.ClearWatches())
	assert.Empty(t, h.Watches())

	res := run(t, h)
	assert.True(t, res.NoAction, "nothing is reached without watched roots")

	require.NoError(t, h.ClearReplacements())
	assert.Empty(t, h.Replacements())
	res = run(t, h)
	assert.True(t, res.NoAction)
}
