package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/hotload/internal/heap"
	"github.com/dbsmedya/hotload/internal/meta"
)

const gameImage = `
name: before
assemblies:
  - name: Game
    types:
      - name: Game.Player
        base: Game.Entity
        attributes:
          - type: Serializable
        fields:
          - {name: hp, type: int}
          - {name: pos, type: Game.Vec}
          - {name: mode, type: Game.Mode}
          - {name: pool, type: "Game.Pool[Game.Player]"}
        methods:
          - {name: Health, returns: int, field: hp, hash: h1}
          - {name: Speed, returns: double, result: 2, virtual: true}
          - name: Convert
            generic: [U]
            returns: U
            params: [int, "U[]"]
      - name: Game.Entity
        fields:
          - {name: id, type: long}
      - name: Game.Vec
        kind: struct
        explicit: true
        fields:
          - {name: x, type: float, offset: 0}
          - {name: y, type: float, offset: 4}
      - name: Game.Mode
        kind: enum
        underlying: long
      - name: Game.Pool
        generic: [T]
        fields:
          - {name: items, type: "T[]"}
        static_fields:
          - {name: shared, type: "Game.Pool[T]"}
      - name: Game.Callback
        kind: delegate
        methods:
          - {name: Invoke, returns: int, params: [int]}
      - name: Game.Counter
        static_fields:
          - name: Instance
            type: Game.Counter
            attributes:
              - {type: SkipHotload}
        methods:
          - {name: MakeAdder, returns: "System.Func[int]", params: [int]}
        nested:
          - name: "<>c__DisplayClass1_0"
            synthesized: closure
            scope: MakeAdder
            fields:
              - {name: n, type: int}
            methods:
              - {name: "<MakeAdder>b__0", returns: int, scope: MakeAdder, field: n, hash: l1}
      - name: Game.Upgraders.ResetCaches
        attributes:
          - type: HotloadUpgrader
            args: [Game.Player.cache]
            named: {Priority: 5, Action: reset}
`

func TestParseImage(t *testing.T) {
	img, err := ParseImage([]byte(gameImage))
	require.NoError(t, err)
	assert.Equal(t, "before", img.Name)

	game, ok := img.Assembly("game")
	require.True(t, ok)

	player := game.Type("Game.Player")
	entity := game.Type("Game.Entity")
	require.NotNil(t, player)
	assert.Same(t, entity, player.Base, "base declared later in the file")
	assert.True(t, player.HasAttribute("Serializable"))
	assert.Equal(t, []string{"id", "hp", "pos", "mode", "pool"}, fieldNames(player.InstanceFields()))

	pool := game.Type("Game.Pool`1")
	require.NotNil(t, pool)
	closedPool := player.InstanceFields()[4].Type
	assert.Same(t, meta.MustInstantiate(pool, player), closedPool)
	require.Len(t, closedPool.Fields, 2, "instantiation sees every member of the definition")
	assert.Same(t, meta.ArrayOf(player, 1), closedPool.Fields[0].Type)
	assert.NotNil(t, pool.StaticField("shared"))

	vec := game.Type("Game.Vec")
	assert.True(t, vec.IsValueType())
	assert.True(t, vec.ExplicitLayout)
	assert.Equal(t, 4, vec.Fields[1].Offset)

	mode := game.Type("Game.Mode")
	assert.Equal(t, meta.KindEnum, mode.Kind)
	assert.Same(t, meta.Int64, mode.Underlying)

	callback := game.Type("Game.Callback")
	require.NotNil(t, callback.Invoke())
	assert.Same(t, meta.Int32, callback.Invoke().Return)

	counter := game.Type("Game.Counter")
	assert.True(t, counter.StaticField("Instance").HasAttribute("SkipHotload"))
	closure := game.Type("Game.Counter+<>c__DisplayClass1_0")
	require.NotNil(t, closure)
	assert.Equal(t, meta.SynthClosure, closure.Synthesized)
	assert.Equal(t, "MakeAdder", closure.Scope)
	lambda := closure.MethodsNamed("<MakeAdder>b__0")[0]
	assert.Equal(t, "l1", lambda.BodyHash)
	assert.Equal(t, "MakeAdder", lambda.Scope)
	assert.Equal(t, []*meta.Type{meta.Int32}, closure.ScopeParams, "taken from the only MakeAdder")
	assert.Equal(t, []*meta.Type{meta.Int32}, lambda.ScopeParams)

	up := game.Type("Game.Upgraders.ResetCaches")
	attr, ok := up.Attribute("HotloadUpgrader")
	require.True(t, ok)
	assert.Equal(t, []any{"Game.Player.cache"}, attr.Args)
	prio, _ := attr.NamedArg("Priority")
	assert.Equal(t, 5, prio)
}

func TestParseImageMethods(t *testing.T) {
	img, err := ParseImage([]byte(gameImage))
	require.NoError(t, err)
	game, _ := img.Assembly("Game")
	player := game.Type("Game.Player")

	health := player.MethodsNamed("Health")[0]
	o := heap.New(player).MustSet("hp", int32(12))
	got, err := health.Body(o, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(12), got)

	speed := player.MethodsNamed("Speed")[0]
	assert.True(t, speed.Virtual)
	got, err = speed.Body(o, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(2), got)

	convert := player.MethodsNamed("Convert")[0]
	require.Len(t, convert.GenericParams, 1)
	assert.Same(t, convert.GenericParams[0], convert.Return)
	assert.Same(t, meta.ArrayOf(convert.GenericParams[0], 1), convert.Params[1])
	assert.Nil(t, convert.Body)

	_, err = health.Body("not an object", nil)
	assert.Error(t, err)
}

func TestParseImageErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown key",
			yaml: "name: x\nassemblies:\n  - name: A\n    typez: []\n",
			want: "typez",
		},
		{
			name: "duplicate assembly",
			yaml: "assemblies:\n  - name: A\n  - name: a\n",
			want: "declared twice",
		},
		{
			name: "unknown field type",
			yaml: "assemblies:\n  - name: A\n    types:\n      - name: A.T\n        fields:\n          - {name: f, type: A.Missing}\n",
			want: "field f",
		},
		{
			name: "unknown kind",
			yaml: "assemblies:\n  - name: A\n    types:\n      - {name: A.T, kind: record}\n",
			want: "unknown kind",
		},
		{
			name: "delegate without invoke",
			yaml: "assemblies:\n  - name: A\n    types:\n      - {name: A.D, kind: delegate}\n",
			want: "no Invoke",
		},
		{
			name: "top-level synthesized",
			yaml: "assemblies:\n  - name: A\n    types:\n      - {name: A.C, synthesized: closure}\n",
			want: "must be nested",
		},
		{
			name: "offset without explicit layout",
			yaml: "assemblies:\n  - name: A\n    types:\n      - name: A.S\n        kind: struct\n        fields:\n          - {name: f, type: int, offset: 0}\n",
			want: "explicit layout",
		},
		{
			name: "result on void method",
			yaml: "assemblies:\n  - name: A\n    types:\n      - name: A.T\n        methods:\n          - {name: M, result: 1}\n",
			want: "void method",
		},
		{
			name: "inheritance cycle",
			yaml: "assemblies:\n  - name: A\n    types:\n      - {name: A.X, base: A.Y}\n      - {name: A.Y, base: A.X}\n",
			want: "inheritance cycle",
		},
		{
			name: "scope params without scope",
			yaml: "assemblies:\n  - name: A\n    types:\n      - name: A.T\n        methods:\n          - {name: M, scope_params: [int]}\n",
			want: "without a scope",
		},
		{
			name: "result not convertible",
			yaml: "assemblies:\n  - name: A\n    types:\n      - name: A.T\n        methods:\n          - {name: M, returns: int, result: nope}\n",
			want: "result",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseImage([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

const overloadedScopes = `
assemblies:
  - name: Game
    types:
      - name: Game.Counter
        methods:
          - {name: MakeAdder, returns: int, params: [int]}
          - {name: MakeAdder, returns: int, params: [string]}
          - {name: Reset}
        nested:
          - name: "<>c__DisplayClass0_0"
            synthesized: closure
            scope: MakeAdder
            fields:
              - {name: n, type: int}
          - name: "<>c__DisplayClass1_0"
            synthesized: closure
            scope: MakeAdder
            scope_params: [string]
            fields:
              - {name: s, type: string}
            methods:
              - {name: "<MakeAdder>b__0", returns: int, scope: MakeAdder}
          - name: "<>c__DisplayClass2_0"
            synthesized: closure
            scope: Reset
`

func TestParseImageScopeSignatures(t *testing.T) {
	img, err := ParseImage([]byte(overloadedScopes))
	require.NoError(t, err)
	game, _ := img.Assembly("Game")

	unknown := game.Type("Game.Counter+<>c__DisplayClass0_0")
	assert.Nil(t, unknown.ScopeParams, "overloaded scope without scope_params")

	declared := game.Type("Game.Counter+<>c__DisplayClass1_0")
	assert.Equal(t, []*meta.Type{meta.String}, declared.ScopeParams)
	lambda := declared.MethodsNamed("<MakeAdder>b__0")[0]
	assert.Equal(t, []*meta.Type{meta.String}, lambda.ScopeParams, "lambdas inherit the closure's scope")

	noParams := game.Type("Game.Counter+<>c__DisplayClass2_0")
	require.NotNil(t, noParams.ScopeParams)
	assert.Empty(t, noParams.ScopeParams)
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "before.yaml")
	require.NoError(t, os.WriteFile(path, []byte(gameImage), 0o644))

	img, err := LoadImage(path)
	require.NoError(t, err)
	assert.Len(t, img.Assemblies(), 1)

	_, err = LoadImage(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read image manifest")
}

func fieldNames(fields []*meta.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}
