package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	c := NewCollector()
	c.MarkReached()
	c.Instance("Game::Game.Player", "Game::Game.World.Player", 2*time.Millisecond)
	c.Processor("copy", "Game::Game.World.Player", time.Millisecond)
	c.Info("Game::Game.Player", "Game::Game.World.Player.unused", "member removed")
	c.Warn("Game::Game.Player", "Game::Game.World.Player.legacy", "member removed; System.Int32 value dropped")
	c.Warn("Game::Game.Enemy", "Game::Game.World.Boss", "type removed")
	return c.Result("pass-7", 3*time.Millisecond)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"info", Info, false},
		{"", Info, false},
		{"Warning", Warning, false},
		{"warn", Warning, false},
		{" error ", Error, false},
		{"fatal", Info, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderSummaryAndEntries(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf, RenderOptions{}).Render(sampleResult())
	out := buf.String()

	assert.Contains(t, out, "Hotload pass pass-7")
	assert.Contains(t, out, "Status:     migrated")
	assert.Contains(t, out, "Instances:  1")
	assert.Contains(t, out, "1 info, 2 warning, 0 error")
	assert.Contains(t, out, "[Diagnostics]")
	assert.Contains(t, out, "WARNING Game::Game.World.Player.legacy: member removed; System.Int32 value dropped [Game::Game.Player]")
	assert.Contains(t, out, "INFO    Game::Game.World.Player.unused: member removed")
	assert.NotContains(t, out, "Type Timings")
	assert.NotContains(t, out, "\x1b[", "no escape codes without color")
}

func TestRenderFiltersAndTruncates(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf, RenderOptions{MinKind: Warning, MaxEntries: 1}).Render(sampleResult())
	out := buf.String()

	assert.NotContains(t, out, "unused")
	assert.Contains(t, out, "legacy")
	assert.NotContains(t, out, "Game::Game.World.Boss")
	assert.Contains(t, out, "... 1 more")
}

func TestRenderTimings(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf, RenderOptions{ShowTimings: true}).Render(sampleResult())
	out := buf.String()

	assert.Contains(t, out, "[Type Timings]")
	assert.Contains(t, out, "[Upgrader Timings]")
	assert.Contains(t, out, "Game::Game.Player")
	assert.Contains(t, out, "copy")
}

func TestRenderNoAction(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf, RenderOptions{ShowTimings: true}).Render(NoActionResult("idle"))
	out := buf.String()

	assert.Contains(t, out, "Status:     no action")
	assert.NotContains(t, out, "[Diagnostics]")
	assert.NotContains(t, out, "Timings")
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "no action", Status(NoActionResult("p")))
	assert.Equal(t, "migrated", Status(sampleResult()))

	c := NewCollector()
	c.MarkReached()
	c.Error("Game::Game.World", "Game::Game.World.Boss", "declared type cannot be resolved")
	assert.Equal(t, "errors", Status(c.Result("p", 0)))
}

func TestWriteTableAlignsWideRunes(t *testing.T) {
	var buf bytes.Buffer
	WriteTable(&buf, []string{"Type", "Outcome"}, [][]string{
		{"Game.玩家", "mapped"},
		{"Game.Enemy", "removed"},
	})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)

	// "Game.玩家" is 9 columns wide, "Game.Enemy" 10: the second column
	// starts at the same display offset on every row.
	assert.Equal(t, "  Type        Outcome", lines[0])
	assert.Equal(t, "  ----------  -------", lines[1])
	assert.Equal(t, "  Game.玩家   mapped", lines[2])
	assert.Equal(t, "  Game.Enemy  removed", lines[3])
}
