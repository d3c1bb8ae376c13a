package feedback

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newGuard() (*Guard, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return New(Config{Now: clock.now}), clock
}

// cycle admits text and finishes it with translated output.
func cycle(t *testing.T, g *Guard, text, translated string) {
	t.Helper()
	reason, ok := g.Admit(text)
	require.True(t, ok, "admit %q rejected: %s", text, reason)
	g.Finish(text, translated, true)
}

func TestAdmissionChecks(t *testing.T) {
	tests := []struct {
		name  string
		setup func(g *Guard, c *fakeClock)
		text  string
		want  Reason
	}{
		{
			name:  "translation in flight",
			setup: func(g *Guard, _ *fakeClock) { g.Admit("first sentence") },
			text:  "second sentence",
			want:  ReasonInFlight,
		},
		{
			name: "too short",
			text: "hi",
			want: ReasonTooShort,
		},
		{
			name: "cooldown active",
			setup: func(g *Guard, c *fakeClock) {
				g.Admit("first sentence")
				g.Finish("first sentence", "primera frase", true)
				c.advance(5 * time.Second)
			},
			text: "another sentence",
			want: ReasonCooldown,
		},
		{
			name: "too soon after failed attempt",
			setup: func(g *Guard, c *fakeClock) {
				g.Admit("first sentence")
				g.Finish("first sentence", "", false)
				c.advance(time.Second)
			},
			text: "another sentence",
			want: ReasonTooSoon,
		},
		{
			name: "repeat of last input",
			setup: func(g *Guard, c *fakeClock) {
				g.Admit("same sentence")
				g.Finish("same sentence", "misma frase", true)
				c.advance(11 * time.Second)
			},
			text: "same sentence",
			want: ReasonRepeat,
		},
		{
			name: "recently processed",
			setup: func(g *Guard, c *fakeClock) {
				for _, s := range []string{"older sentence", "newer sentence"} {
					g.Admit(s)
					g.Finish(s, "frase "+s, true)
					c.advance(11 * time.Second)
				}
			},
			text: "older sentence",
			want: ReasonRecent,
		},
		{
			name: "echo contained in output",
			setup: func(g *Guard, c *fakeClock) {
				g.Admit("hello there friend")
				g.Finish("hello there friend", `"Hola, ¿cómo estás?" dijo`, true)
				c.advance(11 * time.Second)
			},
			text: "hola, ¿cómo estás?",
			want: ReasonEcho,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, c := newGuard()
			if tt.setup != nil {
				tt.setup(g, c)
			}
			reason, ok := g.Admit(tt.text)
			assert.False(t, ok)
			assert.Equal(t, tt.want, reason)
		})
	}
}

func TestEchoSkippedWhenOtherChecksPass(t *testing.T) {
	g, c := newGuard()
	cycle(t, g, "Hello, how are you?", "Hola, ¿cómo estás?")
	c.advance(time.Minute)

	reason, ok := g.Admit("Hola, ¿cómo estás?")
	assert.False(t, ok)
	assert.Equal(t, ReasonEcho, reason)

	reason, ok = g.Admit("HOLA, ¿CÓMO ESTÁS? muy bien")
	assert.False(t, ok, "output contained in input is still an echo")
	assert.Equal(t, ReasonEcho, reason)
}

func TestNewSentenceAfterCooldownAdmitted(t *testing.T) {
	g, c := newGuard()
	cycle(t, g, "Hello, how are you?", "Hola, ¿cómo estás?")
	c.advance(DefaultCooldown)

	_, ok := g.Admit("Where is the train station?")
	assert.True(t, ok)
	assert.True(t, g.State().IsProcessingTranslation)
}

func TestFinishAlwaysReleases(t *testing.T) {
	g, c := newGuard()
	_, ok := g.Admit("first sentence")
	require.True(t, ok)
	g.Finish("first sentence", "", false)

	st := g.State()
	assert.False(t, st.IsProcessingTranslation)
	assert.Empty(t, st.LastInputText, "failed cycles leave tracking fields alone")
	assert.Empty(t, st.RecentTranscriptions)

	c.advance(DefaultMinInterval)
	_, ok = g.Admit("first sentence")
	assert.True(t, ok, "a failed text may be retried after the minimum interval")
}

func TestRecentHistoryIsBounded(t *testing.T) {
	g, c := newGuard()
	texts := []string{"sentence one", "sentence two", "sentence three", "sentence four", "sentence five", "sentence six"}
	for _, s := range texts {
		cycle(t, g, s, "salida "+s)
		c.advance(DefaultCooldown)
	}

	st := g.State()
	assert.Equal(t, texts[1:], st.RecentTranscriptions)

	_, ok := g.Admit("sentence one")
	assert.True(t, ok, "evicted text is admitted again")
}

func TestAdmitIsExclusive(t *testing.T) {
	g, _ := newGuard()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := g.Admit("concurrent sentence " + string(rune('a'+i))); ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, admitted)
}

func TestReset(t *testing.T) {
	g, _ := newGuard()
	cycle(t, g, "Hello, how are you?", "Hola, ¿cómo estás?")
	g.Reset()

	assert.Equal(t, State{RecentTranscriptions: []string{}}, g.State())
	_, ok := g.Admit("Hello, how are you?")
	assert.True(t, ok)
}
