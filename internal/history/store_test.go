package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"in-memory", ":memory:"},
		{"empty path", ""},
		{"file in nested directory", filepath.Join(t.TempDir(), "data", "history.db")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.path, false)
			require.NoError(t, err)
			defer s.Close()
			assert.NoError(t, s.HealthCheck(context.Background()))
		})
	}
}

func TestSaveAndRecent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &Record{SessionID: "a", OriginalText: "one", TranslatedText: "uno", TargetLang: "es"}))
	require.NoError(t, s.SaveBatch(ctx, []Record{
		{SessionID: "a", OriginalText: "two", TranslatedText: "dos", TargetLang: "es"},
		{SessionID: "b", OriginalText: "three", TranslatedText: "tres", TargetLang: "es", SynthesisError: "voice unavailable"},
	}))

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "three", recent[0].OriginalText)
	assert.Equal(t, "two", recent[1].OriginalText)
	assert.Equal(t, "voice unavailable", recent[0].SynthesisError)

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestBySession(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.SaveBatch(ctx, []Record{
		{SessionID: "a", OriginalText: "one"},
		{SessionID: "b", OriginalText: "other"},
		{SessionID: "a", OriginalText: "two"},
	}))

	got, err := s.BySession(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].OriginalText)
	assert.Equal(t, "two", got[1].OriginalText)
}

func TestSaveBatchEmpty(t *testing.T) {
	s := openTest(t)
	assert.NoError(t, s.SaveBatch(context.Background(), nil))
}
