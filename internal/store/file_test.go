package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"ts":"2026-02-12T21:05:00Z","city":"PHX","side":"yes","count":1,"price_cents":40,"cost_cents":40,"pnl_cents":60,"won":true,"adjusted_edge":12}

not json at all
{"ts":"2026-02-11T21:05:00Z","city":"SEA","side":"no","count":2,"price_cents":30,"cost_cents":60,"pnl_cents":-60,"won":false,"adjusted_edge":18}
{"city":"DAL","won":true}
`

func writeLog(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, SettlementLogName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileSource_MissingLogIsEmpty(t *testing.T) {
	src := NewTradingDirSource(t.TempDir())
	records, err := src.ReadSettlements(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestFileSource_SkipsBlankAndMalformedLines(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, sampleLog)

	records, err := NewTradingDirSource(dir).ReadSettlements(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Log order is preserved; sorting is the filter stage's job.
	assert.Equal(t, "PHX", records[0].City)
	assert.Equal(t, "SEA", records[1].City)
}

func TestFileSource_RereadsWhenFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, sampleLog)
	src := NewFileSource(path)
	ctx := context.Background()

	first, err := src.ReadSettlements(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString(`{"ts":"2026-02-13T21:05:00Z","city":"BOS","won":false,"pnl_cents":-25}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	// Size changed, so mtime granularity does not matter.
	later := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	second, err := src.ReadSettlements(ctx)
	require.NoError(t, err)
	require.Len(t, second, 3)
	assert.Equal(t, "BOS", second[2].City)
}

func TestFileSource_CachedWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, sampleLog)
	src := NewFileSource(path)
	ctx := context.Background()

	first, err := src.ReadSettlements(ctx)
	require.NoError(t, err)
	second, err := src.ReadSettlements(ctx)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	assert.Same(t, &first[0], &second[0], "unchanged log should be served from cache")
}

func TestReadJSONL_CountsMalformed(t *testing.T) {
	records, malformed, err := ReadJSONL(context.Background(), strings.NewReader(sampleLog))
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, malformed)
}

func TestReadJSONL_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := ReadJSONL(ctx, strings.NewReader(sampleLog))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemorySource_AppendAndCopy(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, sampleLog)
	seed, err := NewTradingDirSource(dir).ReadSettlements(context.Background())
	require.NoError(t, err)

	src := NewMemorySource(seed[0])
	src.Append(seed[1])

	records, err := src.ReadSettlements(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	records[0].City = "XXX"
	again, _ := src.ReadSettlements(context.Background())
	assert.Equal(t, "PHX", again[0].City, "callers must not be able to mutate the log")
}

func TestFileSource_OversizedLineSkipped(t *testing.T) {
	dir := t.TempDir()
	huge := `{"ts":"2026-02-12T21:05:00Z","city":"PHX","note":"` + strings.Repeat("x", 2<<20) + `"}`
	content := `{"ts":"2026-02-10T21:05:00Z","city":"SEA","won":true,"pnl_cents":60}` + "\n" +
		`{"ts":"2026-02-11T21:05:00Z","city":"DAL","won":false,"pnl_cents":-40}` + "\n" +
		huge + "\n" +
		`{"ts":"2026-02-13T21:05:00Z","city":"BOS","won":true,"pnl_cents":55}`
	writeLog(t, dir, content)

	records, err := NewTradingDirSource(dir).ReadSettlements(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3, "one oversized line must not hide the rest of the log")
	assert.Equal(t, "SEA", records[0].City)
	assert.Equal(t, "DAL", records[1].City)
	assert.Equal(t, "BOS", records[2].City, "last line without a newline is still read")

	_, malformed, err := ReadJSONL(context.Background(), strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, 1, malformed)
}
