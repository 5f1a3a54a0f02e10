package taskfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoreminder/internal/grammar"
)

var parser = grammar.MustNew()

func scan(t *testing.T, text string, now time.Time) []Entry {
	t.Helper()
	entries, err := ScanAll(strings.NewReader(text), parser, now)
	require.NoError(t, err)
	return entries
}

func TestScannerClassifies(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	text := strings.Join([]string{
		"plain text [remind me in 1 seconds]\n",
		"* no annotation\n",
		"  * indented [remind me in 5 m]\n",
		"* done [!1600000000:remind me in 2 hours]\n",
		"* stamped [^1700003600:remind me in 2 hours]\n",
		"* broken [remind me at five]\n",
		Separator + "\n",
		"* after [remind me in 1 seconds]\n",
		"tail without newline",
	}, "")

	entries := scan(t, text, now)
	require.Len(t, entries, 9)

	kinds := make([]Kind, len(entries))
	for i, e := range entries {
		kinds[i] = e.Kind
		assert.Equal(t, i+1, e.LineNo)
	}
	assert.Equal(t, []Kind{Plain, Plain, Unresolved, Fired, Resolved, Invalid, Plain, Plain, Plain}, kinds)

	assert.True(t, entries[2].IsNew)
	assert.Equal(t, now.Add(5*time.Minute).Unix(), entries[2].At.Unix())

	assert.False(t, entries[4].IsNew)
	assert.Equal(t, int64(1700003600), entries[4].At.Unix())

	require.NotNil(t, entries[5].Err)
	assert.Equal(t, 6, entries[5].Err.Line)

	assert.True(t, entries[5].InSection)
	assert.False(t, entries[6].InSection, "separator ends the section")
	assert.False(t, entries[7].InSection)
	assert.Equal(t, "tail without newline", entries[8].Text)

	var rebuilt strings.Builder
	for _, e := range entries {
		rebuilt.WriteString(e.Text)
	}
	assert.Equal(t, text, rebuilt.String(), "lines must pass through byte for byte")
}

func TestScannerSeparatorNeedsFiftyDashes(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("-", 49) + "\n* x [remind me in 1 s]\n"
	entries := scan(t, text, time.Now())
	require.Len(t, entries, 2)
	assert.Equal(t, Unresolved, entries[1].Kind)
}

func TestStampThenRescanIsIdempotent(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	entries := scan(t, "* task [remind me in 1 seconds]\n", now)
	require.Len(t, entries, 1)
	require.True(t, entries[0].IsNew)

	stamped := Stamp(entries[0].Text, entries[0].At)
	assert.Equal(t, "* task [^1700000001:remind me in 1 seconds]\n", stamped)

	later := scan(t, stamped, now.Add(time.Hour))
	require.Len(t, later, 1)
	assert.False(t, later[0].IsNew)
	assert.Equal(t, Resolved, later[0].Kind)
	assert.Equal(t, int64(1700000001), later[0].At.Unix())
}

func TestStampOnlyTouchesAnnotation(t *testing.T) {
	t.Parallel()
	line := "* remind me to call [ remind me tomorrow] ok\n"
	got := Stamp(line, time.Unix(42, 0))
	assert.Equal(t, "* remind me to call [ ^42:remind me tomorrow] ok\n", got)

	e := scan(t, got, time.Now())
	require.Len(t, e, 1)
	assert.Equal(t, Resolved, e[0].Kind)
}

func TestMarkFired(t *testing.T) {
	t.Parallel()
	got, ok := MarkFired("* task [^1700000001:remind me in 1 seconds]\n")
	require.True(t, ok)
	assert.Equal(t, "* task [!1700000001:remind me in 1 seconds]\n", got)

	entries := scan(t, got, time.Now())
	assert.Equal(t, Fired, entries[0].Kind)

	for _, line := range []string{
		"* task [remind me in 1 seconds]\n",
		"* task [!1:remind me in 1 seconds]\n",
		"* task\n",
		"plain ^ text\n",
	} {
		out, ok := MarkFired(line)
		assert.False(t, ok, line)
		assert.Equal(t, line, out)
	}
}

func TestAnnotationBalanced(t *testing.T) {
	t.Parallel()
	body, ok := Annotation("* a [remind [me] tomorrow] b [c]\n")
	require.True(t, ok)
	assert.Equal(t, "remind [me] tomorrow", body)

	body, ok = Annotation("* a [remind me tomorrow\n")
	require.True(t, ok)
	assert.Equal(t, "remind me tomorrow", body)

	_, ok = Annotation("* nothing here\n")
	assert.False(t, ok)
}

func TestStripNestedBrackets(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"do [x] thing [[y]] now":   "do  thing  now",
		"no brackets":              "no brackets",
		"stray ] close":            "stray  close",
		"[all gone]":               "",
		"open [never closed":       "open ",
		"a ]] b [c] d":             "a  b  d",
		"ünïcode [ß] stays":        "ünïcode  stays",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripNestedBrackets(in), in)
	}
}

func TestNotificationBody(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "task ", NotificationBody("* task [^1700000001:remind me in 1 seconds]\n"))
	assert.Equal(t, "call mom ", NotificationBody("   *   call mom [!1:remind me tomorrow]\r\n"))
}

func TestCopyWriterKeepsInode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "todo.txt")
	require.NoError(t, os.WriteFile(path, []byte("old contents that are longer\n"), 0o644))

	before, err := os.Stat(path)
	require.NoError(t, err)

	lines := []string{"* a\n", "* b [^1:remind me in 1 s]\n", "tail"}
	require.NoError(t, CopyWriter{}.WriteLines(path, lines))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "* a\n* b [^1:remind me in 1 s]\ntail", string(got))

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, os.SameFile(before, after), "task file must be rewritten in place")

	leftovers, err := filepath.Glob(filepath.Join(dir, ".todo.txt.*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSplitLines(t *testing.T) {
	t.Parallel()
	assert.Nil(t, SplitLines(""))
	assert.Equal(t, []string{"a\n", "b\n"}, SplitLines("a\nb\n"))
	assert.Equal(t, []string{"a\n", "b"}, SplitLines("a\nb"))
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "todo.txt")
	content := "* ok [remind me tomorrow]\n* bad [remind me whenever]\n" + Separator + "\n* ignored [nonsense]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	bad, err := Verify(path, parser, time.Now())
	require.NoError(t, err)
	require.Len(t, bad, 1)
	assert.Equal(t, 2, bad[0].LineNo)

	msg := FormatError(path, bad[0])
	assert.True(t, strings.HasPrefix(msg, path+":2 in line * bad [remind me whenever] ERROR line 2"), msg)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(after), "verify must not touch the file")
}

func TestScannerOutOfRangeDurationIsInvalid(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	entries := scan(t, "* far [remind me in 110000 days]\n* too far [remind me in 1000000000 days]\n", now)
	require.Len(t, entries, 2)

	assert.Equal(t, Unresolved, entries[0].Kind)
	assert.True(t, entries[0].At.After(now))
	assert.Equal(t, now.Unix()+110000*86400, entries[0].At.Unix())

	assert.Equal(t, Invalid, entries[1].Kind)
	require.NotNil(t, entries[1].Err)
	assert.Equal(t, 2, entries[1].Err.Line)
	assert.Contains(t, entries[1].Err.Msg, "out of range")
	assert.False(t, entries[1].Schedulable())
}
