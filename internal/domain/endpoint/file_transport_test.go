package endpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meddatabridge/pam-bridge/internal/domain/inbound"
)

func TestFileOutbox_WritesNamedByControlID(t *testing.T) {
	dir := t.TempDir()
	o := newFileOutbox(&Endpoint{OutboxPath: dir})

	result, err := o.write("CTRL42", []byte("MSH|...|"))
	require.NoError(t, err)
	assert.True(t, result.Success)

	data, err := os.ReadFile(filepath.Join(dir, "CTRL42.hl7"))
	require.NoError(t, err)
	assert.Equal(t, "MSH|...|", string(data))
}

func TestFilePoller_ProcessOne_ClaimsAndMarksDone(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "inbound1.hl7")
	require.NoError(t, os.WriteFile(src, []byte("not a real hl7 message"), 0o644))

	pipeline := &inbound.Pipeline{}
	ep := &Endpoint{ID: uuid.New(), InboxPath: dir, FileGlob: "*.hl7"}
	poller := newFilePoller(ep, pipeline, zerolog.Nop())

	poller.processOne(src)

	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err), "original file should have been renamed away")
	_, err = os.Stat(src + ".done")
	assert.NoError(t, err, "claimed file should be marked .done since the pipeline ACKs even malformed input")
}

func TestFilePoller_ProcessOne_SecondClaimIsNoOp(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "inbound2.hl7")
	require.NoError(t, os.WriteFile(src, []byte("garbage"), 0o644))

	pipeline := &inbound.Pipeline{}
	ep := &Endpoint{ID: uuid.New(), InboxPath: dir}
	poller := newFilePoller(ep, pipeline, zerolog.Nop())

	poller.processOne(src)
	// A second poll tick over the same original path finds nothing to
	// rename (the file already moved to .done) and must not panic or
	// reprocess it.
	poller.processOne(src)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "inbound2.hl7.done", entries[0].Name())
}

func TestFilePoller_PollOnce_GlobMatchesConfiguredPattern(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hl7"), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("garbage"), 0o644))

	pipeline := &inbound.Pipeline{}
	ep := &Endpoint{ID: uuid.New(), InboxPath: dir, FileGlob: "*.hl7"}
	poller := newFilePoller(ep, pipeline, zerolog.Nop())

	poller.pollOnce()

	_, err := os.Stat(filepath.Join(dir, "a.hl7.done"))
	assert.NoError(t, err, "the .hl7 file should have been claimed and processed")
	_, err = os.Stat(filepath.Join(dir, "b.txt"))
	assert.NoError(t, err, "the non-matching .txt file should be untouched")
}
