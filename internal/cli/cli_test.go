package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mq "github.com/devlog-hq/devlog/internal/infra/queue"
	"github.com/devlog-hq/devlog/internal/modules/repo"
	"github.com/devlog-hq/devlog/internal/modules/service"
)

func TestRootCmd_Tree(t *testing.T) {
	root := NewRootCmd("1.2.3")

	for _, path := range [][]string{
		{"serve"},
		{"migrate", "credentials"},
		{"migrate", "verify"},
		{"seed", "forums"},
		{"export"},
		{"activity", "watch"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	creds, _, err := root.Find([]string{"migrate", "credentials"})
	require.NoError(t, err)
	assert.NotNil(t, creds.Flags().Lookup("clear-api-keys"))
	assert.NotNil(t, creds.Flags().Lookup("yes"))
}

func TestRootCmd_Version(t *testing.T) {
	root := NewRootCmd("1.2.3")
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "devlog version 1.2.3\n", out.String())
}

func TestExportCmd_RejectsBadInputBeforeConnecting(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown format", []string{"export", "alice", "--format", "xml"}, `unsupported format "xml"`},
		{"bad tag", []string{"export", "not a tag"}, "developer tag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := NewRootCmd("dev")
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs(tt.args)
			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWriteSnapshot(t *testing.T) {
	snap := &service.ExportSnapshot{
		Profile: service.ExportProfile{DeveloperTag: "alice"},
		Entries: []service.ExportEntry{{ID: 1, Title: "Fix parser"}},
	}

	var js bytes.Buffer
	require.NoError(t, writeSnapshot(&js, snap, "json"))
	assert.Contains(t, js.String(), `"developer_tag": "alice"`)
	assert.True(t, bytes.HasSuffix(js.Bytes(), []byte("\n")))

	var ym bytes.Buffer
	require.NoError(t, writeSnapshot(&ym, snap, "yaml"))
	assert.Contains(t, ym.String(), "developer_tag: alice")
	assert.Contains(t, ym.String(), "title: Fix parser")
}

func TestPrintReportAndVerification(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, &service.MigrationReport{Scanned: 3, EmailsMigrated: 2, APIKeysSkipped: 1})
	assert.Contains(t, out.String(), "emails migrated:    2")
	assert.Contains(t, out.String(), "--clear-api-keys")

	out.Reset()
	printVerification(&out, &service.MigrationVerification{
		MigrationCounts: repo.MigrationCounts{TotalUsers: 3, PlaintextAPIKeys: 1},
	})
	assert.Contains(t, out.String(), "plaintext api keys: 1")
	assert.Contains(t, out.String(), "incomplete")
}

func TestFormatEvent(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	got := formatEvent(mq.ActivityEvent{Type: mq.ActivityEntryCreated, Actor: "alice", Project: "devlog", EntryID: 7, At: at})
	assert.Equal(t, "2024-03-01T09:30:00Z entry.created      actor=alice project=devlog entry=7", got)

	got = formatEvent(mq.ActivityEvent{Type: mq.ActivityReplyCreated, Actor: "bob", TopicID: 3, At: at})
	assert.Equal(t, "2024-03-01T09:30:00Z forum.reply.created actor=bob topic=3", got)
}
