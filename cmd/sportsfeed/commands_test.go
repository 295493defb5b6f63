package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"sportsfeed/internal/domain"
)

func TestPrintIngest(t *testing.T) {
	var buf bytes.Buffer

	printIngest(&buf, "videos", &domain.IngestStats{
		Listed:  3,
		New:     2,
		Skipped: 1,
		Titles:  []string{"Added: Bruins vs. Leafs", "Added: Oilers @ Kings"},
	})

	assert.Equal(t,
		"Added 2 new videos (3 listed, 1 skipped, 0 errors)\n- Bruins vs. Leafs\n- Oilers @ Kings\n",
		buf.String(),
	)
}

func TestEnqueueCmd_RejectsUnknownTask(t *testing.T) {
	cmd := enqueueCmd(&app{})

	assert.Error(t, cmd.Args(cmd, []string{"reindex"}))
	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{domain.TaskPublish}))
}

func TestSetupLogger(t *testing.T) {
	assert.True(t, setupLogger("debug").Enabled(t.Context(), -4))
	assert.False(t, setupLogger("warn").Enabled(t.Context(), 0))
}
