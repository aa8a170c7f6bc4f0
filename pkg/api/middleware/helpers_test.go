package middleware

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goclaw/taskflow/pkg/logger"
)

// captureLog returns a debug level JSON logger writing to a temp file and a
// func that reads back every entry written so far.
func captureLog(t *testing.T) (logger.Logger, func() []map[string]any) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "middleware.log")
	log := logger.New(&logger.Config{Level: logger.DebugLevel, Format: "json", Output: path})
	t.Cleanup(func() { _ = log.Close() })

	return log, func() []map[string]any {
		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()

		var entries []map[string]any
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			var entry map[string]any
			require.NoError(t, json.Unmarshal(sc.Bytes(), &entry), sc.Text())
			entries = append(entries, entry)
		}
		require.NoError(t, sc.Err())
		return entries
	}
}
