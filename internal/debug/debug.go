package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SaveQuery persists a generated SQL query and its bound arguments under dir
// for troubleshooting. Arguments are written as a comment block, never
// spliced into the SQL text.
func SaveQuery(dir, name, query string, args []interface{}) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create debug directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("-- generated " + time.Now().Format(time.RFC3339) + "\n")
	for i, arg := range args {
		fmt.Fprintf(&b, "-- $%d = %v\n", i+1, arg)
	}
	b.WriteString(query)
	if !strings.HasSuffix(query, "\n") {
		b.WriteString("\n")
	}

	path := filepath.Join(dir, name+".sql")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write debug query: %w", err)
	}
	return nil
}

// Timing measures a bounded unit of work. Call the returned func when the
// unit completes; it reports the elapsed time through report.
func Timing(operation string, report func(format string, args ...interface{})) func() {
	start := time.Now()
	return func() {
		report("%s took %v", operation, time.Since(start).Round(time.Millisecond))
	}
}
