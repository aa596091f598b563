package main

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRawCSV(t *testing.T, path string, n int) {
	t.Helper()
	rng := rand.New(rand.NewSource(7))

	var b strings.Builder
	b.WriteString("Date,Time,CO(GT),NMHC(GT),NOx(GT),NO2(GT),T,RH,AH\n")
	for i := 0; i < n; i++ {
		h := 18 + i
		fmt.Fprintf(&b, "%02d/03/2004,%02d.00.00,%.1f,-200,%.0f,%.0f,%.1f,%.1f,%.4f\n",
			10+h/24, h%24,
			2+rng.NormFloat64()*0.5,
			160+rng.NormFloat64()*20,
			110+rng.NormFloat64()*10,
			13+rng.NormFloat64()*2,
			48+rng.NormFloat64()*5,
			0.75+rng.NormFloat64()*0.05)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), strings.Join(args, " "))
	return out.String()
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "raw.csv")
	writeRawCSV(t, input, 72)

	configFile := filepath.Join(dir, "aqguard.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(fmt.Sprintf(`
output:
  augmented_path: %s
  projection_path: %s
  sqlite_path: %s
  model_path: %s
  include_score: true
detector:
  contamination: 0.1
`,
		filepath.Join(dir, "out", "augmented.csv"),
		filepath.Join(dir, "out", "pca.csv"),
		filepath.Join(dir, "db", "aq.db"),
		filepath.Join(dir, "out", "model.gob"),
	)), 0o644))

	base := []string{"--config", configFile, "--log-level", "error"}

	out := execute(t, append([]string{"detect", "--input", input}, base...)...)
	assert.Contains(t, out, "72 rows")
	assert.FileExists(t, filepath.Join(dir, "out", "augmented.csv"))
	assert.FileExists(t, filepath.Join(dir, "out", "model.gob"))

	out = execute(t, append([]string{"project"}, base...)...)
	assert.Contains(t, out, "72 rows")
	assert.Contains(t, out, "PC1 explains")
	assert.FileExists(t, filepath.Join(dir, "out", "pca.csv"))
	assert.FileExists(t, filepath.Join(dir, "out", "pca.csv.meta"))

	out = execute(t, append([]string{"report"}, base...)...)
	assert.Contains(t, out, "Anomalies by hour")
	assert.Contains(t, out, "Anomalies by month")

	out = execute(t, append([]string{"report", "--sensor", "CO(GT)"}, base...)...)
	assert.Contains(t, out, "2004-03-10 18:00:00")

	out = execute(t, append([]string{"runs"}, base...)...)
	assert.Contains(t, out, input)

	out = execute(t, "version")
	assert.Contains(t, out, version)
}

func TestInvalidLogLevel(t *testing.T) {
	t.Cleanup(func() { logLevel = "" })

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"report", "--config=", "--log-level", "loud"})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
