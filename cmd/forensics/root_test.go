package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 10), uint8(y * 10), uint8(x * y), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestAnalyze_JSONOutput(t *testing.T) {
	dir := t.TempDir()
	first := writePNG(t, dir, "a.png")
	second := writePNG(t, dir, "b.png")

	out, _, err := execute(t, "analyze", "--json", "--parallel=false", first, second)
	require.NoError(t, err)

	scanner := bufio.NewScanner(bytes.NewBufferString(out))
	var reports []fileReport
	for scanner.Scan() {
		var r fileReport
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		reports = append(reports, r)
	}
	require.Len(t, reports, 2)
	assert.Equal(t, first, reports[0].File)
	assert.Equal(t, second, reports[1].File)
	assert.Equal(t, "png", reports[0].Format)
	assert.Equal(t, "file", reports[0].Source)
	assert.Len(t, reports[0].Signals, 4)
	assert.Equal(t, reports[0].TamperingScore, reports[1].TamperingScore)
}

func TestAnalyze_TextOutput(t *testing.T) {
	path := writePNG(t, t.TempDir(), "photo.png")

	out, _, err := execute(t, "analyze", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.Contains(t, out, "score:")
	assert.Contains(t, out, "recommendation:")
}

func TestAnalyze_FailuresAreCounted(t *testing.T) {
	dir := t.TempDir()
	good := writePNG(t, dir, "good.png")
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))

	out, errOut, err := execute(t, "analyze", "--json", good, bad, filepath.Join(dir, "missing.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3")
	assert.Contains(t, out, good)
	assert.Contains(t, errOut, "Failed to")
}

func TestAnalyze_FlagOverrides(t *testing.T) {
	path := writePNG(t, t.TempDir(), "photo.png")

	// a review cut point above the high-priority one is rejected before any file is read
	_, _, err := execute(t, "analyze", "--review-cut-point", "0.9", "--high-priority-cut-point", "0.5", path)
	assert.ErrorContains(t, err, "invalid analysis options")

	_, _, err = execute(t, "analyze", "--ela-quality", "150", path)
	assert.ErrorContains(t, err, "invalid analysis options")

	// every score is auto-approved when both cut points sit at the top
	out, _, err := execute(t, "analyze", "--json", "--review-cut-point", "1", "--high-priority-cut-point", "1", path)
	require.NoError(t, err)
	var r fileReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	if r.TamperingScore < 1 {
		assert.Equal(t, "auto_approve_ok", r.Recommendation)
	}
}

func TestAnalyze_SizeLimit(t *testing.T) {
	path := writePNG(t, t.TempDir(), "photo.png")

	_, errOut, err := execute(t, "analyze", "--max-bytes", "16", path)
	assert.Error(t, err)
	assert.Contains(t, errOut, "Failed to read image")
}

func TestAnalyze_RequiresFile(t *testing.T) {
	_, _, err := execute(t, "analyze")
	assert.Error(t, err)
}
