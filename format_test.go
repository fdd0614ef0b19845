package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.bytes))
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()

	sameYear := time.Date(now.Year(), 3, 5, 14, 30, 0, 0, time.Local)
	assert.Equal(t, "Mar  5 14:30", formatTime(sameYear))

	oldYear := time.Date(2019, 3, 5, 14, 30, 0, 0, time.Local)
	assert.Equal(t, "Mar  5  2019", formatTime(oldYear))
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	printTable(&buf,
		[]string{"ID", "NAME"},
		[][]string{
			{"1", "short"},
			{"42", "a-much-longer-name"},
		})

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	assert.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "ID")
	assert.Contains(t, string(lines[2]), "a-much-longer-name")

	// Columns align: every line starts its NAME column at the same offset.
	assert.Equal(t, string(lines[1][4:9]), "short")
}

func TestParseFileIDs(t *testing.T) {
	ids, err := parseFileIDs([]string{"1", "42", "7"})
	assert.NoError(t, err)
	assert.Equal(t, []int64{1, 42, 7}, ids)

	_, err = parseFileIDs([]string{"1", "abc"})
	assert.Error(t, err)
}

func TestDownloadTarget(t *testing.T) {
	assert.Equal(t, "file-7", downloadTarget("", 7, false))
	assert.Equal(t, "out.bin", downloadTarget("out.bin", 7, false))
	assert.Equal(t, "dir/file-7", downloadTarget("dir", 7, true))
}
