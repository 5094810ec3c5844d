package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/docktool/pkg/docktool/cleaner"
	"github.com/jamesainslie/docktool/pkg/docktool/usage"
)

func sampleResult() *Result {
	cache := &usage.CacheReport{
		TotalUsedGB:   12.5,
		ReclaimableGB: 4,
		Categories: []usage.Category{
			{Type: "Images", Total: "12", Active: "3", SizeGB: 8, ReclaimableGB: 2},
			{Type: "Build Cache", Total: "40", Active: "0", SizeGB: 4.5, ReclaimableGB: 2},
		},
	}
	disk := usage.DiskReport{Device: "/dev/vda1", TotalGB: 100, UsedGB: 96}
	return NewResult(disk, cache, cleaner.DefaultThresholds(), time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC))
}

func TestNewResult(t *testing.T) {
	r := sampleResult()

	assert.Equal(t, cleaner.LevelWarning, r.Level)
	assert.InDelta(t, 96.0, r.UsedPercent(), 1e-9)
}

type mockFormatter struct {
	output string
}

func (m *mockFormatter) Format(w *bytes.Buffer, _ *Result) error {
	w.WriteString(m.output)
	return nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	registry.Register("mock", func() Formatter {
		return &mockFormatter{output: "mocked"}
	})

	formatter, err := registry.Get("mock")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, formatter.Format(&buf, &Result{}))
	assert.Equal(t, "mocked", buf.String())
}

func TestRegistry_GetUnknown(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get("nonexistent")
	require.ErrorIs(t, err, ErrUnknownFormat)
	assert.Contains(t, err.Error(), "nonexistent")
}

func TestRegistry_Available_Sorted(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"zebra", "alpha", "mango"} {
		registry.Register(name, func() Formatter { return &mockFormatter{} })
	}

	assert.Equal(t, []string{"alpha", "mango", "zebra"}, registry.Available())
}

func TestGlobalRegistry(t *testing.T) {
	available := Available()
	for _, name := range []string{"json", "plain", "pretty", "template", "yaml"} {
		assert.Contains(t, available, name)
		f, err := Get(name)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, f.Format(&buf, sampleResult()), name)
		assert.NotEmpty(t, buf.String(), name)
	}
}
