package usage

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner returns canned output and records the commands it was asked to run.
type fakeRunner struct {
	out   string
	err   error
	calls [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return []byte(f.out), f.err
}

const dockerSystemDF = `TYPE            TOTAL     ACTIVE    SIZE      RECLAIMABLE
Images          5         2         16GB      12GB (75%)
Containers      2         0         512MB     512MB (100%)

Local Volumes   1         0         0B        0B
Build Cache     14        0         1.5GB     1.5GB
`

const dfOutput = `Filesystem      Size  Used Avail Use% Mounted on
udev            3.9G     0  3.9G   0% /dev
tmpfs           796M  1.1M  795M   1% /run
/dev/vda1        40G   38G  2.0G  95% /
tmpfs           3.9G     0  3.9G   0% /dev/shm
`

func TestSplitColumns(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "docker row with single-space type",
			line: "Local Volumes   1         0         0B        0B",
			want: []string{"Local Volumes", "1", "0", "0B", "0B"},
		},
		{
			name: "reclaimable percentage stays attached",
			line: "Images          5         2         16GB      12GB (75%)",
			want: []string{"Images", "5", "2", "16GB", "12GB (75%)"},
		},
		{
			name: "tabs count as whitespace",
			line: "a\t\tb",
			want: []string{"a", "b"},
		},
		{
			name: "blank line",
			line: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitColumns(tt.line))
		})
	}
}

func TestParseCacheTable(t *testing.T) {
	report, err := ParseCacheTable([]byte(dockerSystemDF))
	require.NoError(t, err)

	assert.InDelta(t, 16+0.5+0+1.5, float64(report.TotalUsedGB), 1e-9)
	assert.InDelta(t, 12+0.5+0+1.5, float64(report.ReclaimableGB), 1e-9)
	require.Len(t, report.Categories, 4)
	assert.Equal(t, "Local Volumes", report.Categories[2].Type)
	assert.Equal(t, "14", report.Categories[3].Total)
}

func TestParseCacheTableMalformed(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{
			name: "missing column",
			out:  "TYPE  TOTAL  ACTIVE  SIZE  RECLAIMABLE\nImages  5  2  16GB\n",
		},
		{
			name: "extra column",
			out:  "TYPE  TOTAL  ACTIVE  SIZE  RECLAIMABLE\nImages  5  2  16GB  12GB  oops\n",
		},
		{
			name: "unparseable size",
			out:  "TYPE  TOTAL  ACTIVE  SIZE  RECLAIMABLE\nImages  5  2  lots  12GB\n",
		},
		{
			name: "no header",
			out:  "Cannot connect to the Docker daemon\n",
		},
		{
			name: "empty output",
			out:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := ParseCacheTable([]byte(tt.out))
			require.Error(t, err)
			var cerr *CollectionError
			assert.True(t, errors.As(err, &cerr), "want *CollectionError, got %T", err)
			assert.Zero(t, report.TotalUsedGB)
			assert.Zero(t, report.ReclaimableGB)
		})
	}
}

func TestCacheSource(t *testing.T) {
	runner := &fakeRunner{out: dockerSystemDF}
	src := NewCacheSource(runner)

	report, err := src.CacheUsage(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 18.0, float64(report.TotalUsedGB), 1e-9)
	assert.Equal(t, [][]string{{"docker", "system", "df"}}, runner.calls)
}

func TestCacheSourceRunFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exec: \"docker\": executable file not found in $PATH")}
	src := NewCacheSource(runner)

	_, err := src.CacheUsage(context.Background())
	var cerr *CollectionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "docker system df", cerr.Command)
	assert.Contains(t, err.Error(), "executable file not found")
}

func TestCacheSourceMalformedCarriesCommand(t *testing.T) {
	runner := &fakeRunner{out: "TYPE  TOTAL  ACTIVE  SIZE  RECLAIMABLE\nImages  5\n"}
	src := NewCacheSource(runner)

	_, err := src.CacheUsage(context.Background())
	var cerr *CollectionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "docker system df", cerr.Command)
	assert.Equal(t, "Images  5", cerr.Line)
}

func TestParseDiskTable(t *testing.T) {
	report, err := ParseDiskTable([]byte(dfOutput), "/dev/vda1")
	require.NoError(t, err)

	assert.Equal(t, "/dev/vda1", report.Device)
	assert.InDelta(t, 40.0, float64(report.TotalGB), 1e-9)
	assert.InDelta(t, 38.0, float64(report.UsedGB), 1e-9)
	assert.InDelta(t, 0.95, report.UsedFraction(), 1e-9)
	assert.InDelta(t, 2.0, float64(report.FreeGB()), 1e-9)
}

func TestParseDiskTableNotFound(t *testing.T) {
	_, err := ParseDiskTable([]byte(dfOutput), "/dev/sdz9")
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrNotFound)
	var nerr *NotFoundError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, "/dev/sdz9", nerr.Device)
}

func TestParseDiskTableMalformed(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{name: "too few columns", out: "/dev/vda1  40G\n"},
		{name: "bad size", out: "/dev/vda1  big  38G  2G  95% /\n"},
		{name: "zero size", out: "/dev/vda1  0  0  0  -  /\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDiskTable([]byte(tt.out), "/dev/vda1")
			var cerr *CollectionError
			require.True(t, errors.As(err, &cerr), "want *CollectionError, got %v", err)
			assert.False(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestDiskSource(t *testing.T) {
	runner := &fakeRunner{out: dfOutput}
	src := NewDiskSource(runner, "/dev/vda1")

	report, err := src.DiskUsage(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 40.0, float64(report.TotalGB), 1e-9)
	assert.Equal(t, [][]string{{"df", "-h"}}, runner.calls)

	src.Device = "/dev/missing"
	_, err = src.DiskUsage(context.Background())
	var nerr *NotFoundError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, "df -h", nerr.Command)
}

func TestDiskReportZero(t *testing.T) {
	var r DiskReport
	assert.Zero(t, r.UsedFraction())
	assert.Zero(t, r.FreeGB())
}

func TestStatfsSource(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" && runtime.GOOS != "freebsd" {
		t.Skip("statfs not available on " + runtime.GOOS)
	}

	src := &StatfsSource{Path: os.TempDir()}
	report, err := src.DiskUsage(context.Background())
	require.NoError(t, err)
	assert.Greater(t, float64(report.TotalGB), 0.0)
	assert.LessOrEqual(t, float64(report.UsedGB), float64(report.TotalGB))

	src.Path = "/definitely/not/a/real/path"
	_, err = src.DiskUsage(context.Background())
	var cerr *CollectionError
	assert.True(t, errors.As(err, &cerr))
	assert.True(t, strings.HasPrefix(cerr.Command, "statfs "))
}

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	out, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "printf hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))

	_, err = ExecRunner{}.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
