package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/order-ocr/internal/domain"
)

type fakeProvider struct {
	name     string
	unavail  error
	pages    int
	extra    int
	rendered int
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Available() error { return f.unavail }

func (f *fakeProvider) Render(_ context.Context, _, outputDir string) ([]string, int, error) {
	f.rendered++
	var paths []string
	for i := 1; i <= f.pages+f.extra; i++ {
		p := filepath.Join(outputDir, fmt.Sprintf("page_%d.png", i))
		if err := os.WriteFile(p, []byte("img"), 0o644); err != nil {
			return nil, 0, err
		}
		paths = append(paths, p)
	}
	return paths, f.pages, nil
}

func TestNewConverter_SelectsFirstAvailable(t *testing.T) {
	first := &fakeProvider{name: "first", unavail: errors.New("missing")}
	second := &fakeProvider{name: "second", pages: 2}
	third := &fakeProvider{name: "third", pages: 2}

	conv, err := NewConverter(nil, first, second, third)
	require.NoError(t, err)
	assert.Equal(t, "second", conv.Backend())

	paths, count, err := conv.Rasterize(context.Background(), "in.pdf", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, paths, 2)
	assert.Equal(t, 1, second.rendered)
	assert.Zero(t, third.rendered)
}

func TestNewConverter_NoneAvailable(t *testing.T) {
	_, err := NewConverter(nil,
		&fakeProvider{name: "mupdf", unavail: errors.New("library missing")},
		&fakeProvider{name: "poppler", unavail: errors.New("pdftoppm missing")},
	)

	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "mupdf: library missing")
	assert.Contains(t, err.Error(), "poppler: pdftoppm missing")
}

func TestNewConverter_EmptyList(t *testing.T) {
	_, err := NewConverter(nil)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestRasterize_CountMismatch(t *testing.T) {
	conv, err := NewConverter(nil, &fakeProvider{name: "short", pages: 2, extra: 1})
	require.NoError(t, err)

	_, _, err = conv.Rasterize(context.Background(), "in.pdf", t.TempDir())
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConversion))
}

func TestRasterize_NoPages(t *testing.T) {
	conv, err := NewConverter(nil, &fakeProvider{name: "empty"})
	require.NoError(t, err)

	_, _, err = conv.Rasterize(context.Background(), "in.pdf", t.TempDir())
	assert.True(t, domain.IsType(err, domain.ErrorTypeConversion))
}

func TestProvidersFor(t *testing.T) {
	auto, err := ProvidersFor("auto", 300)
	require.NoError(t, err)
	require.Len(t, auto, 2)
	assert.Equal(t, "mupdf", auto[0].Name())
	assert.Equal(t, "poppler", auto[1].Name())

	single, err := ProvidersFor("poppler", 0)
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, DefaultDPI, single[0].(*PopplerProvider).dpi)

	_, err = ProvidersFor("ghostscript", 300)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestPopplerProvider_UnavailableNamesRemedy(t *testing.T) {
	p := NewPopplerProvider(300)
	p.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	err := p.Available()
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeEnvironment))
	assert.Contains(t, err.Error(), "poppler")
	assert.Contains(t, err.Error(), "brew install poppler")
	assert.Contains(t, err.Error(), "apt-get install poppler-utils")

	statuses := Probe(p, NewMuPDFProvider(300))
	require.Len(t, statuses, 2)
	assert.False(t, statuses[0].Available)
	assert.True(t, statuses[1].Available)
}

func TestPopplerProvider_RenderWithFakeBinary(t *testing.T) {
	p := NewPopplerProvider(150)
	p.lookPath = func(string) (string, error) { return "pdftoppm", nil }
	p.countPages = func(string) (int, error) { return 3, nil }

	var gotArgs []string
	p.command = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotArgs = args
		prefix := args[len(args)-1]
		for _, n := range []string{"01", "02", "03"} {
			require.NoError(t, os.WriteFile(prefix+"-"+n+".png", []byte("img"), 0o644))
		}
		return exec.CommandContext(ctx, os.Args[0], "-test.run=^$")
	}

	dir := t.TempDir()
	paths, count, err := p.Render(context.Background(), "order.pdf", dir)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, []string{
		filepath.Join(dir, "page_1.png"),
		filepath.Join(dir, "page_2.png"),
		filepath.Join(dir, "page_3.png"),
	}, paths)
	assert.Equal(t, []string{"-r", "150", "-png", "order.pdf", filepath.Join(dir, "page")}, gotArgs)
}

func TestCollectPages_NumericOrder(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"10", "2", "1"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "page-"+n+".png"), nil, 0o644))
	}

	paths, err := collectPages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "page_1.png"),
		filepath.Join(dir, "page_2.png"),
		filepath.Join(dir, "page_10.png"),
	}, paths)
}
