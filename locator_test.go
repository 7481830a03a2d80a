package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestLocator_Collect(t *testing.T) {
	split := t.TempDir()
	img := pngBytes(t, 8, 4)
	writeSample(t, split, "a", map[string]string{"1.png": "một", "2.png": "hai"}, map[string][]byte{"1.png": img, "2.png": img})
	writeSample(t, split, "b", map[string]string{"x.png": "ba"}, map[string][]byte{"x.png": img})
	// Stray files next to sample directories are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(split, "README"), []byte("hi"), 0644))

	samples, err := NewLocator(split, nil).Collect()
	require.NoError(t, err)
	require.Len(t, samples, 3)

	got := make(map[string]string)
	for _, s := range samples {
		require.True(t, filepath.IsAbs(s.ImagePath))
		got[filepath.Base(filepath.Dir(s.ImagePath))+"/"+filepath.Base(s.ImagePath)] = s.Label
	}
	require.Equal(t, map[string]string{"a/1.png": "một", "a/2.png": "hai", "b/x.png": "ba"}, got)
}

func TestLocator_SkipsDirectoryWithoutManifest(t *testing.T) {
	split := t.TempDir()
	writeSample(t, split, "nolabels", nil, map[string][]byte{"1.png": pngBytes(t, 2, 2)})
	writeSample(t, split, "ok", map[string]string{"1.png": "x"}, map[string][]byte{"1.png": pngBytes(t, 2, 2)})

	samples, err := NewLocator(split, nil).Collect()
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.Equal(t, "x", samples[0].Label)
}

func TestLocator_DropsMissingImage(t *testing.T) {
	split := t.TempDir()
	writeSample(t, split, "s", map[string]string{"here.png": "kept", "gone.png": "dropped"},
		map[string][]byte{"here.png": pngBytes(t, 2, 2)})

	samples, err := NewLocator(split, nil).Collect()
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.Equal(t, "kept", samples[0].Label)
}

func TestLocator_DropsImageOutsideSample(t *testing.T) {
	split := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(split, "outside.png"), pngBytes(t, 2, 2), 0644))
	writeSample(t, split, "s", map[string]string{"../outside.png": "escape", "in.png": "in"},
		map[string][]byte{"in.png": pngBytes(t, 2, 2)})

	samples, err := NewLocator(split, nil).Collect()
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.Equal(t, "in", samples[0].Label)
}

func TestLocator_DropsDirectoryNamedAsImage(t *testing.T) {
	split := t.TempDir()
	dir := writeSample(t, split, "s", map[string]string{"sub": "dir"}, nil)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	samples, err := NewLocator(split, nil).Collect()
	require.NoError(t, err)
	require.Empty(t, samples)
}

func TestLocator_MalformedManifest(t *testing.T) {
	for name, content := range map[string]string{
		"syntax":     `{"1.png": "unterminated`,
		"array":      `["1.png"]`,
		"non-string": `{"1.png": 42}`,
		"null":       `null`,
	} {
		t.Run(name, func(t *testing.T) {
			split := t.TempDir()
			dir := writeSample(t, split, "bad", nil, map[string][]byte{"1.png": pngBytes(t, 2, 2)})
			manifest := filepath.Join(dir, ManifestName)
			require.NoError(t, os.WriteFile(manifest, []byte(content), 0644))

			_, err := NewLocator(split, nil).Collect()
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrManifest))
			require.Contains(t, err.Error(), manifest)
		})
	}
}

func TestLocator_MissingSplitDirectory(t *testing.T) {
	_, err := NewLocator(filepath.Join(t.TempDir(), "nope"), nil).Collect()
	require.Error(t, err)
	require.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestLocator_WalkIsRestartable(t *testing.T) {
	split := t.TempDir()
	writeSample(t, split, "a", map[string]string{"1.png": "x"}, map[string][]byte{"1.png": pngBytes(t, 2, 2)})
	l := NewLocator(split, nil)

	count := func() int {
		n := 0
		require.NoError(t, l.Walk(func(Sample) error { n++; return nil }))
		return n
	}
	require.Equal(t, 1, count())

	writeSample(t, split, "b", map[string]string{"1.png": "y"}, map[string][]byte{"1.png": pngBytes(t, 2, 2)})
	require.Equal(t, 2, count())
}

func TestLocator_WalkStopsOnCallbackError(t *testing.T) {
	split := t.TempDir()
	writeSample(t, split, "a", map[string]string{"1.png": "x", "2.png": "y"},
		map[string][]byte{"1.png": pngBytes(t, 2, 2), "2.png": pngBytes(t, 2, 2)})

	stop := errors.New("stop")
	calls := 0
	err := NewLocator(split, nil).Walk(func(Sample) error {
		calls++
		return stop
	})
	require.Equal(t, stop, err)
	require.Equal(t, 1, calls)
}
