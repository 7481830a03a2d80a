package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// testMapSize keeps test stores small.
const testMapSize = 64 << 20

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.SetGray(x, x%h, color.Gray{Y: 200})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// writeSample creates splitDir/id with a label.json mapping and the given
// image files. A nil labels map writes no manifest.
func writeSample(t *testing.T, splitDir, id string, labels map[string]string, images map[string][]byte) string {
	t.Helper()
	dir := filepath.Join(splitDir, id)
	require.NoError(t, os.MkdirAll(dir, 0755))
	if labels != nil {
		data, err := json.Marshal(labels)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), data, 0644))
	}
	for name, data := range images {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}
	return dir
}

func openBolt(t *testing.T, path string) *BoltStore {
	t.Helper()
	s := &BoltStore{}
	require.NoError(t, s.Initialize(path, testMapSize))
	t.Cleanup(func() { s.Close() })
	return s
}

// dumpStore returns every entry of s.
func dumpStore(t *testing.T, s Datastore) map[string]string {
	t.Helper()
	m := make(map[string]string)
	require.NoError(t, s.Scan(func(k string, v []byte) error {
		m[k] = string(v)
		return nil
	}))
	return m
}

// memStore is an in-memory Datastore that can be told to fail commits.
type memStore struct {
	data    map[string][]byte
	commits int
	failAt  int // 1-based commit number that fails; 0 never fails
	err     error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Initialize(path string, mapSize int64) error { return nil }
func (m *memStore) Close() error                                { return nil }

func (m *memStore) WriteBatch(batch map[string][]byte) error {
	m.commits++
	if m.failAt > 0 && m.commits == m.failAt {
		return m.err
	}
	for k, v := range batch {
		m.data[k] = v
	}
	return nil
}

func (m *memStore) Get(key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Scan(fn func(key string, value []byte) error) error {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k, m.data[k]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) Count() (int, error) { return len(m.data), nil }

func (m *memStore) Clear() error {
	m.data = make(map[string][]byte)
	return nil
}
