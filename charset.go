package main

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// CollectCharset returns every distinct character used by any label of
// any split under rootDir, sorted by code point, newline excluded. Labels
// count even when their image is missing. Splits that do not exist are
// ignored.
func CollectCharset(rootDir string, logger Logger) ([]rune, error) {
	if logger == nil {
		logger = NopLogger
	}
	set := make(map[rune]struct{})
	for _, split := range Splits {
		dir := filepath.Join(rootDir, split)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		logger.Infof("scanning %s ...", dir)
		err := NewLocator(dir, logger).WalkManifests(func(_ string, labels map[string]string) error {
			for _, text := range labels {
				for _, r := range text {
					set[r] = struct{}{}
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	delete(set, '\n')

	chars := make([]rune, 0, len(set))
	for r := range set {
		chars = append(chars, r)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })
	return chars, nil
}

// WriteCharset writes one character per line to path, creating parent
// directories as needed.
func WriteCharset(path string, chars []rune) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	for _, r := range chars {
		bw.WriteRune(r)
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}
