package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ManifestName is the per-sample file mapping image filenames to text.
const ManifestName = "label.json"

const (
	SplitTrain = "train_data"
	SplitTest  = "test_data"
)

// Splits lists the dataset partitions in processing order.
var Splits = []string{SplitTrain, SplitTest}

// ErrManifest marks a manifest that exists but cannot be parsed.
var ErrManifest = errors.New("malformed manifest")

// Sample is one image on disk and its transcription.
type Sample struct {
	ImagePath string
	Label     string
}

// Locator finds the samples of one split directory.
type Locator struct {
	Dir    string
	Logger Logger
}

func NewLocator(dir string, logger Logger) *Locator {
	if logger == nil {
		logger = NopLogger
	}
	return &Locator{Dir: dir, Logger: logger}
}

// WalkManifests calls fn with the parsed manifest of every sample
// directory under the split directory, in directory name order. Sample
// directories without a manifest are skipped. A manifest that cannot be
// parsed stops the walk with an ErrManifest error naming its path.
func (l *Locator) WalkManifests(fn func(sampleDir string, labels map[string]string) error) error {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return errors.Wrapf(err, "read split directory %s", l.Dir)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sampleDir := filepath.Join(l.Dir, e.Name())
		labels, err := readManifest(filepath.Join(sampleDir, ManifestName))
		if os.IsNotExist(errors.Cause(err)) {
			l.Logger.Debugf("no %s in %s, skipping", ManifestName, sampleDir)
			continue
		} else if err != nil {
			return err
		}
		if err := fn(sampleDir, labels); err != nil {
			return err
		}
	}
	return nil
}

// Walk calls fn for every sample under the split directory. Each call to
// Walk rescans the directory. Entries whose image is missing are dropped
// with a warning.
func (l *Locator) Walk(fn func(Sample) error) error {
	return l.WalkManifests(func(sampleDir string, labels map[string]string) error {
		names := make([]string, 0, len(labels))
		for name := range labels {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			imgPath, ok := l.resolve(sampleDir, name)
			if !ok {
				continue
			}
			if err := fn(Sample{ImagePath: imgPath, Label: labels[name]}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Collect returns every sample of the split. All manifests are parsed
// before anything is returned.
func (l *Locator) Collect() ([]Sample, error) {
	var samples []Sample
	err := l.Walk(func(s Sample) error {
		samples = append(samples, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return samples, nil
}

// resolve returns the absolute path of an image named in a manifest if it
// is a regular file inside sampleDir.
func (l *Locator) resolve(sampleDir, name string) (string, bool) {
	p := filepath.Join(sampleDir, name)
	if rel, err := filepath.Rel(sampleDir, p); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		l.Logger.Warnf("%s references %q outside its sample directory, dropped", sampleDir, name)
		return "", false
	}
	fi, err := os.Stat(p)
	if err != nil {
		l.Logger.Warnf("image %s listed in manifest does not exist, dropped", p)
		return "", false
	} else if !fi.Mode().IsRegular() {
		l.Logger.Warnf("image %s listed in manifest is not a regular file, dropped", p)
		return "", false
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return p, true
}

// readManifest parses a manifest as a JSON object of string to string.
// A missing file is returned as an os.IsNotExist error.
func readManifest(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read manifest %s", path)
	}
	var labels map[string]string
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, errors.Wrapf(ErrManifest, "%s: %v", path, err)
	}
	if labels == nil {
		return nil, errors.Wrapf(ErrManifest, "%s: not a JSON object", path)
	}
	return labels, nil
}
