package main

import (
	"context"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

const (
	// DefaultMapSize is the capacity hint handed to a new store (1 TiB).
	DefaultMapSize int64 = 1 << 40

	// DefaultFlushEvery is the number of accepted records per commit.
	DefaultFlushEvery = 1000
)

// Converter turns one split directory into a store of sequentially keyed
// records. A Converter holds no state between runs.
type Converter struct {
	// Backend names the Datastore implementation.
	Backend string

	// MapSize is the store capacity hint.
	MapSize int64

	// FlushEvery is the number of accepted records staged between commits.
	FlushEvery int

	// CheckValid enables the image gate.
	CheckValid bool

	// Fresh clears an existing store before writing.
	Fresh bool

	Logger  Logger
	Metrics *Metrics

	// Test hooks.
	validate  func([]byte) bool
	openStore func(backend string) (Datastore, error)
}

func NewConverter() *Converter {
	return &Converter{
		Backend:    BackendBolt,
		MapSize:    DefaultMapSize,
		FlushEvery: DefaultFlushEvery,
		CheckValid: true,
		Logger:     NopLogger,
	}
}

// Convert writes every accepted sample of splitDir into the store at
// storePath and returns the number of accepted records, which is also the
// value stored under NumSamplesKey.
//
// All manifests are parsed before the store is opened, so a malformed
// manifest leaves no trace in the store. Once writing has started a fatal
// error stops the run; batches committed before it remain in the store but
// the summary record is not written.
func (c *Converter) Convert(ctx context.Context, splitDir, storePath string) (int, error) {
	logger := c.Logger
	if logger == nil {
		logger = NopLogger
	}
	validate := c.validate
	if validate == nil {
		validate = CheckImageIsValid
	}
	flushEvery := c.FlushEvery
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}

	logger.Infof("scanning %s ...", splitDir)
	samples, err := NewLocator(splitDir, logger).Collect()
	if err != nil {
		return 0, err
	}
	logger.Infof("found %s samples in %s", humanize.Comma(int64(len(samples))), splitDir)
	if c.Metrics != nil {
		c.Metrics.SamplesFound.Add(float64(len(samples)))
	}

	openStore := c.openStore
	if openStore == nil {
		openStore = NewDatastore
	}
	store, err := openStore(c.Backend)
	if err != nil {
		return 0, err
	}
	if err := store.Initialize(storePath, c.MapSize); err != nil {
		return 0, errors.Wrapf(err, "open store %s", storePath)
	}
	defer store.Close()
	if c.Fresh {
		if err := store.Clear(); err != nil {
			return 0, errors.Wrapf(err, "clear store %s", storePath)
		}
	}

	w := NewWriter(store)
	flush := func() error {
		start := time.Now()
		if err := w.Flush(); err != nil {
			return errors.Wrapf(err, "commit to %s", storePath)
		}
		c.observeFlush(start)
		return nil
	}

	cnt := 1
	sinceFlush := 0
	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			logger.Warnf("interrupted with %d staged records not written", sinceFlush)
			return 0, err
		}

		imageBin, err := os.ReadFile(s.ImagePath)
		if err != nil {
			return 0, errors.Wrapf(err, "read image %s", s.ImagePath)
		}

		if c.CheckValid && !validate(imageBin) {
			logger.Warnf("%s is not a valid image, skipped", s.ImagePath)
			if c.Metrics != nil {
				c.Metrics.RecordsSkipped.WithLabelValues("invalid_image").Inc()
			}
			continue
		}

		w.Stage(ImageKey(cnt), imageBin)
		w.Stage(LabelKey(cnt), []byte(s.Label))
		if c.Metrics != nil {
			c.Metrics.RecordsAccepted.Inc()
		}
		sinceFlush++

		if sinceFlush >= flushEvery {
			if err := flush(); err != nil {
				return 0, err
			}
			sinceFlush = 0
			logger.Infof("written %s / %s", humanize.Comma(int64(cnt)), humanize.Comma(int64(len(samples))))
		}
		cnt++
	}

	start := time.Now()
	if err := w.Finalize(cnt - 1); err != nil {
		return 0, errors.Wrapf(err, "finalize %s", storePath)
	}
	c.observeFlush(start)
	logger.Infof("created dataset with %s samples (%s found) at %s",
		humanize.Comma(int64(cnt-1)), humanize.Comma(int64(len(samples))), storePath)
	return cnt - 1, nil
}

func (c *Converter) observeFlush(start time.Time) {
	if c.Metrics == nil {
		return
	}
	c.Metrics.Flushes.Inc()
	c.Metrics.FlushDuration.Observe(time.Since(start).Seconds())
}
