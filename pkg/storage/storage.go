// Package storage checkpoints ground motion records to BadgerDB.
//
// Every owned series is stored with its parameters and its samples, so a
// restored record answers queries without integrating again.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	jsoniter "github.com/json-iterator/go"

	"github.com/vjranagit/groundmotion/pkg/integrator"
	"github.com/vjranagit/groundmotion/pkg/motion"
	"github.com/vjranagit/groundmotion/pkg/series"
)

var (
	// ErrNotFound is returned when no record is stored under a name
	ErrNotFound = errors.New("record not found")

	// ErrUnsupportedSeries is returned for series that cannot be checkpointed
	ErrUnsupportedSeries = errors.New("series type cannot be stored")

	// ErrInvalidName is returned for an empty record name
	ErrInvalidName = errors.New("record name is required")
)

// json is the payload codec
var json = jsoniter.ConfigCompatibleWithStandardLibrary

const recordPrefix = "record/"

// Store defines the contract for ground motion record persistence
type Store interface {
	// SaveRecord checkpoints a record under name, replacing any previous one
	SaveRecord(ctx context.Context, name string, labels map[string]string, rec *motion.Record) error

	// LoadRecord restores a record. opts are applied after the stored state,
	// so only WithLogger is normally useful.
	LoadRecord(ctx context.Context, name string, opts ...motion.Option) (*motion.Record, error)

	// DeleteRecord removes a record
	DeleteRecord(ctx context.Context, name string) error

	// FindRecords describes the records whose labels match every selector
	FindRecords(ctx context.Context, selectors map[string]string) ([]RecordInfo, error)

	// Close closes the storage
	Close() error
}

// RecordInfo summarizes a stored record
type RecordInfo struct {
	Name             string            `json:"name"`
	Labels           map[string]string `json:"labels,omitempty"`
	Integrator       string            `json:"integrator,omitempty"`
	IntegrationStep  float64           `json:"integration_step"`
	ScaleFactor      float64           `json:"scale_factor"`
	Duration         float64           `json:"duration"`
	PeakAcceleration float64           `json:"peak_acceleration"`
	HasAcceleration  bool              `json:"has_acceleration"`
	HasVelocity      bool              `json:"has_velocity"`
	HasDisplacement  bool              `json:"has_displacement"`
}

// Config holds storage configuration
type Config struct {
	Path             string
	CompressionLevel int
	Logger           *slog.Logger
}

// DefaultConfig returns default storage configuration
func DefaultConfig() *Config {
	return &Config{
		Path:             "./data",
		CompressionLevel: 3,
	}
}

// badgerStorage implements Store using BadgerDB
type badgerStorage struct {
	cfg        *Config
	db         *badger.DB
	index      *Index
	infos      map[string]RecordInfo
	compressor *Compressor
	logger     *slog.Logger
	mu         sync.RWMutex
}

// NewStorage opens the store and indexes the records already in it
func NewStorage(cfg *Config) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := badger.DefaultOptions(filepath.Join(cfg.Path, "badger"))
	opts.Logger = nil // Disable BadgerDB logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	compressor, err := NewCompressor(cfg.CompressionLevel)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &badgerStorage{
		cfg:        cfg,
		db:         db,
		index:      NewIndex(),
		infos:      make(map[string]RecordInfo),
		compressor: compressor,
		logger:     logger.With("component", "storage"),
	}

	if err := s.loadIndex(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	s.logger.Info("storage opened", "path", cfg.Path, "records", s.index.Count())
	return s, nil
}

// loadIndex rebuilds the label index from the stored payloads
func (s *badgerStorage) loadIndex() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), recordPrefix)

			err := item.Value(func(val []byte) error {
				var payload recordPayload
				if err := json.Unmarshal(val, &payload); err != nil {
					return err
				}
				s.index.Add(name, payload.Labels)
				s.infos[name] = payload.info(name)
				return nil
			})
			if err != nil {
				s.logger.Warn("skipping unreadable record", "name", name, "error", err)
			}
		}
		return nil
	})
}

// SaveRecord implements Store.SaveRecord
func (s *badgerStorage) SaveRecord(ctx context.Context, name string, labels map[string]string, rec *motion.Record) error {
	if name == "" {
		return ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := s.encodeRecord(labels, rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %q: %w", name, err)
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(name), payloadBytes)
	})
	if err != nil {
		return fmt.Errorf("failed to write record %q: %w", name, err)
	}

	s.index.Add(name, labels)
	s.infos[name] = payload.info(name)
	s.logger.Debug("record saved", "name", name, "bytes", len(payloadBytes))

	return nil
}

// LoadRecord implements Store.LoadRecord
func (s *badgerStorage) LoadRecord(ctx context.Context, name string, opts ...motion.Option) (*motion.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var payloadBytes []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(name))
		if err != nil {
			return err
		}
		payloadBytes, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %q: %w", name, err)
	}

	var payload recordPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return s.decodeRecord(&payload, opts)
}

// DeleteRecord implements Store.DeleteRecord
func (s *badgerStorage) DeleteRecord(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.infos[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(name))
	})
	if err != nil {
		return fmt.Errorf("failed to delete record %q: %w", name, err)
	}

	s.index.Remove(name)
	delete(s.infos, name)
	return nil
}

// FindRecords implements Store.FindRecords
func (s *badgerStorage) FindRecords(ctx context.Context, selectors map[string]string) ([]RecordInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := s.index.Find(selectors)
	result := make([]RecordInfo, 0, len(names))
	for _, name := range names {
		info, ok := s.infos[name]
		if !ok {
			continue
		}
		info.Labels, _ = s.index.Labels(name)
		result = append(result, info)
	}
	return result, nil
}

// Close implements Store.Close
func (s *badgerStorage) Close() error {
	if s.compressor != nil {
		s.compressor.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// recordKey generates the storage key for a record
func recordKey(name string) []byte {
	return []byte(recordPrefix + name)
}

// recordPayload is the stored form of a record
type recordPayload struct {
	Labels          map[string]string `json:"labels,omitempty"`
	Integrator      string            `json:"integrator,omitempty"`
	IntegrationStep float64           `json:"integration_step"`
	ScaleFactor     float64           `json:"scale_factor"`
	Acceleration    *seriesPayload    `json:"acceleration,omitempty"`
	Velocity        *seriesPayload    `json:"velocity,omitempty"`
	Displacement    *seriesPayload    `json:"displacement,omitempty"`

	// summary kept so listing does not decode samples
	Duration         float64 `json:"duration"`
	PeakAcceleration float64 `json:"peak_acceleration"`
}

// seriesPayload is the stored form of a series.Sampled
type seriesPayload struct {
	Tag           int     `json:"tag"`
	StepIncrement float64 `json:"step_increment"`
	ScaleFactor   float64 `json:"scale_factor"`
	StartTime     float64 `json:"start_time"`
	HoldLast      bool    `json:"hold_last"`
	Count         int     `json:"count"`
	Samples       []byte  `json:"samples,omitempty"`
}

func (p *recordPayload) info(name string) RecordInfo {
	return RecordInfo{
		Name:             name,
		Labels:           p.Labels,
		Integrator:       p.Integrator,
		IntegrationStep:  p.IntegrationStep,
		ScaleFactor:      p.ScaleFactor,
		Duration:         p.Duration,
		PeakAcceleration: p.PeakAcceleration,
		HasAcceleration:  p.Acceleration != nil,
		HasVelocity:      p.Velocity != nil,
		HasDisplacement:  p.Displacement != nil,
	}
}

func (s *badgerStorage) encodeRecord(labels map[string]string, rec *motion.Record) (*recordPayload, error) {
	payload := &recordPayload{
		Labels:          labels,
		Integrator:      integrator.Name(rec.Integrator()),
		IntegrationStep: rec.IntegrationStep(),
		ScaleFactor:     rec.ScaleFactor(),
	}

	var err error
	if payload.Acceleration, err = s.encodeSeries(rec.Acceleration()); err != nil {
		return nil, fmt.Errorf("acceleration: %w", err)
	}
	if payload.Velocity, err = s.encodeSeries(rec.Velocity()); err != nil {
		return nil, fmt.Errorf("velocity: %w", err)
	}
	if payload.Displacement, err = s.encodeSeries(rec.Displacement()); err != nil {
		return nil, fmt.Errorf("displacement: %w", err)
	}

	if rec.Acceleration() != nil {
		payload.Duration = rec.Duration()
		payload.PeakAcceleration = rec.PeakAcceleration()
	}

	return payload, nil
}

func (s *badgerStorage) encodeSeries(ts series.TimeSeries) (*seriesPayload, error) {
	if ts == nil {
		return nil, nil
	}

	sampled, ok := ts.(*series.Sampled)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedSeries, ts)
	}

	return &seriesPayload{
		Tag:           sampled.Tag(),
		StepIncrement: sampled.StepIncrement(),
		ScaleFactor:   sampled.ScaleFactor(),
		StartTime:     sampled.StartTime(),
		HoldLast:      sampled.HoldLast(),
		Count:         sampled.Len(),
		Samples:       s.compressor.CompressSamples(sampled.Samples()),
	}, nil
}

func (s *badgerStorage) decodeRecord(payload *recordPayload, opts []motion.Option) (*motion.Record, error) {
	recOpts := []motion.Option{
		motion.WithIntegrationStep(payload.IntegrationStep),
		motion.WithScaleFactor(payload.ScaleFactor),
	}

	if payload.Integrator != "" {
		in, err := integrator.New(payload.Integrator)
		if err != nil {
			return nil, err
		}
		recOpts = append(recOpts, motion.WithIntegrator(in))
	}

	parts := []struct {
		payload *seriesPayload
		option  func(series.TimeSeries) motion.Option
		label   string
	}{
		{payload.Acceleration, motion.WithAcceleration, "acceleration"},
		{payload.Velocity, motion.WithVelocity, "velocity"},
		{payload.Displacement, motion.WithDisplacement, "displacement"},
	}
	for _, part := range parts {
		if part.payload == nil {
			continue
		}
		ts, err := s.decodeSeries(part.payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", part.label, err)
		}
		recOpts = append(recOpts, part.option(ts))
	}

	return motion.New(append(recOpts, opts...)...), nil
}

func (s *badgerStorage) decodeSeries(p *seriesPayload) (*series.Sampled, error) {
	samples, err := s.compressor.DecompressSamples(p.Samples, p.Count)
	if err != nil {
		return nil, err
	}

	return series.FromState(series.SampledState{
		Tag:           p.Tag,
		StepIncrement: p.StepIncrement,
		ScaleFactor:   p.ScaleFactor,
		StartTime:     p.StartTime,
		HoldLast:      p.HoldLast,
		Samples:       samples,
	}, series.WithLogger(s.logger)), nil
}
