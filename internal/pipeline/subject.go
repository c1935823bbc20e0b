// Package pipeline runs the full structural-balance analysis for one subject
// and bounds how many subjects run at once.
//
// A Subject owns every tensor derived from its time series. Nothing is shared
// between subjects, so a Subject is simply dropped once its Report is built.
package pipeline

import (
	"context"
	"hash/fnv"
	"time"

	"triadbalance/domain/core"
	"triadbalance/internal"
	"triadbalance/internal/aggregate"
	"triadbalance/internal/config"
	"triadbalance/internal/connectivity"
	"triadbalance/internal/errors"
	"triadbalance/internal/surrogate"
	"triadbalance/internal/transition"
	"triadbalance/internal/triad"

	"gonum.org/v1/gonum/mat"
)

// Subject is the computation context of one subject's analysis
type Subject struct {
	ID      core.SubjectID
	RunID   core.RunID
	Replica int // 0 for the original series, >0 for surrogate replicas

	ts     *mat.Dense
	cfg    config.AnalysisConfig
	subnet []int
	logger *internal.Logger
}

// NewSubject validates the series against the configuration before any tensor is allocated
func NewSubject(id core.SubjectID, ts *mat.Dense, cfg config.AnalysisConfig, logger *internal.Logger) (*Subject, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ts == nil {
		return nil, errors.InvalidShape("subject %s: time series matrix is nil", id)
	}
	nROI, nTime := ts.Dims()
	if nROI < 3 {
		return nil, errors.InvalidShape("subject %s: need at least 3 regions, got %d", id, nROI)
	}
	if cfg.WindowLength >= nTime {
		return nil, errors.InvalidParameter("subject %s: window length %d must be smaller than series length %d",
			id, cfg.WindowLength, nTime)
	}

	var subnet []int
	if len(cfg.Subnetwork) > 0 {
		set, err := aggregate.ROISet(cfg.Subnetwork, nROI)
		if err != nil {
			return nil, errors.Wrapf(err, "subject %s", id)
		}
		subnet = aggregate.SortedROIs(set)
	}

	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Subject{
		ID:     id,
		RunID:  core.NewRunID(),
		ts:     ts,
		cfg:    cfg,
		subnet: subnet,
		logger: logger.WithComponent("Pipeline"),
	}, nil
}

// Dims returns the number of regions and timepoints
func (s *Subject) Dims() (int, int) {
	return s.ts.Dims()
}

// Surrogate returns a new subject whose series is a phase-randomized copy of
// this one. Replica numbers must be positive; the seed depends on the
// configured base seed, the subject ID and the replica.
func (s *Subject) Surrogate(replica int) (*Subject, error) {
	if replica < 1 {
		return nil, errors.InvalidParameter("surrogate replica must be >= 1, got %d", replica)
	}
	ts, err := surrogate.Matrix(s.ts, surrogateSeed(s.cfg.Seed, s.ID, replica))
	if err != nil {
		return nil, errors.Wrapf(err, "subject %s: surrogate %d", s.ID, replica)
	}
	out := *s
	out.ts = ts
	out.RunID = core.NewRunID()
	out.Replica = replica
	return &out, nil
}

func surrogateSeed(base uint64, id core.SubjectID, replica int) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return (base ^ h.Sum64()) + uint64(replica)
}

// Tensors are the intermediate results of a materialized run
type Tensors struct {
	Series    *connectivity.Series
	Tensor    *triad.Tensor
	Lifetimes []triad.Segments
	Peaks     [][]triad.PeakSegment
}

// Connectivity estimates the windowed connectivity series with progress logging
func (s *Subject) Connectivity() (*connectivity.Series, error) {
	opts := s.cfg.ConnectivityOptions()
	if s.logger.GetLevel() >= internal.LogLevelDebug {
		opts.Progress = func(done, total int) {
			s.logger.Debug("subject %s: connectivity %d/%d windows", s.ID, done, total)
		}
	}
	series, err := connectivity.Estimate(s.ts, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "subject %s: connectivity", s.ID)
	}
	return series, nil
}

func (s *Subject) triadOptions() triad.Options {
	return triad.Options{
		Workers:       s.cfg.Workers,
		KeepZeroSigns: s.cfg.KeepZeroSigns,
		MinAbs:        s.cfg.MinAbs,
	}
}

// Compute materializes every tensor of the pipeline
func (s *Subject) Compute(ctx context.Context) (*Tensors, error) {
	series, err := s.Connectivity()
	if err != nil {
		return nil, err
	}
	tensor, err := triad.Classify(ctx, series, s.triadOptions())
	if err != nil {
		return nil, errors.Wrapf(err, "subject %s: triad classification", s.ID)
	}
	lifetimes := tensor.Lifetimes(s.cfg.DropUndefined)
	return &Tensors{
		Series:    series,
		Tensor:    tensor,
		Lifetimes: lifetimes,
		Peaks:     tensor.Peaks(lifetimes),
	}, nil
}

// Run computes the report from fully materialized tensors
func (s *Subject) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	t, err := s.Compute(ctx)
	if err != nil {
		return nil, err
	}

	life := aggregate.FromLifetimes(t.Tensor.Triangles, t.Lifetimes)
	energy := aggregate.FromPeaks(t.Tensor.Triangles, t.Peaks)

	report := s.newReport(t.Series.Len(), len(t.Tensor.Triangles))
	if report.Lifetime, err = aggregate.WholeBrain(life); err != nil {
		return nil, err
	}
	if report.Energy, err = aggregate.WholeBrain(energy); err != nil {
		return nil, err
	}
	if len(s.subnet) > 0 {
		sl, err := aggregate.Subnetwork(life, s.subnet, t.Tensor.ROIs)
		if err != nil {
			return nil, err
		}
		se, err := aggregate.Subnetwork(energy, s.subnet, t.Tensor.ROIs)
		if err != nil {
			return nil, err
		}
		report.SubLifetime, report.SubEnergy = &sl, &se
	}
	for _, segs := range t.Lifetimes {
		report.DroppedWindows += segs.Dropped
	}
	report.Transitions = transition.Build(t.Tensor)
	report.Elapsed = time.Since(start)

	s.logger.Info("subject %s (replica %d): %d triangles x %d windows in %v",
		s.ID, s.Replica, report.Triangles, report.Windows, report.Elapsed)
	return report, nil
}

// Execute runs the configured mode and then every configured surrogate replica
func (s *Subject) Execute(ctx context.Context) (*Report, error) {
	run := s.Run
	if s.cfg.Streaming {
		run = s.RunStreaming
	}
	report, err := run(ctx)
	if err != nil {
		return nil, err
	}
	if s.Replica > 0 {
		return report, nil
	}

	for replica := 1; replica <= s.cfg.Surrogates; replica++ {
		sur, err := s.Surrogate(replica)
		if err != nil {
			return nil, err
		}
		sr, err := sur.Execute(ctx)
		if err != nil {
			return nil, err
		}
		report.Surrogates = append(report.Surrogates, sr)
	}
	return report, nil
}

func (s *Subject) newReport(windows, triangles int) *Report {
	nROI, nTime := s.ts.Dims()
	return &Report{
		SubjectID:  s.ID,
		RunID:      s.RunID,
		Replica:    s.Replica,
		ROIs:       nROI,
		TimePoints: nTime,
		Windows:    windows,
		Triangles:  triangles,
		Subnetwork: s.subnet,
		convention: s.cfg.CodeConvention(),
	}
}
