package pipeline

import (
	"context"
	"sync"
	"time"

	"triadbalance/domain/balance"
	"triadbalance/internal/aggregate"
	"triadbalance/internal/errors"
	"triadbalance/internal/transition"
	"triadbalance/internal/triad"
)

// partial is one worker's share of a streaming run
type partial struct {
	life, energy       *aggregate.Accumulator
	subLife, subEnergy *aggregate.Accumulator
	trans              transition.Counter
	dropped            int
}

func newPartial() *partial {
	// all canonical codes: NewAccumulator cannot fail without arguments
	acc := func() *aggregate.Accumulator {
		a, _ := aggregate.NewAccumulator()
		return a
	}
	return &partial{life: acc(), energy: acc(), subLife: acc(), subEnergy: acc()}
}

func (p *partial) merge(o *partial) {
	p.life.Merge(o.life)
	p.energy.Merge(o.energy)
	p.subLife.Merge(o.subLife)
	p.subEnergy.Merge(o.subEnergy)
	p.trans.Merge(&o.trans)
	p.dropped += o.dropped
}

// RunStreaming produces the same report as Run but handles one triangle at a
// time: codes, energies and segments of a triangle are folded into pooled
// accumulators and discarded, so the window × ROI³ tensor is never held.
func (s *Subject) RunStreaming(ctx context.Context) (*Report, error) {
	start := time.Now()
	series, err := s.Connectivity()
	if err != nil {
		return nil, err
	}
	if err := triad.Validate(series); err != nil {
		return nil, errors.Wrapf(err, "subject %s", s.ID)
	}

	tris := balance.Triangles(series.ROIs)
	var subset map[int]bool
	if len(s.subnet) >= aggregate.MinSubnetworkSize {
		subset, _ = aggregate.ROISet(s.subnet, series.ROIs)
	}
	opts := s.triadOptions()

	total := newPartial()
	var mu sync.Mutex
	err = triad.ForEachChunk(ctx, len(tris), opts.Workers, func(ctx context.Context, lo, hi int) error {
		local := newPartial()
		for i := lo; i < hi; i++ {
			tr := tris[i]
			codes, energy := triad.ClassifyTriangle(series, tr, opts)
			segs := triad.Encode(codes, s.cfg.DropUndefined)

			life := aggregate.LifetimeItem(tr, segs)
			peak := aggregate.PeakItem(tr, triad.PeakEnergy(segs, energy))
			local.life.Add(life)
			local.energy.Add(peak)
			if subset != nil && tr.Within(subset) {
				local.subLife.Add(life)
				local.subEnergy.Add(peak)
			}
			local.trans.Add(codes)
			local.dropped += segs.Dropped
		}
		mu.Lock()
		total.merge(local)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "subject %s: streaming triad pass", s.ID)
	}

	report := s.newReport(series.Len(), len(tris))
	report.Lifetime = total.life.Result()
	report.Energy = total.energy.Result()
	if len(s.subnet) > 0 {
		sl, se := aggregate.Missing(), aggregate.Missing()
		if subset != nil {
			sl, se = total.subLife.Result(), total.subEnergy.Result()
		}
		report.SubLifetime, report.SubEnergy = &sl, &se
	}
	report.Transitions = total.trans.Matrix()
	report.DroppedWindows = total.dropped
	report.Elapsed = time.Since(start)

	s.logger.Info("subject %s (replica %d): streamed %d triangles x %d windows in %v",
		s.ID, s.Replica, report.Triangles, report.Windows, report.Elapsed)
	return report, nil
}
