package pipeline

import (
	"context"
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"

	"triadbalance/domain/balance"
	"triadbalance/domain/core"
	"triadbalance/internal"
	"triadbalance/internal/aggregate"
	"triadbalance/internal/config"
	"triadbalance/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var quiet = internal.NewLogger(internal.LogLevelError)

func syntheticTS(nROI, nTime int, seed uint64) *mat.Dense {
	rng := rand.New(rand.NewPCG(seed, 1))
	m := mat.NewDense(nROI, nTime, nil)
	for r := 0; r < nROI; r++ {
		for t := 0; t < nTime; t++ {
			m.Set(r, t, math.Sin(float64(t)/(3+float64(r)))+0.8*rng.NormFloat64())
		}
	}
	return m
}

func testConfig() config.AnalysisConfig {
	cfg := config.Default().Analysis
	cfg.WindowLength = 10
	cfg.Workers = 3
	return cfg
}

func newSubject(t *testing.T, ts *mat.Dense, cfg config.AnalysisConfig) *Subject {
	t.Helper()
	s, err := NewSubject(core.SubjectID("sub-01"), ts, cfg, quiet)
	require.NoError(t, err)
	return s
}

// pooled lifetimes of all kept runs plus dropped windows cover every triangle-window
func coveredWindows(r *Report) float64 {
	total := float64(r.DroppedWindows)
	for _, st := range r.Lifetime.Stats {
		if st.Valid {
			total += float64(st.N) * st.Mean
		}
	}
	return total
}

func TestRun_Invariants(t *testing.T) {
	s := newSubject(t, syntheticTS(6, 80, 1), testConfig())

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 70, report.Windows)
	assert.Equal(t, 20, report.Triangles)
	assert.Equal(t, 6, report.ROIs)
	assert.InDelta(t, float64(report.Triangles*report.Windows), coveredWindows(report), 1e-6)

	for i := 0; i < 4; i++ {
		assert.True(t, math.IsNaN(report.Transitions.P.At(i, i)))
	}
	off := 0.0
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if i != j {
				off += report.Transitions.P.At(i, j)
			}
		}
	}
	assert.InDelta(t, 1.0, off, 1e-9)

	for _, st := range report.Energy.Stats {
		if st.Valid {
			assert.GreaterOrEqual(t, st.Mean, 0.0)
			assert.LessOrEqual(t, st.Mean, 1.0)
		}
	}
}

func TestCompute_LifetimesRoundTrip(t *testing.T) {
	s := newSubject(t, syntheticTS(5, 60, 2), testConfig())

	tensors, err := s.Compute(context.Background())
	require.NoError(t, err)

	for i, segs := range tensors.Lifetimes {
		assert.Equal(t, tensors.Tensor.Codes[i], segs.Decode(tensors.Tensor.Windows))
		assert.Equal(t, tensors.Tensor.Windows, segs.Total()+segs.Dropped)
		assert.Len(t, tensors.Peaks[i], len(segs.Runs))
	}
}

func TestRunStreaming_MatchesRun(t *testing.T) {
	cfg := testConfig()
	cfg.Subnetwork = []int{0, 2, 3, 5}
	ts := syntheticTS(7, 90, 3)

	materialized, err := newSubject(t, ts, cfg).Run(context.Background())
	require.NoError(t, err)
	streamed, err := newSubject(t, ts, cfg).RunStreaming(context.Background())
	require.NoError(t, err)

	assert.Equal(t, materialized.Transitions.Counts, streamed.Transitions.Counts)
	assert.Equal(t, materialized.DroppedWindows, streamed.DroppedWindows)

	pairs := []struct {
		name string
		a, b aggregate.Result
	}{
		{"lifetime", materialized.Lifetime, streamed.Lifetime},
		{"energy", materialized.Energy, streamed.Energy},
		{"sub lifetime", *materialized.SubLifetime, *streamed.SubLifetime},
		{"sub energy", *materialized.SubEnergy, *streamed.SubEnergy},
	}
	for _, p := range pairs {
		for _, code := range balance.Canonical {
			a, _ := p.a.Get(code)
			b, _ := p.b.Get(code)
			assert.Equal(t, a.Valid, b.Valid, "%s %v", p.name, code)
			assert.Equal(t, a.N, b.N, "%s %v", p.name, code)
			if a.Valid {
				assert.InDelta(t, a.Mean, b.Mean, 1e-9, "%s %v", p.name, code)
				assert.InDelta(t, a.Median, b.Median, 1e-9, "%s %v", p.name, code)
			}
		}
	}
}

func TestRun_SubnetworkOfAllROIsEqualsWholeBrain(t *testing.T) {
	cfg := testConfig()
	cfg.Subnetwork = []int{0, 1, 2, 3, 4}

	report, err := newSubject(t, syntheticTS(5, 50, 4), cfg).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report.SubLifetime)

	for _, code := range balance.Canonical {
		w, _ := report.Lifetime.Get(code)
		s, _ := report.SubLifetime.Get(code)
		assert.Equal(t, w.N, s.N)
		if w.Valid {
			assert.InDelta(t, w.Mean, s.Mean, 1e-12)
		}
	}
}

func TestRun_SmallSubnetworkIsMissing(t *testing.T) {
	cfg := testConfig()
	cfg.Subnetwork = []int{1, 4}

	for _, streaming := range []bool{false, true} {
		cfg.Streaming = streaming
		report, err := newSubject(t, syntheticTS(5, 40, 5), cfg).Execute(context.Background())
		require.NoError(t, err)
		require.NotNil(t, report.SubLifetime)
		for _, st := range report.SubLifetime.Stats {
			assert.False(t, st.Valid)
		}
	}
}

func TestExecute_Surrogates(t *testing.T) {
	cfg := testConfig()
	cfg.Surrogates = 2
	ts := syntheticTS(5, 64, 6)
	before := mat.DenseCopyOf(ts)

	report, err := newSubject(t, ts, cfg).Execute(context.Background())
	require.NoError(t, err)

	assert.True(t, mat.Equal(before, ts), "surrogates must not touch the original series")
	require.Len(t, report.Surrogates, 2)
	for i, sr := range report.Surrogates {
		assert.Equal(t, i+1, sr.Replica)
		assert.Equal(t, report.SubjectID, sr.SubjectID)
		assert.NotEqual(t, report.RunID, sr.RunID)
		assert.Empty(t, sr.Surrogates)
		assert.InDelta(t, float64(sr.Triangles*sr.Windows), coveredWindows(sr), 1e-6)
	}
}

func TestSurrogate_SeedDependsOnSubject(t *testing.T) {
	cfg := testConfig()
	ts := syntheticTS(4, 40, 9)

	a, err := NewSubject("sub-a", ts, cfg, quiet)
	require.NoError(t, err)
	b, err := NewSubject("sub-b", ts, cfg, quiet)
	require.NoError(t, err)
	again, err := NewSubject("sub-a", ts, cfg, quiet)
	require.NoError(t, err)

	sa, err := a.Surrogate(1)
	require.NoError(t, err)
	sb, err := b.Surrogate(1)
	require.NoError(t, err)
	sAgain, err := again.Surrogate(1)
	require.NoError(t, err)
	sa2, err := a.Surrogate(2)
	require.NoError(t, err)

	assert.False(t, mat.Equal(sa.ts, sb.ts), "subjects with equal series must not share surrogates")
	assert.True(t, mat.Equal(sa.ts, sAgain.ts), "same subject, seed and replica must reproduce")
	assert.False(t, mat.Equal(sa.ts, sa2.ts))
	assert.NotEqual(t, surrogateSeed(42, "sub-a", 1), surrogateSeed(42, "sub-b", 1))
}

func TestSurrogate_InvalidReplica(t *testing.T) {
	_, err := newSubject(t, syntheticTS(4, 30, 7), testConfig()).Surrogate(0)
	assert.Equal(t, errors.CodeInvalidParameter, errors.GetCode(err))
}

func TestNewSubject_Errors(t *testing.T) {
	cfg := testConfig()

	_, err := NewSubject("s", syntheticTS(4, 10, 1), cfg, quiet)
	assert.Equal(t, errors.CodeInvalidParameter, errors.GetCode(err), "window length equal to series length")

	_, err = NewSubject("s", syntheticTS(2, 40, 1), cfg, quiet)
	assert.Equal(t, errors.CodeInvalidShape, errors.GetCode(err))

	_, err = NewSubject("s", nil, cfg, quiet)
	assert.Equal(t, errors.CodeInvalidShape, errors.GetCode(err))

	bad := cfg
	bad.Subnetwork = []int{0, 1, 9}
	_, err = NewSubject("s", syntheticTS(4, 40, 1), bad, quiet)
	assert.Equal(t, errors.CodeInvalidParameter, errors.GetCode(err))

	bad = cfg
	bad.WindowLength = 1
	_, err = NewSubject("s", syntheticTS(4, 40, 1), bad, quiet)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestSummary_JSON(t *testing.T) {
	cfg := testConfig()
	cfg.Convention = string(balance.ConventionRemapped)
	cfg.Subnetwork = []int{0, 1, 2}

	report, err := newSubject(t, syntheticTS(4, 40, 8), cfg).Run(context.Background())
	require.NoError(t, err)

	summary := report.Summary()
	assert.Equal(t, []int{3, -2, 1, -3}, summary.Order)
	assert.Equal(t, "remapped", summary.Convention)
	require.NotNil(t, summary.Subnetwork)
	assert.Equal(t, []int{0, 1, 2}, summary.Subnetwork.ROIs)

	raw, err := json.Marshal(summary)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "sub-01", decoded["subject_id"])
	rows := decoded["transitions"].([]interface{})
	assert.Nil(t, rows[0].([]interface{})[0])
}

func TestBatch_Run(t *testing.T) {
	cfg := testConfig()
	var subjects []*Subject
	for i := 0; i < 4; i++ {
		s, err := NewSubject(core.SubjectID(string(rune('a'+i))), syntheticTS(4, 40, uint64(10+i)), cfg, quiet)
		require.NoError(t, err)
		subjects = append(subjects, s)
	}

	reports, err := NewBatch(2, quiet).Run(context.Background(), subjects)
	require.NoError(t, err)
	require.Len(t, reports, 4)
	for i, r := range reports {
		require.NotNil(t, r)
		assert.Equal(t, subjects[i].ID, r.SubjectID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewBatch(2, quiet).Run(ctx, subjects)
	assert.Error(t, err)
}
