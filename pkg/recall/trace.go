package recall

import "time"

// RetrievalTrace reports one strategy's contribution to a Recall call.
type RetrievalTrace struct {
	Method   Method
	Duration time.Duration
	Count    int
	TopRanks []string
}

// PhaseTrace reports timing for one named phase of the pipeline.
type PhaseTrace struct {
	Phase    string
	Duration time.Duration
	Details  string
}

// CandidateTrace reports the full score breakdown for one ranked candidate.
type CandidateTrace struct {
	ID            string
	Rank          int
	Sources       []string
	RRFScore      float64
	RRFNormalized float64
	CENorm        float64
	Temporal      float64
	Recency       float64
	Combined      float64

	Probe  *float64
	Base   *float64
	Spread *float64

	WMBoost *float64
}

// Trace is the optional, side-effect-free diagnostic record of a single
// Recall call, populated only when RecallOptions.EnableTrace is set.
type Trace struct {
	StartedAt          time.Time
	Query              string
	MaxTokens          int
	TemporalConstraint *TimeRange

	Retrieval    []RetrievalTrace
	PhaseMetrics []PhaseTrace
	Candidates   []CandidateTrace

	SelectedMemoryIDs []string
	TotalDuration     time.Duration
}

// newTrace starts a trace, or returns nil when tracing is disabled — every
// trace-recording call downstream is a no-op on a nil receiver.
func newTrace(enabled bool, query string, maxTokens int, tr *TimeRange) *Trace {
	if !enabled {
		return nil
	}
	return &Trace{StartedAt: time.Now(), Query: query, MaxTokens: maxTokens, TemporalConstraint: tr}
}

func (t *Trace) recordRetrieval(rt RetrievalTrace) {
	if t == nil {
		return
	}
	t.Retrieval = append(t.Retrieval, rt)
}

func (t *Trace) recordPhase(pt PhaseTrace) {
	if t == nil {
		return
	}
	t.PhaseMetrics = append(t.PhaseMetrics, pt)
}

func (t *Trace) finish(rows []scoringRow, selected []string) {
	if t == nil {
		return
	}
	t.Candidates = make([]CandidateTrace, len(rows))
	for i, r := range rows {
		ct := CandidateTrace{
			ID:            r.MemoryID,
			Rank:          i + 1,
			Sources:       r.Sources,
			RRFScore:      r.RRF,
			RRFNormalized: r.RRFNorm,
			CENorm:        r.CE,
			Temporal:      r.Temporal,
			Recency:       r.Recency,
			Combined:      r.Combined,
		}
		if r.Probe != 0 || r.Base != 0 || r.Spread != 0 {
			probe, base, spread := r.Probe, r.Base, r.Spread
			ct.Probe, ct.Base, ct.Spread = &probe, &base, &spread
		}
		if r.WMBoost != 0 {
			wm := r.WMBoost
			ct.WMBoost = &wm
		}
		t.Candidates[i] = ct
	}
	t.SelectedMemoryIDs = selected
	t.TotalDuration = time.Since(t.StartedAt)
}
