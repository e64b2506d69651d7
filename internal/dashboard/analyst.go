package dashboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/voxpulse/internal/analysis"
	"github.com/MrWong99/voxpulse/internal/calls"
	"github.com/MrWong99/voxpulse/pkg/types"
)

// Analyzer is the transcript analysis dependency of an [Analyst].
// *analysis.Analyzer satisfies it.
type Analyzer interface {
	AnalyzeDetailed(ctx context.Context, transcript string, opts ...analysis.CallOption) (types.AnalysisResult, error)
}

// Analyst runs transcript analysis for records in a [Store].
type Analyst struct {
	store    *Store
	analyzer Analyzer

	mu       sync.RWMutex
	proModel string
}

// NewAnalyst returns an Analyst. proModel is the model requested when the
// user enables the pro model setting; empty keeps the provider default.
func NewAnalyst(store *Store, analyzer Analyzer, proModel string) *Analyst {
	return &Analyst{store: store, analyzer: analyzer, proModel: proModel}
}

// SetProModel changes the model used when the pro setting is on.
func (a *Analyst) SetProModel(model string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.proModel = model
}

// Analyze runs analysis for the record with id and returns the updated
// record. Set force to re-run a record that already has a successful
// analysis.
//
// The run is detached from ctx cancellation: once started it always
// attaches its result. If the record was removed or replaced meanwhile the
// result is discarded and [ErrCallNotFound] is returned.
func (a *Analyst) Analyze(ctx context.Context, id string, force bool) (calls.Record, error) {
	ctx = context.WithoutCancel(ctx)

	st, err := a.store.Dispatch(ctx, StartAnalysis{ID: id, Force: force})
	if err != nil {
		return calls.Record{}, err
	}
	rec, _ := st.Call(id)

	var opts []analysis.CallOption
	if st.Settings.UseProModel {
		a.mu.RLock()
		if a.proModel != "" {
			opts = append(opts, analysis.WithModel(a.proModel))
		}
		a.mu.RUnlock()
	}

	res, aerr := a.analyzer.AnalyzeDetailed(ctx, rec.Transcript, opts...)

	st, err = a.store.Dispatch(ctx, CompleteAnalysis{ID: id, Result: res, Failed: aerr != nil})
	if err != nil {
		return calls.Record{}, err
	}
	out, ok := st.Call(id)
	if !ok {
		return calls.Record{}, fmt.Errorf("dashboard: analyze %q: %w", id, ErrCallNotFound)
	}
	return out, nil
}
