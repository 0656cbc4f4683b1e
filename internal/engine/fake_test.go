package engine

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ringsync/ringsync/internal/provider"
)

// fakeAdapter implements provider.Adapter and provider.SampleSource
// with canned values. Individual fetches can be made to fail or hang.
type fakeAdapter struct {
	mu sync.Mutex

	id        provider.ID
	available bool
	granted   bool

	summary    *provider.DaySummary
	summaryErr error

	energy   float64
	exercise int
	stand    int
	steps    int
	distance provider.Quantity
	hrAvg    float64
	workouts []provider.Workout

	weight *provider.WeightSample

	// Per-fetch error/hang injection keyed by fetch name.
	errs  map[string]error
	hangs map[string]bool

	// summaryByDay overrides summary per YYYY-MM-DD key when set.
	summaryByDay map[string]*provider.DaySummary

	fetchMetricsCalls int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		id:        "fake",
		available: true,
		granted:   true,
		distance:  provider.Quantity{Unit: provider.UnitMeters},
		errs:      make(map[string]error),
		hangs:     make(map[string]bool),
	}
}

func (f *fakeAdapter) gate(ctx context.Context, name string) error {
	f.mu.Lock()
	hang := f.hangs[name]
	err := f.errs[name]
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}

	return err
}

func (f *fakeAdapter) ID() provider.ID   { return f.id }
func (f *fakeAdapter) IsAvailable() bool { return f.available }

func (f *fakeAdapter) RequestAccess(_ context.Context) (bool, error) {
	return f.granted, nil
}

func (f *fakeAdapter) Connect(_ context.Context) (bool, error) {
	if !f.available {
		return false, provider.ErrUnavailable
	}

	return f.granted, nil
}

func (f *fakeAdapter) Disconnect(_ context.Context) error { return nil }

func (f *fakeAdapter) FetchMetrics(ctx context.Context, day time.Time) (*provider.DaySummary, error) {
	f.mu.Lock()
	f.fetchMetricsCalls++
	f.mu.Unlock()

	if err := f.gate(ctx, "summary"); err != nil {
		return nil, err
	}

	if f.summaryErr != nil {
		return nil, f.summaryErr
	}

	if f.summaryByDay != nil {
		if s, ok := f.summaryByDay[day.Format("2006-01-02")]; ok {
			return s, nil
		}

		return &provider.DaySummary{}, nil
	}

	if f.summary == nil {
		return &provider.DaySummary{}, nil
	}

	s := *f.summary

	return &s, nil
}

func (f *fakeAdapter) FetchWorkouts(ctx context.Context, start, end time.Time) ([]provider.Workout, error) {
	if err := f.gate(ctx, "workouts"); err != nil {
		return nil, err
	}

	var out []provider.Workout

	for _, w := range f.workouts {
		if !w.Start.Before(start) && w.Start.Before(end) {
			out = append(out, w)
		}
	}

	return out, nil
}

func (f *fakeAdapter) FetchWeight(ctx context.Context) (*provider.WeightSample, error) {
	if err := f.gate(ctx, "weight"); err != nil {
		return nil, err
	}

	return f.weight, nil
}

func (f *fakeAdapter) FetchWeightHistory(ctx context.Context, _ int) ([]provider.WeightSample, error) {
	if err := f.gate(ctx, "weight"); err != nil {
		return nil, err
	}

	if f.weight == nil {
		return nil, nil
	}

	return []provider.WeightSample{*f.weight}, nil
}

func (f *fakeAdapter) FetchBMI(ctx context.Context) (*provider.BMISample, error) {
	if err := f.gate(ctx, "bmi"); err != nil {
		return nil, err
	}

	return nil, nil
}

func (f *fakeAdapter) ActiveEnergySum(ctx context.Context, _, _ time.Time) (float64, error) {
	if err := f.gate(ctx, "active_energy"); err != nil {
		return 0, err
	}

	return f.energy, nil
}

func (f *fakeAdapter) ExerciseMinutesSum(ctx context.Context, _, _ time.Time) (int, error) {
	if err := f.gate(ctx, "exercise_minutes"); err != nil {
		return 0, err
	}

	return f.exercise, nil
}

func (f *fakeAdapter) StandHoursSum(ctx context.Context, _, _ time.Time) (int, error) {
	if err := f.gate(ctx, "stand_hours"); err != nil {
		return 0, err
	}

	return f.stand, nil
}

func (f *fakeAdapter) StepsSum(ctx context.Context, _, _ time.Time) (int, error) {
	if err := f.gate(ctx, "steps"); err != nil {
		return 0, err
	}

	return f.steps, nil
}

func (f *fakeAdapter) DistanceSum(ctx context.Context, _, _ time.Time) (provider.Quantity, error) {
	if err := f.gate(ctx, "distance"); err != nil {
		return provider.Quantity{}, err
	}

	return f.distance, nil
}

func (f *fakeAdapter) HeartRateAvg(ctx context.Context, _, _ time.Time) (float64, error) {
	if err := f.gate(ctx, "heart_rate"); err != nil {
		return 0, err
	}

	return f.hrAvg, nil
}

func (f *fakeAdapter) WorkoutCount(ctx context.Context, start, end time.Time) (int, error) {
	ws, err := f.FetchWorkouts(ctx, start, end)
	if err != nil {
		return 0, err
	}

	return len(ws), nil
}

// summaryOnlyAdapter wraps fakeAdapter but hides the SampleSource
// methods, modeling a third-party provider with only a daily feed.
type summaryOnlyAdapter struct {
	*fakeAdapter
}

// Shadow the sample methods behind an incompatible signature so the
// wrapper does not satisfy provider.SampleSource.
func (summaryOnlyAdapter) ActiveEnergySum()    {}
func (summaryOnlyAdapter) ExerciseMinutesSum() {}
func (summaryOnlyAdapter) StandHoursSum()      {}
func (summaryOnlyAdapter) StepsSum()           {}
func (summaryOnlyAdapter) DistanceSum()        {}
func (summaryOnlyAdapter) HeartRateAvg()       {}
func (summaryOnlyAdapter) WorkoutCount()       {}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeBackend implements Backend in memory with injectable failures.
type fakeBackend struct {
	mu sync.Mutex

	// submissions keyed by date; counts track upsert repetitions.
	submissions map[string]DaySubmission
	submitCount map[string]int
	submitErr   error

	ringsEvents map[string]RingsClosedEvent // keyed by date
	milestones  map[string]MilestoneRecord  // keyed by milestone ID
	existsErr   error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		submissions: make(map[string]DaySubmission),
		submitCount: make(map[string]int),
		ringsEvents: make(map[string]RingsClosedEvent),
		milestones:  make(map[string]MilestoneRecord),
	}
}

func (b *fakeBackend) SubmitDay(_ context.Context, _ string, day DaySubmission) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.submitErr != nil {
		return b.submitErr
	}

	b.submissions[day.Date] = day
	b.submitCount[day.Date]++

	return nil
}

func (b *fakeBackend) RingsClosedExists(_ context.Context, _, date string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.existsErr != nil {
		return false, b.existsErr
	}

	_, ok := b.ringsEvents[date]

	return ok, nil
}

func (b *fakeBackend) CreateRingsClosed(_ context.Context, _ string, ev RingsClosedEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ringsEvents[ev.Date] = ev

	return nil
}

func (b *fakeBackend) MilestoneExists(_ context.Context, _, milestoneID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.existsErr != nil {
		return false, b.existsErr
	}

	_, ok := b.milestones[milestoneID]

	return ok, nil
}

func (b *fakeBackend) CreateMilestone(_ context.Context, _ string, m MilestoneRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.milestones[m.MilestoneID] = m

	return nil
}
