package healthd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ringsync/ringsync/internal/provider"
)

// ProviderID is the stable identifier for the health daemon provider.
const ProviderID provider.ID = "healthd"

const dateFormat = "2006-01-02"

// Options configures the adapter.
type Options struct {
	// BaseURL of the daemon. Empty means the daemon is not configured
	// on this device and the adapter is constructed unavailable.
	BaseURL string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Adapter implements provider.Adapter and provider.SampleSource
// against the local health daemon. Availability is probed once at
// construction — there is no lazily-cached module state.
type Adapter struct {
	client    *Client
	logger    *slog.Logger
	available bool
}

// New constructs the adapter. When no daemon base URL is configured
// the adapter is returned in its unavailable variant: IsAvailable
// reports false and every operation fails with
// provider.ErrUnavailable.
func New(opts Options) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.BaseURL == "" {
		return &Adapter{logger: logger, available: false}
	}

	return &Adapter{
		client:    NewClient(opts.BaseURL, opts.HTTPClient, logger),
		logger:    logger,
		available: true,
	}
}

// ID returns the stable provider identifier.
func (a *Adapter) ID() provider.ID { return ProviderID }

// IsAvailable reports whether the daemon is configured on this device.
// Pure check, no I/O.
func (a *Adapter) IsAvailable() bool { return a.available }

// RequestAccess performs the one-time authorization handshake. A user
// denial is reported as (false, nil), not an error.
func (a *Adapter) RequestAccess(ctx context.Context) (bool, error) {
	if !a.available {
		return false, provider.ErrUnavailable
	}

	var st authStatus
	if err := a.client.post(ctx, "/v1/authorize", &st); err != nil {
		if errors.Is(err, provider.ErrPermissionDenied) {
			return false, nil
		}

		return false, fmt.Errorf("requesting access: %w", err)
	}

	return st.Granted, nil
}

// Connect is idempotent: already-granted access returns true without a
// new handshake.
func (a *Adapter) Connect(ctx context.Context) (bool, error) {
	if !a.available {
		return false, provider.ErrUnavailable
	}

	var st authStatus
	if err := a.client.get(ctx, "/v1/authorize/status", nil, &st); err != nil && !errors.Is(err, provider.ErrNoData) {
		return false, fmt.Errorf("checking authorization: %w", err)
	}

	if st.Granted {
		return true, nil
	}

	return a.RequestAccess(ctx)
}

// Disconnect is a no-op for the daemon: the grant lives in the
// platform settings and is not revoked from here.
func (a *Adapter) Disconnect(_ context.Context) error {
	if !a.available {
		return provider.ErrUnavailable
	}

	return nil
}

// FetchMetrics returns the daemon's authoritative daily summary for
// the given local day. A day with nothing recorded yields a
// zero-valued summary, not an error.
func (a *Adapter) FetchMetrics(ctx context.Context, day time.Time) (*provider.DaySummary, error) {
	if !a.available {
		return nil, provider.ErrUnavailable
	}

	var ds daySummary

	err := a.client.get(ctx, "/v1/summary/"+day.Format(dateFormat), nil, &ds)
	if err != nil {
		if errors.Is(err, provider.ErrNoData) {
			return &provider.DaySummary{}, nil
		}

		return nil, fmt.Errorf("fetching summary for %s: %w", day.Format(dateFormat), err)
	}

	return &provider.DaySummary{
		ActiveCalories:  ds.ActiveCalories,
		ExerciseMinutes: ds.ExerciseMinutes,
		StandHours:      ds.StandHours,
		MoveGoal:        ds.Goals.MoveCalories,
		ExerciseGoal:    ds.Goals.ExerciseMinutes,
		StandGoal:       ds.Goals.StandHours,
		StepsGoal:       ds.Goals.Steps,
	}, nil
}

// FetchWorkouts returns workouts whose start time falls in [start, end).
func (a *Adapter) FetchWorkouts(ctx context.Context, start, end time.Time) ([]provider.Workout, error) {
	if !a.available {
		return nil, provider.ErrUnavailable
	}

	var wl workoutList
	if err := a.client.get(ctx, "/v1/workouts", windowQuery(start, end), &wl); err != nil {
		if errors.Is(err, provider.ErrNoData) {
			return nil, nil
		}

		return nil, fmt.Errorf("fetching workouts: %w", err)
	}

	out := make([]provider.Workout, 0, len(wl.Workouts))

	for _, w := range wl.Workouts {
		ws, err := time.Parse(time.RFC3339, w.Start)
		if err != nil {
			a.logger.Warn("skipping workout with bad start time",
				slog.String("id", w.ID), slog.String("start", w.Start))

			continue
		}

		we, err := time.Parse(time.RFC3339, w.End)
		if err != nil {
			a.logger.Warn("skipping workout with bad end time",
				slog.String("id", w.ID), slog.String("end", w.End))

			continue
		}

		out = append(out, provider.Workout{
			ID:              w.ID,
			Type:            w.Type,
			Start:           ws,
			End:             we,
			DurationMinutes: w.DurationMinutes,
			Calories:        w.Calories,
			Distance:        provider.Quantity{Value: w.Distance, Unit: provider.Unit(w.DistanceUnit)},
			Provider:        ProviderID,
			Source:          w.Source,
		})
	}

	return out, nil
}

// FetchWeight returns the most recent weight sample, or nil when none
// is recorded.
func (a *Adapter) FetchWeight(ctx context.Context) (*provider.WeightSample, error) {
	if !a.available {
		return nil, provider.ErrUnavailable
	}

	var ws weightSample

	err := a.client.get(ctx, "/v1/body/weight/latest", nil, &ws)
	if err != nil {
		if errors.Is(err, provider.ErrNoData) {
			return nil, nil
		}

		return nil, fmt.Errorf("fetching weight: %w", err)
	}

	s, err := parseWeight(ws)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// FetchWeightHistory returns samples from the trailing number of days,
// newest first.
func (a *Adapter) FetchWeightHistory(ctx context.Context, days int) ([]provider.WeightSample, error) {
	if !a.available {
		return nil, provider.ErrUnavailable
	}

	q := url.Values{"days": []string{strconv.Itoa(days)}}

	var wl weightList
	if err := a.client.get(ctx, "/v1/body/weight", q, &wl); err != nil {
		if errors.Is(err, provider.ErrNoData) {
			return nil, nil
		}

		return nil, fmt.Errorf("fetching weight history: %w", err)
	}

	out := make([]provider.WeightSample, 0, len(wl.Samples))

	for _, ws := range wl.Samples {
		s, err := parseWeight(ws)
		if err != nil {
			a.logger.Warn("skipping malformed weight sample", slog.String("error", err.Error()))
			continue
		}

		out = append(out, s)
	}

	return out, nil
}

// FetchBMI returns the most recent BMI reading, or nil when none is
// recorded.
func (a *Adapter) FetchBMI(ctx context.Context) (*provider.BMISample, error) {
	if !a.available {
		return nil, provider.ErrUnavailable
	}

	var bs bmiSample

	err := a.client.get(ctx, "/v1/body/bmi/latest", nil, &bs)
	if err != nil {
		if errors.Is(err, provider.ErrNoData) {
			return nil, nil
		}

		return nil, fmt.Errorf("fetching BMI: %w", err)
	}

	taken, err := time.Parse(time.RFC3339, bs.Taken)
	if err != nil {
		return nil, fmt.Errorf("parsing BMI timestamp: %w", err)
	}

	return &provider.BMISample{Value: bs.Value, Taken: taken}, nil
}

// --- SampleSource ---

// ActiveEnergySum sums active-energy samples (kcal) in the window.
func (a *Adapter) ActiveEnergySum(ctx context.Context, start, end time.Time) (float64, error) {
	return a.sum(ctx, "active_energy", start, end)
}

// ExerciseMinutesSum sums exercise-minute samples in the window.
func (a *Adapter) ExerciseMinutesSum(ctx context.Context, start, end time.Time) (int, error) {
	v, err := a.sum(ctx, "exercise_minutes", start, end)
	return int(v), err
}

// StandHoursSum counts stand-hour samples in the window. This is the
// raw duration-sample fallback; the daemon's summary remains the
// preferred source when present.
func (a *Adapter) StandHoursSum(ctx context.Context, start, end time.Time) (int, error) {
	v, err := a.sum(ctx, "stand_hours", start, end)
	return int(v), err
}

// StepsSum sums step samples in the window.
func (a *Adapter) StepsSum(ctx context.Context, start, end time.Time) (int, error) {
	v, err := a.sum(ctx, "steps", start, end)
	return int(v), err
}

// DistanceSum sums walking/running distance samples in the window, in
// the daemon's native unit.
func (a *Adapter) DistanceSum(ctx context.Context, start, end time.Time) (provider.Quantity, error) {
	if !a.available {
		return provider.Quantity{}, provider.ErrUnavailable
	}

	var ss sampleSum

	err := a.client.get(ctx, "/v1/samples/distance/sum", windowQuery(start, end), &ss)
	if err != nil {
		if errors.Is(err, provider.ErrNoData) {
			return provider.Quantity{Unit: provider.UnitMeters}, nil
		}

		return provider.Quantity{}, fmt.Errorf("summing distance: %w", err)
	}

	unit := provider.Unit(ss.Unit)
	if unit == "" {
		unit = provider.UnitMeters
	}

	return provider.Quantity{Value: ss.Sum, Unit: unit}, nil
}

// HeartRateAvg averages heart-rate samples (bpm) in the window.
func (a *Adapter) HeartRateAvg(ctx context.Context, start, end time.Time) (float64, error) {
	if !a.available {
		return 0, provider.ErrUnavailable
	}

	var sa sampleAvg

	err := a.client.get(ctx, "/v1/samples/heart_rate/avg", windowQuery(start, end), &sa)
	if err != nil {
		if errors.Is(err, provider.ErrNoData) {
			return 0, nil
		}

		return 0, fmt.Errorf("averaging heart rate: %w", err)
	}

	return sa.Avg, nil
}

// WorkoutCount counts workouts starting in the window.
func (a *Adapter) WorkoutCount(ctx context.Context, start, end time.Time) (int, error) {
	workouts, err := a.FetchWorkouts(ctx, start, end)
	if err != nil {
		return 0, err
	}

	return len(workouts), nil
}

func (a *Adapter) sum(ctx context.Context, sampleType string, start, end time.Time) (float64, error) {
	if !a.available {
		return 0, provider.ErrUnavailable
	}

	var ss sampleSum

	err := a.client.get(ctx, "/v1/samples/"+sampleType+"/sum", windowQuery(start, end), &ss)
	if err != nil {
		if errors.Is(err, provider.ErrNoData) {
			return 0, nil
		}

		return 0, fmt.Errorf("summing %s: %w", sampleType, err)
	}

	return ss.Sum, nil
}

func parseWeight(ws weightSample) (provider.WeightSample, error) {
	taken, err := time.Parse(time.RFC3339, ws.Taken)
	if err != nil {
		return provider.WeightSample{}, fmt.Errorf("parsing weight timestamp: %w", err)
	}

	unit := provider.Unit(ws.Unit)
	if unit == "" {
		unit = provider.UnitKilograms
	}

	return provider.WeightSample{
		Weight: provider.Quantity{Value: ws.Value, Unit: unit},
		Taken:  taken,
	}, nil
}

func windowQuery(start, end time.Time) url.Values {
	return url.Values{
		"start": []string{start.Format(time.RFC3339)},
		"end":   []string{end.Format(time.RFC3339)},
	}
}
