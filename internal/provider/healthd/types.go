package healthd

// Wire types for the health daemon's JSON API.

// authStatus is the response of GET /v1/authorize/status and
// POST /v1/authorize.
type authStatus struct {
	Granted bool `json:"granted"`
}

// daySummary is the response of GET /v1/summary/{date}: the daemon's
// pre-aggregated per-day totals plus the user's configured goals.
type daySummary struct {
	ActiveCalories  float64      `json:"active_calories"`
	ExerciseMinutes int          `json:"exercise_minutes"`
	StandHours      int          `json:"stand_hours"`
	Goals           summaryGoals `json:"goals"`
}

type summaryGoals struct {
	MoveCalories    float64 `json:"move_calories"`
	ExerciseMinutes int     `json:"exercise_minutes"`
	StandHours      int     `json:"stand_hours"`
	Steps           int     `json:"steps"`
}

// sampleSum is the response of GET /v1/samples/{type}/sum.
type sampleSum struct {
	Sum   float64 `json:"sum"`
	Count int     `json:"count"`
	Unit  string  `json:"unit,omitempty"`
}

// sampleAvg is the response of GET /v1/samples/{type}/avg.
type sampleAvg struct {
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// workoutList is the response of GET /v1/workouts.
type workoutList struct {
	Workouts []workout `json:"workouts"`
}

type workout struct {
	ID              string  `json:"id"`
	Type            string  `json:"type"`
	Start           string  `json:"start"` // RFC3339
	End             string  `json:"end"`   // RFC3339
	DurationMinutes int     `json:"duration_minutes"`
	Calories        float64 `json:"calories"`
	Distance        float64 `json:"distance,omitempty"`
	DistanceUnit    string  `json:"distance_unit,omitempty"`
	Source          string  `json:"source"`
}

// weightSample is one element of GET /v1/body/weight responses.
type weightSample struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Taken string  `json:"taken"` // RFC3339
}

// weightList is the response of GET /v1/body/weight.
type weightList struct {
	Samples []weightSample `json:"samples"`
}

// bmiSample is the response of GET /v1/body/bmi/latest.
type bmiSample struct {
	Value float64 `json:"value"`
	Taken string  `json:"taken"` // RFC3339
}
