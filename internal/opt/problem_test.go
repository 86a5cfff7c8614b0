package opt

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProblemRejectsInvalidInput(t *testing.T) {
	okV := Vehicle{ID: "v1", Capacity: 2}
	okJ := Job{ID: "j1", Location: Location{Lat: 1}, Demand: 1}
	cases := []struct {
		name     string
		vehicles []Vehicle
		jobs     []Job
		opts     ProblemOptions
		field    string
	}{
		{"duplicate vehicle", []Vehicle{okV, okV}, nil, ProblemOptions{}, "vehicles[1].id"},
		{"empty vehicle id", []Vehicle{{Capacity: 1}}, nil, ProblemOptions{}, "vehicles[0].id"},
		{"negative capacity", []Vehicle{{ID: "v", Capacity: -1}}, nil, ProblemOptions{}, "vehicles[0].capacity"},
		{"duplicate job", nil, []Job{okJ, okJ}, ProblemOptions{}, "jobs[1].id"},
		{"negative demand", nil, []Job{{ID: "j", Demand: -2}}, ProblemOptions{}, "jobs[0].demand"},
		{"nan coordinate", nil, []Job{{ID: "j", Location: Location{Lat: math.NaN()}}}, ProblemOptions{}, "jobs[0].location"},
		{"inf start", []Vehicle{{ID: "v", Start: Location{Lon: math.Inf(1)}}}, nil, ProblemOptions{}, "vehicles[0].startLocation"},
		{"latitude out of range", nil, []Job{{ID: "j", Location: Location{Lat: 91}}}, ProblemOptions{Metric: MetricHaversine}, "jobs[0].location"},
		{"unknown kind", nil, []Job{{ID: "j", Kind: JobKind(7)}}, ProblemOptions{}, "jobs[0].kind"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewProblem(tc.vehicles, tc.jobs, tc.opts)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrValidation))
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			require.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestNewProblemCopiesInput(t *testing.T) {
	vs := []Vehicle{{ID: "b", Capacity: 1}, {ID: "a", Capacity: 1}}
	js := []Job{{ID: "y"}, {ID: "x"}}
	p, err := NewProblem(vs, js, ProblemOptions{})
	require.NoError(t, err)
	vs[0].ID = "changed"
	require.Equal(t, "b", p.Vehicle(0).ID)
	require.Equal(t, []int{1, 0}, p.vehicleRank)
	require.Equal(t, []int{1, 0}, p.jobRank)
}

func TestParseKindAndMetric(t *testing.T) {
	k, err := ParseJobKind("Delivery")
	require.NoError(t, err)
	require.Equal(t, JobDelivery, k)
	k, err = ParseJobKind("")
	require.NoError(t, err)
	require.Equal(t, JobService, k)
	_, err = ParseJobKind("drop")
	require.ErrorIs(t, err, ErrValidation)

	m, err := ParseMetric("haversine")
	require.NoError(t, err)
	require.Equal(t, MetricHaversine, m)
	_, err = ParseMetric("manhattan")
	require.ErrorIs(t, err, ErrValidation)
}

func TestMetricDistance(t *testing.T) {
	require.InDelta(t, 5.0, MetricEuclidean.distance(Location{}, Location{Lat: 3, Lon: 4}), 1e-12)
	// one degree of latitude is about 111.2 km
	require.InDelta(t, 111195, MetricHaversine.distance(Location{}, Location{Lat: 1}), 100)
}
