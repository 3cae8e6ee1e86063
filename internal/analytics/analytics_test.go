package analytics

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixtureShots() []domain.Shot {
	return []domain.Shot{
		{ID: "a", Club: domain.Club7Iron, BallSpeed: 118, Carry: 148, TotalDistance: domain.Float(156), LaunchAngle: domain.Float(18), SessionFile: "s1.csv", ShotTime: date(2024, 5, 1).Add(10 * time.Hour)},
		{ID: "b", Club: domain.Club7Iron, BallSpeed: 122, Carry: 152, TotalDistance: domain.Float(160), LaunchAngle: domain.Float(17), SessionFile: "s1.csv", ShotTime: date(2024, 5, 1).Add(11 * time.Hour)},
		{ID: "c", Club: domain.ClubDriver, BallSpeed: 150, Carry: 240, TotalDistance: domain.Float(262), SessionFile: "s2.csv", ShotTime: date(2024, 5, 3)},
		{ID: "d", Club: domain.ClubPitchingWedge, BallSpeed: 90, Carry: 110, SessionFile: "s2.csv"},
		{ID: "e", Club: domain.Club7Iron, BallSpeed: 120, Carry: 150, SessionFile: "s3.csv", ShotTime: date(2024, 5, 3)},
	}
}

func TestFilter_Apply(t *testing.T) {
	shots := fixtureShots()

	t.Run("zero filter keeps everything", func(t *testing.T) {
		assert.Len(t, Filter{}.Apply(shots), len(shots))
	})

	t.Run("clubs", func(t *testing.T) {
		got := Filter{Clubs: []domain.Club{domain.Club7Iron}}.Apply(shots)
		require.Len(t, got, 3)
		for _, s := range got {
			assert.Equal(t, domain.Club7Iron, s.Club)
		}
	})

	t.Run("date range is inclusive and drops undated", func(t *testing.T) {
		got := Filter{From: date(2024, 5, 1), To: date(2024, 5, 1).Add(23 * time.Hour)}.Apply(shots)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].ID)
		assert.Equal(t, "b", got[1].ID)

		got = Filter{From: date(2024, 5, 2)}.Apply(shots)
		assert.Len(t, got, 2)
	})

	t.Run("speed range", func(t *testing.T) {
		got := Filter{MinBallSpeed: domain.Float(119), MaxBallSpeed: domain.Float(150)}.Apply(shots)
		ids := make([]string, 0, len(got))
		for _, s := range got {
			ids = append(ids, s.ID)
		}
		assert.Equal(t, []string{"b", "c", "e"}, ids)
	})
}

func TestSummarize(t *testing.T) {
	shots := fixtureShots()
	got := Summarize(shots)

	require.Len(t, got, 3)
	assert.Equal(t, domain.ClubDriver, got[0].Club)
	assert.Equal(t, domain.Club7Iron, got[1].Club)
	assert.Equal(t, domain.ClubPitchingWedge, got[2].Club)

	total := 0
	for _, cs := range got {
		total += cs.Count
	}
	assert.Equal(t, len(shots), total)

	iron := got[1].Metrics[domain.FieldCarry]
	assert.InDelta(t, 150, iron.Mean, 1e-9)
	assert.InDelta(t, 2, iron.Std, 1e-9)
	assert.Equal(t, 148.0, iron.Min)
	assert.Equal(t, 152.0, iron.Max)
	assert.Equal(t, 3, iron.Count)

	la := got[1].Metrics[domain.FieldLaunchAngle]
	assert.Equal(t, 2, la.Count)

	single := got[0].Metrics[domain.FieldBallSpeed]
	assert.Equal(t, 0.0, single.Std)

	_, ok := got[2].Metrics[domain.FieldClubSpeed]
	assert.False(t, ok)
}

func TestSummarize_CountsSumAfterFilter(t *testing.T) {
	shots := Filter{MinBallSpeed: domain.Float(100)}.Apply(fixtureShots())
	total := 0
	for _, cs := range Summarize(shots) {
		total += cs.Count
	}
	assert.Equal(t, len(shots), total)
}

func TestOverview(t *testing.T) {
	p := Overview(fixtureShots())
	assert.Equal(t, 5, p.TotalShots)
	assert.InDelta(t, 160, p.AvgCarry, 1e-9)
	assert.InDelta(t, 120, p.AvgBallSpeed, 1e-9)
	require.NotNil(t, p.AvgLaunchAngle)
	assert.InDelta(t, 17.5, *p.AvgLaunchAngle, 1e-9)
	assert.Equal(t, 3, p.Sessions)
	assert.Equal(t, []domain.Club{domain.ClubDriver, domain.Club7Iron, domain.ClubPitchingWedge}, p.Clubs)
	require.NotNil(t, p.From)
	assert.Equal(t, date(2024, 5, 1), *p.From)
	assert.Equal(t, date(2024, 5, 3), *p.To)

	empty := Overview(nil)
	assert.Equal(t, 0, empty.TotalShots)
	assert.Empty(t, empty.Clubs)
}

func TestFrequency(t *testing.T) {
	want := []ClubCount{
		{Club: domain.ClubDriver, Count: 1},
		{Club: domain.Club7Iron, Count: 3},
		{Club: domain.ClubPitchingWedge, Count: 1},
	}
	if diff := cmp.Diff(want, Frequency(fixtureShots())); diff != "" {
		t.Errorf("Frequency mismatch (-want +got):\n%s", diff)
	}
}

func TestAverageRoll(t *testing.T) {
	got := AverageRoll(fixtureShots())
	require.Len(t, got, 2)
	assert.Equal(t, domain.ClubDriver, got[0].Club)
	assert.InDelta(t, 22, got[0].Value, 1e-9)
	assert.Equal(t, domain.Club7Iron, got[1].Club)
	assert.InDelta(t, 8, got[1].Value, 1e-9)
	assert.Equal(t, 2, got[1].Count)
}

func TestCarryTrend(t *testing.T) {
	got := CarryTrend(fixtureShots())
	want := []TrendPoint{
		{Date: date(2024, 5, 1), Club: domain.Club7Iron, AvgCarry: 150, Count: 2},
		{Date: date(2024, 5, 3), Club: domain.ClubDriver, AvgCarry: 240, Count: 1},
		{Date: date(2024, 5, 3), Club: domain.Club7Iron, AvgCarry: 150, Count: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CarryTrend mismatch (-want +got):\n%s", diff)
	}
}

func TestDistribution(t *testing.T) {
	got, err := Distribution(fixtureShots(), domain.FieldRoll)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []float64{8, 8}, got[1].Values)

	_, err = Distribution(fixtureShots(), "swing_thoughts")
	require.ErrorIs(t, err, ErrUnknownMetric)
}

func TestScatter(t *testing.T) {
	shots := []domain.Shot{
		{ID: "a", Club: domain.Club7Iron, BallSpeed: 100, Carry: 210},
		{ID: "b", Club: domain.ClubDriver, BallSpeed: 120, Carry: 250},
		{ID: "c", Club: domain.Club7Iron, BallSpeed: 110, Carry: 230},
		{ID: "d", Club: domain.Club7Iron, BallSpeed: 105, Carry: 200, LaunchAngle: domain.Float(18)},
	}

	got, err := Scatter(shots[:3], domain.FieldBallSpeed, domain.FieldCarry)
	require.NoError(t, err)
	require.Len(t, got.Series, 2)
	assert.Equal(t, domain.ClubDriver, got.Series[0].Club)
	assert.Equal(t, []Point{{X: 100, Y: 210}, {X: 110, Y: 230}}, got.Series[1].Points)
	require.NotNil(t, got.Fit)
	assert.InDelta(t, 2, got.Fit.Slope, 1e-9)
	assert.InDelta(t, 10, got.Fit.Intercept, 1e-9)
	assert.InDelta(t, 1, got.Fit.R2, 1e-9)
	assert.Equal(t, 3, got.Fit.N)

	t.Run("shots missing a metric are skipped", func(t *testing.T) {
		got, err := Scatter(shots, domain.FieldLaunchAngle, domain.FieldCarry)
		require.NoError(t, err)
		require.Len(t, got.Series, 1)
		assert.Len(t, got.Series[0].Points, 1)
		assert.Nil(t, got.Fit, "one point has no line")
	})

	t.Run("constant x has no fit", func(t *testing.T) {
		flat := []domain.Shot{
			{Club: domain.Club7Iron, BallSpeed: 120, Carry: 150},
			{Club: domain.Club7Iron, BallSpeed: 120, Carry: 155},
		}
		got, err := Scatter(flat, domain.FieldBallSpeed, domain.FieldCarry)
		require.NoError(t, err)
		assert.Nil(t, got.Fit)
	})

	t.Run("unknown metric", func(t *testing.T) {
		_, err := Scatter(shots, domain.FieldBallSpeed, "swing_thoughts")
		require.ErrorIs(t, err, ErrUnknownMetric)
	})
}

func TestSortShots(t *testing.T) {
	shots := fixtureShots()

	got, err := SortShots(shots, domain.FieldCarry, true)
	require.NoError(t, err)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "d", got[len(got)-1].ID)

	got, err = SortShots(shots, domain.FieldLaunchAngle, false)
	require.NoError(t, err)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)

	got, err = SortShots(shots, "club", false)
	require.NoError(t, err)
	assert.Equal(t, domain.ClubDriver, got[0].Club)
	assert.Equal(t, "a", shots[0].ID, "input must not be reordered")

	_, err = SortShots(shots, "bogus", false)
	require.Error(t, err)
}

func TestSortShots_UndatedLastBothDirections(t *testing.T) {
	shots := fixtureShots()

	asc, err := SortShots(shots, "date", false)
	require.NoError(t, err)
	assert.Equal(t, "a", asc[0].ID)
	assert.Equal(t, "d", asc[len(asc)-1].ID)

	desc, err := SortShots(shots, "date", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "e"}, []string{desc[0].ID, desc[1].ID})
	assert.Equal(t, "d", desc[len(desc)-1].ID)
}

func TestProject(t *testing.T) {
	rows, err := Project(fixtureShots()[:1], []string{"club", domain.FieldCarry, domain.FieldClubSpeed})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.Club7Iron, rows[0]["club"])
	assert.Equal(t, 148.0, rows[0][domain.FieldCarry])
	assert.Nil(t, rows[0][domain.FieldClubSpeed])

	_, err = Project(fixtureShots(), []string{"nope"})
	require.Error(t, err)
}
