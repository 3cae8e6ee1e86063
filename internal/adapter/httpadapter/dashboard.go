package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/couchcryptid/launch-monitor-etl/internal/adapter/sessions"
	"github.com/couchcryptid/launch-monitor-etl/internal/analytics"
	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
	"github.com/couchcryptid/launch-monitor-etl/internal/regression"
)

// DataSource supplies the cleaned shots the dashboard reads.
type DataSource interface {
	Shots(ctx context.Context) ([]domain.Shot, error)
	Refresh()
}

const (
	dateLayout      = "2006-01-02"
	faceEstimators  = 100
	errNoData       = "no data available"
	defaultRowLimit = 500
)

var errBadQuery = errors.New("bad query")

type dashboard struct {
	data   DataSource
	canon  *domain.Canonicalizer
	logger *slog.Logger
}

// newDashboard serves data. canon resolves club filters the same way the
// ETL resolved the labels; nil selects the built-in table.
func newDashboard(data DataSource, canon *domain.Canonicalizer, logger *slog.Logger) *dashboard {
	if canon == nil {
		canon = domain.DefaultCanonicalizer
	}
	return &dashboard{data: data, canon: canon, logger: logger.With("component", "dashboard")}
}

func (d *dashboard) routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/performance", d.withShots(d.performance))
		r.Get("/summary", d.withShots(d.summary))
		r.Get("/shots", d.withShots(d.shots))
		r.Route("/charts", func(r chi.Router) {
			r.Get("/frequency", d.withShots(d.frequency))
			r.Get("/roll", d.withShots(d.roll))
			r.Get("/trend", d.withShots(d.trend))
			r.Get("/distribution", d.withShots(d.distribution))
			r.Get("/scatter", d.withShots(d.scatter))
		})
		r.Post("/refresh", d.refresh)
		r.Post("/estimate/face", d.withShots(d.estimateFace))
	})
	r.Get("/export.csv", d.withShots(d.export))

	return r
}

type shotsHandler func(w http.ResponseWriter, r *http.Request, shots []domain.Shot)

// withShots loads and filters the data set for a request. Empty results
// answer 404 before the handler runs.
func (d *dashboard) withShots(next shotsHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r, d.canon)
		if err != nil {
			d.fail(w, r, http.StatusBadRequest, err)
			return
		}
		shots, err := d.data.Shots(r.Context())
		if err != nil && !errors.Is(err, sessions.ErrNoData) {
			d.fail(w, r, http.StatusInternalServerError, err)
			return
		}
		shots = filter.Apply(shots)
		if len(shots) == 0 {
			d.fail(w, r, http.StatusNotFound, errors.New(errNoData))
			return
		}
		next(w, r, shots)
	}
}

func (d *dashboard) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		d.logger.ErrorContext(r.Context(), "dashboard request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": err.Error()})
}

func (d *dashboard) performance(w http.ResponseWriter, r *http.Request, shots []domain.Shot) {
	render.JSON(w, r, analytics.Overview(shots))
}

func (d *dashboard) summary(w http.ResponseWriter, r *http.Request, shots []domain.Shot) {
	render.JSON(w, r, analytics.Summarize(shots))
}

// shots serves the sortable table: ?sort=<field>&desc=true&columns=a,b&limit=N.
func (d *dashboard) shots(w http.ResponseWriter, r *http.Request, shots []domain.Shot) {
	q := r.URL.Query()
	desc, _ := strconv.ParseBool(q.Get("desc"))
	sorted, err := analytics.SortShots(shots, q.Get("sort"), desc)
	if err != nil {
		d.fail(w, r, http.StatusBadRequest, err)
		return
	}

	limit := defaultRowLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			d.fail(w, r, http.StatusBadRequest, fmt.Errorf("%w: limit %q", errBadQuery, v))
			return
		}
		limit = n
	}
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	rows, err := analytics.Project(sorted, splitList(q.Get("columns")))
	if err != nil {
		d.fail(w, r, http.StatusBadRequest, err)
		return
	}
	render.JSON(w, r, map[string]any{"total": len(shots), "rows": rows})
}

func (d *dashboard) frequency(w http.ResponseWriter, r *http.Request, shots []domain.Shot) {
	render.JSON(w, r, analytics.Frequency(shots))
}

func (d *dashboard) roll(w http.ResponseWriter, r *http.Request, shots []domain.Shot) {
	render.JSON(w, r, analytics.AverageRoll(shots))
}

func (d *dashboard) trend(w http.ResponseWriter, r *http.Request, shots []domain.Shot) {
	render.JSON(w, r, analytics.CarryTrend(shots))
}

func (d *dashboard) distribution(w http.ResponseWriter, r *http.Request, shots []domain.Shot) {
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = domain.FieldCarry
	}
	series, err := analytics.Distribution(shots, metric)
	if err != nil {
		d.fail(w, r, http.StatusBadRequest, err)
		return
	}
	render.JSON(w, r, series)
}

// scatter defaults to ball speed against carry.
func (d *dashboard) scatter(w http.ResponseWriter, r *http.Request, shots []domain.Shot) {
	q := r.URL.Query()
	x, y := q.Get("x"), q.Get("y")
	if x == "" {
		x = domain.FieldBallSpeed
	}
	if y == "" {
		y = domain.FieldCarry
	}
	chart, err := analytics.Scatter(shots, x, y)
	if err != nil {
		d.fail(w, r, http.StatusBadRequest, err)
		return
	}
	render.JSON(w, r, chart)
}

func (d *dashboard) export(w http.ResponseWriter, r *http.Request, shots []domain.Shot) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="cleaned_shots.csv"`)
	if err := sessions.WriteCSV(w, shots); err != nil {
		d.logger.ErrorContext(r.Context(), "csv export failed", "error", err)
	}
}

func (d *dashboard) refresh(w http.ResponseWriter, r *http.Request) {
	d.data.Refresh()
	d.logger.InfoContext(r.Context(), "dashboard cache cleared")
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"status": "refreshed"})
}

type faceRequest struct {
	BallSpeed   *float64 `json:"ball_speed"`
	LaunchAngle *float64 `json:"launch_angle"`
	PushPull    *float64 `json:"push_pull"`
	SideSpin    *float64 `json:"side_spin"`
	BackSpin    *float64 `json:"back_spin"`
}

func (f faceRequest) inputs() (map[string]float64, error) {
	fields := map[string]*float64{
		domain.FieldBallSpeed:   f.BallSpeed,
		domain.FieldLaunchAngle: f.LaunchAngle,
		domain.FieldPushPull:    f.PushPull,
		domain.FieldSideSpin:    f.SideSpin,
		domain.FieldBackSpin:    f.BackSpin,
	}
	out := make(map[string]float64, len(fields))
	for _, name := range regression.FaceInputs {
		v := fields[name]
		if v == nil {
			return nil, fmt.Errorf("%w: %s is required", errBadQuery, name)
		}
		out[name] = *v
	}
	return out, nil
}

// estimateFace trains a forest on the filtered shots with measured face data
// and predicts face-to-target for the submitted launch metrics.
func (d *dashboard) estimateFace(w http.ResponseWriter, r *http.Request, shots []domain.Shot) {
	var req faceRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		d.fail(w, r, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadQuery, err))
		return
	}
	inputs, err := req.inputs()
	if err != nil {
		d.fail(w, r, http.StatusBadRequest, err)
		return
	}

	est, err := regression.TrainFaceEstimator(shots, faceEstimators, regression.DefaultSeed)
	if errors.Is(err, regression.ErrInsufficientData) {
		d.fail(w, r, http.StatusUnprocessableEntity, err)
		return
	}
	if err != nil {
		d.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	face, err := est.Predict(inputs)
	if err != nil {
		d.fail(w, r, http.StatusBadRequest, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"face_to_target": face,
		"training_shots": est.Trained(),
	})
}

// parseFilter reads from, to (YYYY-MM-DD), clubs (comma separated labels)
// and min_speed/max_speed (mph) from the query string.
func parseFilter(r *http.Request, canon *domain.Canonicalizer) (analytics.Filter, error) {
	q := r.URL.Query()
	var f analytics.Filter

	for key, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, fmt.Errorf("%w: %s %q is not YYYY-MM-DD", errBadQuery, key, v)
		}
		*dst = t
	}

	for _, label := range splitList(q.Get("clubs")) {
		club, ok := canon.Canonicalize(label)
		if !ok {
			return f, fmt.Errorf("%w: unknown club %q", errBadQuery, label)
		}
		f.Clubs = append(f.Clubs, club)
	}

	for key, dst := range map[string]**float64{"min_speed": &f.MinBallSpeed, "max_speed": &f.MaxBallSpeed} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n := domain.ParseNumber(v)
		if n == nil {
			return f, fmt.Errorf("%w: %s %q is not a number", errBadQuery, key, v)
		}
		*dst = n
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
