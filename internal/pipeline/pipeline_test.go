package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/forest-loss-pipeline/internal/config"
	"github.com/couchcryptid/forest-loss-pipeline/internal/domain"
	"github.com/couchcryptid/forest-loss-pipeline/internal/model"
	"github.com/couchcryptid/forest-loss-pipeline/internal/observability"
	"github.com/couchcryptid/forest-loss-pipeline/internal/pipeline"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var frozen = time.Date(2024, time.June, 3, 9, 30, 0, 0, time.UTC)

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() {
		domain.SetClock(nil)
	})
}

func twoRowCatalog() []domain.RawSheet {
	return []domain.RawSheet{{
		Name:   "PADURI VIRGINE",
		Header: catalogHeader,
		Rows: [][]string{
			catalogRow(1, "Codrii Retezatului", 45.37, 22.84, "Hunedoara", "120.5"),
			catalogRow(2, "Valea Pietrele", 45.38, 22.87, "Hunedoara", "N/A"),
			totalRow(),
		},
	}}
}

func TestCleaner_Run(t *testing.T) {
	freezeClock(t)
	metrics := observability.NewMetricsForTesting()
	out := &memCleaned{}

	c := pipeline.NewCleaner(&fakeCatalog{sheets: twoRowCatalog()}, out, discardLogger(), metrics)
	records, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, records, out.records)
	assert.Equal(t, 1, out.loads)
	assert.False(t, records[1].AreaHa.Valid, "N/A area is missing")

	assert.Equal(t, 2.0, metricValue(t, metrics.RecordsCleaned))
	assert.Equal(t, 3.0, metricValue(t, metrics.RowsRead.WithLabelValues("PADURI VIRGINE")))
	assert.Equal(t, 1.0, metricValue(t, metrics.RowsDropped.WithLabelValues("total_row")))
	assert.Equal(t, 1.0, metricValue(t, metrics.MissingValues.WithLabelValues(domain.ColArea)))
	assert.Equal(t, float64(frozen.Unix()), metricValue(t, metrics.LastSuccess.WithLabelValues(pipeline.StageClean)))
}

func TestCleaner_Run_NothingWrittenOnError(t *testing.T) {
	sheets := twoRowCatalog()
	sheets[0].Rows[1][5] = "45,30,15"

	tests := []struct {
		name    string
		catalog *fakeCatalog
		target  error
	}{
		{"bad coordinate", &fakeCatalog{sheets: sheets}, domain.ErrInvalidCoordinateFormat},
		{"extract failure", &fakeCatalog{err: errors.New("disk gone")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &memCleaned{}
			c := pipeline.NewCleaner(tt.catalog, out, discardLogger(), observability.NewMetricsForTesting())

			_, err := c.Run(context.Background())
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			assert.Zero(t, out.loads)
		})
	}
}

func TestCleaner_Run_LoadError(t *testing.T) {
	out := &memCleaned{err: errors.New("read-only")}
	c := pipeline.NewCleaner(&fakeCatalog{sheets: twoRowCatalog()}, out, discardLogger(), observability.NewMetricsForTesting())

	_, err := c.Run(context.Background())
	assert.ErrorContains(t, err, "load cleaned table")
}

func cleanedSites() []domain.ForestSiteRecord {
	return []domain.ForestSiteRecord{
		{ID: 1, Name: "Codrii Retezatului", Latitude: 45.37, Longitude: 22.84, County: "Hunedoara"},
		{ID: 2, Name: "Valea Pietrele", Latitude: 45.38, Longitude: 22.87, County: "Hunedoara"},
		{ID: 1, Name: "Izvoarele Nerei", Latitude: 44.95, Longitude: 22.05, County: "Caras Severin"},
		{ID: 3, Name: "Padurea Sacarimb", Latitude: 45.95, Longitude: 22.95, County: "Cluj"},
		{ID: 4, Name: "Dincolo de margine", Latitude: 47.5, Longitude: 22.5, County: "Hunedoara"},
	}
}

// insideRomania returns fn's value for points south of 47N, missing otherwise.
func insideRomania(fn func(domain.GeoPoint) float64) *fakeSampler {
	return &fakeSampler{fn: func(p domain.GeoPoint) domain.OptionalFloat {
		if p.Lat > 47 {
			return domain.Missing()
		}
		return domain.Float(fn(p))
	}}
}

func TestJoiner_Run(t *testing.T) {
	freezeClock(t)
	metrics := observability.NewMetricsForTesting()
	var order []string
	csv := &recordingLoader{name: "csv", log: &order}
	kafka := &recordingLoader{name: "kafka", log: &order}

	treeCover := insideRomania(func(p domain.GeoPoint) float64 { return 80 })
	lossYear := insideRomania(func(p domain.GeoPoint) float64 {
		if p.Lat > 45 {
			return 17
		}
		return 0
	})

	j := pipeline.NewJoiner(&memCleaned{records: cleanedSites()}, treeCover, lossYear,
		[]string{"Hunedoara", "Caras Severin"}, discardLogger(), metrics, csv, kafka)
	joined, err := j.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, joined, 4, "Cluj filtered out")
	assert.Equal(t, []string{"csv", "kafka"}, order)
	assert.Equal(t, joined, csv.records)
	assert.Equal(t, joined, kafka.records)

	assert.Equal(t, domain.Float(80), joined[0].TreeCover)
	assert.Equal(t, domain.LossYear(17), joined[0].LossYear)
	assert.Equal(t, domain.LossYear(0), joined[2].LossYear)
	assert.Equal(t, "Izvoarele Nerei", joined[2].Name)
	assert.False(t, joined[3].TreeCover.Valid, "outside extent")
	assert.False(t, joined[3].LossYear.Valid, "outside extent")

	assert.Equal(t, 4.0, metricValue(t, metrics.RecordsJoined))
	assert.Equal(t, 3.0, metricValue(t, metrics.RasterSamples.WithLabelValues(pipeline.LayerTreeCover, "value")))
	assert.Equal(t, 1.0, metricValue(t, metrics.RasterSamples.WithLabelValues(pipeline.LayerLossYear, "outside")))
	assert.Equal(t, float64(frozen.Unix()), metricValue(t, metrics.LastSuccess.WithLabelValues(pipeline.StageJoin)))

	assert.False(t, treeCover.closed, "caller owns samplers")
}

func TestJoiner_Run_NoCountyFilter(t *testing.T) {
	sampler := insideRomania(func(domain.GeoPoint) float64 { return 1 })
	j := pipeline.NewJoiner(&memCleaned{records: cleanedSites()}, sampler, sampler, nil,
		discardLogger(), observability.NewMetricsForTesting())

	joined, err := j.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, joined, 5)
}

func TestJoiner_Run_Errors(t *testing.T) {
	good := insideRomania(func(domain.GeoPoint) float64 { return 1 })
	duplicate := append(cleanedSites(), domain.ForestSiteRecord{ID: 1, Name: "Codrii Retezatului", County: "Hunedoara"})

	tests := []struct {
		name      string
		records   []domain.ForestSiteRecord
		treeCover *fakeSampler
		lossYear  *fakeSampler
		loadErr   error
		target    error
		wantLoads []string
	}{
		{name: "sampler failure", records: cleanedSites(), treeCover: good, lossYear: &fakeSampler{err: errors.New("read block")}},
		{name: "value count mismatch", records: cleanedSites(), treeCover: &fakeSampler{fn: good.fn, short: true}, lossYear: good},
		{name: "duplicate key", records: duplicate, treeCover: good, lossYear: good, target: domain.ErrDuplicateSiteKey},
		{name: "first loader fails", records: cleanedSites(), treeCover: good, lossYear: good, loadErr: errors.New("disk full"), wantLoads: []string{"csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var order []string
			csv := &recordingLoader{name: "csv", log: &order, err: tt.loadErr}
			kafka := &recordingLoader{name: "kafka", log: &order}

			j := pipeline.NewJoiner(&memCleaned{records: tt.records}, tt.treeCover, tt.lossYear, nil,
				discardLogger(), observability.NewMetricsForTesting(), csv, kafka)
			_, err := j.Run(context.Background())
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			assert.Equal(t, tt.wantLoads, order, "kafka never runs before a successful csv write")
		})
	}
}

func TestCountySubset_Run(t *testing.T) {
	freezeClock(t)
	metrics := observability.NewMetricsForTesting()
	cfg := config.Defaults().Boundary
	ext := &fakeBoundary{n: 2}

	n, err := pipeline.NewCountySubset(ext, cfg, discardLogger(), metrics).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{cfg.Path, "NAME_1", "[Cluj Alba]", "cluj_alba.gpkg"}, ext.args)
	assert.Equal(t, float64(frozen.Unix()), metricValue(t, metrics.LastSuccess.WithLabelValues(pipeline.StageCounties)))

	_, err = pipeline.NewCountySubset(&fakeBoundary{err: errors.New("no driver")}, cfg, discardLogger(), metrics).Run(context.Background())
	assert.ErrorContains(t, err, "extract boundaries")
}

// trainingRecords returns n labelled sites separable on latitude plus one
// unlabelled site and one without tree cover.
func trainingRecords(n int) []domain.GeoJoinedRecord {
	records := make([]domain.GeoJoinedRecord, 0, n+2)
	for i := 0; i < n; i++ {
		lat := 45 + float64(i)*0.01
		label := domain.LossYear(0)
		if i >= n/2 {
			label = domain.LossYear(5)
		}
		records = append(records, joinedRecord(i+1, lat, 60+float64(i), label))
	}
	records = append(records, joinedRecord(n+1, 45.5, 70, domain.LossYearCode{}))
	noCover := joinedRecord(n+2, 45.6, 0, domain.LossYear(5))
	noCover.TreeCover = domain.Missing()
	return append(records, noCover)
}

func testTrainConfig() config.TrainConfig {
	return config.TrainConfig{Seed: 42, TestFraction: 0.1, Trees: 20}
}

func TestTrainer_Run(t *testing.T) {
	freezeClock(t)
	metrics := observability.NewMetricsForTesting()
	source := &memJoined{records: trainingRecords(30)}

	res, err := pipeline.NewTrainer(source, testTrainConfig(), discardLogger(), metrics).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, source.reads, "table is reloaded for the secondary evaluation")
	_, err = uuid.Parse(res.RunID)
	assert.NoError(t, err)
	assert.Equal(t, frozen, res.GeneratedAt)

	assert.Equal(t, model.ExclusionStats{MissingLabel: 1, MissingCovariate: 1}, res.Excluded)
	assert.Equal(t, 27, res.TrainSize)
	assert.Equal(t, 3, res.TestSize)
	assert.Equal(t, 30, res.Secondary)

	assert.Equal(t, 3, res.Baseline.Support)
	assert.Equal(t, 30, res.Reloaded.Support)
	assert.Equal(t, 3, res.Final.Support)
	assert.GreaterOrEqual(t, res.Reloaded.Accuracy, 0.8)

	assert.Equal(t, res.Baseline.Accuracy, metricValue(t, metrics.Accuracy.WithLabelValues("baseline")))
	assert.Equal(t, 27.0, metricValue(t, metrics.TrainingSamples.WithLabelValues("train")))
	assert.Equal(t, 1.0, metricValue(t, metrics.ExcludedSamples.WithLabelValues("missing_label")))
}

func TestTrainer_Run_LogsFittedRanges(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := pipeline.NewTrainer(&memJoined{records: trainingRecords(30)}, testTrainConfig(),
		logger, observability.NewMetricsForTesting()).Run(context.Background())
	require.NoError(t, err)

	out := buf.String()
	assert.Equal(t, len(model.FeatureNames), strings.Count(out, `"msg":"feature scaled"`))
	for _, name := range model.FeatureNames {
		assert.Contains(t, out, `"feature":"`+name+`"`)
	}
}

func TestTrainer_Run_Deterministic(t *testing.T) {
	run := func() pipeline.TrainingResult {
		res, err := pipeline.NewTrainer(&memJoined{records: trainingRecords(30)}, testTrainConfig(),
			discardLogger(), observability.NewMetricsForTesting()).Run(context.Background())
		require.NoError(t, err)
		return res
	}
	a, b := run(), run()
	assert.Equal(t, a.Baseline, b.Baseline)
	assert.Equal(t, a.Reloaded, b.Reloaded)
	assert.Equal(t, a.Final, b.Final)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestTrainer_Run_Errors(t *testing.T) {
	unlabelled := []domain.GeoJoinedRecord{joinedRecord(1, 45, 50, domain.LossYearCode{})}

	tests := []struct {
		name   string
		source *memJoined
		target error
	}{
		{"no labelled records", &memJoined{records: unlabelled}, model.ErrEmptyTrainingSet},
		{"empty table", &memJoined{}, model.ErrEmptyTrainingSet},
		{"single sample cannot split", &memJoined{records: trainingRecords(1)[:1]}, model.ErrEmptyTrainingSet},
		{"extract failure", &memJoined{err: errors.New("missing file")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pipeline.NewTrainer(tt.source, testTrainConfig(), discardLogger(), observability.NewMetricsForTesting()).Run(context.Background())
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestTrainingResult_WriteReport(t *testing.T) {
	report, err := model.Evaluate([]int{0, 5}, []int{0, 5})
	require.NoError(t, err)
	res := pipeline.TrainingResult{
		RunID:       "run-1",
		GeneratedAt: frozen,
		TrainSize:   18,
		TestSize:    2,
		Secondary:   20,
		Baseline:    report,
		Reloaded:    report,
		Final:       report,
	}

	var b strings.Builder
	require.NoError(t, res.WriteReport(&b))
	out := b.String()
	assert.True(t, strings.HasPrefix(out, "run run-1 at 2024-06-03T09:30:00Z: 18 train, 2 test, 20 reloaded\n"))
	assert.Contains(t, out, "Baseline model on test set\n")
	assert.Contains(t, out, "Baseline model on reloaded set\n")
	assert.Contains(t, out, "Retrained model on test set\n")
	assert.Equal(t, 3, strings.Count(out, "weighted avg"))
}
