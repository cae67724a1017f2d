package pipeline_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/couchcryptid/forest-loss-pipeline/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type fakeCatalog struct {
	sheets []domain.RawSheet
	err    error
}

func (f *fakeCatalog) ExtractSheets(_ context.Context) ([]domain.RawSheet, error) {
	return f.sheets, f.err
}

type memCleaned struct {
	records []domain.ForestSiteRecord
	loads   int
	err     error
}

func (m *memCleaned) LoadCleaned(_ context.Context, records []domain.ForestSiteRecord) error {
	if m.err != nil {
		return m.err
	}
	m.loads++
	m.records = records
	return nil
}

func (m *memCleaned) ExtractCleaned(_ context.Context) ([]domain.ForestSiteRecord, error) {
	return m.records, m.err
}

// recordingLoader appends its name to a shared log on every load.
type recordingLoader struct {
	name    string
	log     *[]string
	records []domain.GeoJoinedRecord
	err     error
}

func (r *recordingLoader) LoadJoined(_ context.Context, records []domain.GeoJoinedRecord) error {
	*r.log = append(*r.log, r.name)
	if r.err != nil {
		return r.err
	}
	r.records = records
	return nil
}

type memJoined struct {
	records []domain.GeoJoinedRecord
	reads   int
	err     error
}

func (m *memJoined) ExtractJoined(_ context.Context) ([]domain.GeoJoinedRecord, error) {
	m.reads++
	return m.records, m.err
}

// fakeSampler evaluates fn at each point. short drops the last value.
type fakeSampler struct {
	fn     func(domain.GeoPoint) domain.OptionalFloat
	short  bool
	err    error
	closed bool
}

func (f *fakeSampler) Sample(_ context.Context, points []domain.GeoPoint) ([]domain.OptionalFloat, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.OptionalFloat, 0, len(points))
	for _, p := range points {
		out = append(out, f.fn(p))
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeSampler) Close() error {
	f.closed = true
	return nil
}

type fakeBoundary struct {
	n    int
	err  error
	args []string
}

func (f *fakeBoundary) Extract(_ context.Context, src, attribute string, values []string, dst string) (int, error) {
	f.args = []string{src, attribute, fmt.Sprint(values), dst}
	return f.n, f.err
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func metricValue(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, m.Write(&pb))
	if c := pb.GetCounter(); c != nil {
		return c.GetValue()
	}
	return pb.GetGauge().GetValue()
}

var catalogHeader = []string{
	domain.ColID, domain.ColName + " ", domain.ColForestPlanEdition, domain.ColStudyEdition,
	domain.ColPropertyType, domain.ColLatitudeDMS, domain.ColLongitudeDMS, domain.ColAltitudeMin,
	domain.ColAltitudeMax, domain.ColCounty, domain.ColAdministrator, domain.ColProductionUnit,
	domain.ColCompartment, domain.ColForestType, domain.ColArea,
	domain.ColNonNaturalCompartments, domain.ColNonNaturalArea,
}

func catalogRow(id int, name string, lat, lon float64, county, area string) []string {
	return []string{
		fmt.Sprint(id), name, "2014", "2015", "publica",
		domain.DecimalToDMS(lat).String(), domain.DecimalToDMS(lon).String(), "900", "1500", county,
		"DS " + county, "V", "12A", "4111", area,
		"", "",
	}
}

func totalRow() []string {
	row := make([]string, len(catalogHeader))
	row[0] = "TOTAL"
	return row
}

func joinedRecord(id int, lat, cover float64, loss domain.LossYearCode) domain.GeoJoinedRecord {
	return domain.GeoJoinedRecord{
		ForestSiteRecord: domain.ForestSiteRecord{
			ID:          id,
			Name:        fmt.Sprintf("Padurea %02d", id),
			Latitude:    lat,
			Longitude:   22.5,
			County:      "Hunedoara",
			AltitudeMin: domain.Float(800),
			AltitudeMax: domain.Float(1400),
			AreaHa:      domain.Float(float64(10 + id%7)),
		},
		TreeCover: domain.Float(cover),
		LossYear:  loss,
	}
}
