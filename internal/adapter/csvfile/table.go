// Package csvfile persists the cleaned and joined site tables as CSV.
package csvfile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/couchcryptid/forest-loss-pipeline/internal/domain"
	"github.com/gocarina/gocsv"
	"github.com/google/renameio/v2"
)

// ErrHeaderMismatch is returned when a table's header differs from the
// expected column set.
var ErrHeaderMismatch = errors.New("unexpected csv header")

func init() {
	// Several catalog column names contain commas, which gocsv would
	// otherwise read as tag options.
	gocsv.TagSeparator = "|"
}

// SiteRow is the CSV shape of domain.ForestSiteRecord. Tags must match
// domain.CleanedColumns in order.
type SiteRow struct {
	ID                     int                  `csv:"Nr. crt."`
	Name                   string               `csv:"Numele padurii virgine si/sau cvasivirgine"`
	ForestPlanEdition      string               `csv:"Fundamentat in baza Amenaj silvic, editia"`
	StudyEdition           string               `csv:"Fundamentat in baza Studiu de fundam, editia"`
	PropertyType           string               `csv:"Tipul de proprietate"`
	Latitude               float64              `csv:"Latitude"`
	Longitude              float64              `csv:"Longitude"`
	AltitudeMin            domain.OptionalFloat `csv:"Altitudine min"`
	AltitudeMax            domain.OptionalFloat `csv:"Altitudine max"`
	County                 string               `csv:"Localizare administrativa Judet"`
	Administrator          string               `csv:"Detinator Admin OS/OSP"`
	ProductionUnit         string               `csv:"UP"`
	Compartment            string               `csv:"u.a."`
	ForestType             string               `csv:"TP"`
	AreaHa                 domain.OptionalFloat `csv:"S (ha)"`
	NonNaturalCompartments string               `csv:"din care: suprafete care nu corespund criteriului de naturalitate u.a."`
	NonNaturalArea         string               `csv:"din care: suprafete care nu corespund criteriului de naturalitate S (ha)"`
}

// JoinedSiteRow is the CSV shape of domain.GeoJoinedRecord. The embedded
// row is exported so gocsv flattens its columns.
type JoinedSiteRow struct {
	SiteRow
	TreeCover domain.OptionalFloat `csv:"tree_cover"`
	LossYear  domain.LossYearCode  `csv:"loss_year"`
}

func toSiteRow(r domain.ForestSiteRecord) SiteRow {
	return SiteRow(r)
}

func (r SiteRow) record() domain.ForestSiteRecord {
	return domain.ForestSiteRecord(r)
}

// CleanedTable reads and writes the cleaned catalog.
// It implements pipeline.CleanedLoader and pipeline.CleanedExtractor.
type CleanedTable struct {
	path   string
	logger *slog.Logger
}

func NewCleanedTable(path string, logger *slog.Logger) *CleanedTable {
	return &CleanedTable{path: path, logger: logger}
}

// LoadCleaned replaces the table with records.
func (t *CleanedTable) LoadCleaned(_ context.Context, records []domain.ForestSiteRecord) error {
	rows := make([]SiteRow, len(records))
	for i, r := range records {
		rows[i] = toSiteRow(r)
	}
	if err := writeAtomic(t.path, &rows); err != nil {
		return fmt.Errorf("write cleaned table: %w", err)
	}
	t.logger.Info("cleaned table written", "path", t.path, "records", len(rows))
	return nil
}

// ExtractCleaned reads the table, requiring the exact cleaned header.
func (t *CleanedTable) ExtractCleaned(_ context.Context) ([]domain.ForestSiteRecord, error) {
	var rows []SiteRow
	if err := readTable(t.path, domain.CleanedColumns, &rows); err != nil {
		return nil, fmt.Errorf("read cleaned table: %w", err)
	}
	records := make([]domain.ForestSiteRecord, len(rows))
	for i, r := range rows {
		records[i] = r.record()
	}
	return records, nil
}

// JoinedTable reads and writes the raster-joined site table.
// It implements pipeline.JoinedLoader and pipeline.JoinedExtractor.
type JoinedTable struct {
	path   string
	logger *slog.Logger
}

func NewJoinedTable(path string, logger *slog.Logger) *JoinedTable {
	return &JoinedTable{path: path, logger: logger}
}

func (t *JoinedTable) LoadJoined(_ context.Context, records []domain.GeoJoinedRecord) error {
	rows := make([]JoinedSiteRow, len(records))
	for i, r := range records {
		rows[i] = JoinedSiteRow{
			SiteRow:   toSiteRow(r.ForestSiteRecord),
			TreeCover: r.TreeCover,
			LossYear:  r.LossYear,
		}
	}
	if err := writeAtomic(t.path, &rows); err != nil {
		return fmt.Errorf("write joined table: %w", err)
	}
	t.logger.Info("joined table written", "path", t.path, "records", len(rows))
	return nil
}

func (t *JoinedTable) ExtractJoined(_ context.Context) ([]domain.GeoJoinedRecord, error) {
	var rows []JoinedSiteRow
	if err := readTable(t.path, domain.JoinedColumns, &rows); err != nil {
		return nil, fmt.Errorf("read joined table: %w", err)
	}
	records := make([]domain.GeoJoinedRecord, len(rows))
	for i, r := range rows {
		records[i] = domain.GeoJoinedRecord{
			ForestSiteRecord: r.record(),
			TreeCover:        r.TreeCover,
			LossYear:         r.LossYear,
		}
	}
	return records, nil
}

// readTable checks the header before decoding so a renamed or reordered
// column is an error rather than a silently blank field.
func readTable(path string, columns []string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(header, columns) {
		return fmt.Errorf("%w in %s: got %q", ErrHeaderMismatch, path, header)
	}

	return gocsv.UnmarshalCSV(csv.NewReader(bytes.NewReader(data)), out)
}

// writeAtomic marshals rows into a pending file next to path and renames it
// into place, so a failed write leaves any previous table untouched. Rows go
// through an explicit comma writer; gocsv's default writer would take its
// delimiter from TagSeparator.
func writeAtomic(path string, rows any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return err
	}
	defer f.Cleanup()

	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(csv.NewWriter(f))); err != nil {
		return err
	}
	return f.CloseAtomicallyReplace()
}
