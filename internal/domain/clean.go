package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Catalog column names as they appear in the ministry workbook, after
// whitespace trimming.
const (
	ColID                     = "Nr. crt."
	ColName                   = "Numele padurii virgine si/sau cvasivirgine"
	ColForestPlanEdition      = "Fundamentat in baza Amenaj silvic, editia"
	ColStudyEdition           = "Fundamentat in baza Studiu de fundam, editia"
	ColPropertyType           = "Tipul de proprietate"
	ColLatitudeDMS            = "Latitude N"
	ColLongitudeDMS           = "Longitude E"
	ColLatitude               = "Latitude"
	ColLongitude              = "Longitude"
	ColAltitudeMin            = "Altitudine min"
	ColAltitudeMax            = "Altitudine max"
	ColCounty                 = "Localizare administrativa Judet"
	ColAdministrator          = "Detinator Admin OS/OSP"
	ColProductionUnit         = "UP"
	ColCompartment            = "u.a."
	ColForestType             = "TP"
	ColArea                   = "S (ha)"
	ColNonNaturalCompartments = "din care: suprafete care nu corespund criteriului de naturalitate u.a."
	ColNonNaturalArea         = "din care: suprafete care nu corespund criteriului de naturalitate S (ha)"
)

// CleanedColumns is the exact, ordered header of the cleaned table. Adding,
// removing or reordering a column breaks the join and training stages.
var CleanedColumns = []string{
	ColID,
	ColName,
	ColForestPlanEdition,
	ColStudyEdition,
	ColPropertyType,
	ColLatitude,
	ColLongitude,
	ColAltitudeMin,
	ColAltitudeMax,
	ColCounty,
	ColAdministrator,
	ColProductionUnit,
	ColCompartment,
	ColForestType,
	ColArea,
	ColNonNaturalCompartments,
	ColNonNaturalArea,
}

// Joined-table covariate columns appended after CleanedColumns.
const (
	ColTreeCover = "tree_cover"
	ColLossYear  = "loss_year"
)

// JoinedColumns is the exact, ordered header of the joined table.
var JoinedColumns = append(append([]string{}, CleanedColumns...), ColTreeCover, ColLossYear)

// sourceColumns are the workbook columns the cleaning stage reads.
var sourceColumns = []string{
	ColID,
	ColName,
	ColForestPlanEdition,
	ColStudyEdition,
	ColPropertyType,
	ColLatitudeDMS,
	ColLongitudeDMS,
	ColAltitudeMin,
	ColAltitudeMax,
	ColCounty,
	ColAdministrator,
	ColProductionUnit,
	ColCompartment,
	ColForestType,
	ColArea,
	ColNonNaturalCompartments,
	ColNonNaturalArea,
}

var (
	// ErrMissingColumn is returned when no input sheet carries a required column.
	ErrMissingColumn = errors.New("missing column")

	// ErrInvalidIdentifier is returned for a non-integral "Nr. crt." value.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// RawSheet is one worksheet as read from the workbook: a header row and the
// data rows below it, all as cell text.
type RawSheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// CleanStats summarizes what the cleaning stage kept and dropped.
type CleanStats struct {
	RowsRead       map[string]int // data rows per sheet, total row included
	TotalRows      int            // trailing total rows dropped by position
	BlankRows      int            // rows dropped for an empty identifier
	MissingNumeric map[string]int // unparsable or blank numeric cells per column
	Records        int
}

// CleanCatalog merges the catalog sheets into cleaned site records. The last
// row of every sheet is dropped as a total row without inspecting it; columns
// are matched by trimmed header name; rows with an empty identifier are
// skipped. A malformed coordinate fails the whole run.
func CleanCatalog(sheets ...RawSheet) ([]ForestSiteRecord, CleanStats, error) {
	stats := CleanStats{
		RowsRead:       make(map[string]int, len(sheets)),
		MissingNumeric: make(map[string]int),
	}

	if err := checkColumns(sheets); err != nil {
		return nil, stats, err
	}

	var records []ForestSiteRecord
	for _, sheet := range sheets {
		stats.RowsRead[sheet.Name] = len(sheet.Rows)
		rows := sheet.Rows
		if len(rows) > 0 {
			rows = rows[:len(rows)-1]
			stats.TotalRows++
		}

		index := headerIndex(sheet.Header)
		for i, row := range rows {
			cell := func(col string) string {
				j, ok := index[col]
				if !ok || j >= len(row) {
					return ""
				}
				return strings.TrimSpace(row[j])
			}

			if cell(ColID) == "" {
				stats.BlankRows++
				continue
			}

			rec, err := parseSiteRow(cell, &stats)
			if err != nil {
				// Header is spreadsheet row 1, so data row i is row i+2.
				return nil, stats, fmt.Errorf("sheet %q row %d: %w", sheet.Name, i+2, err)
			}
			records = append(records, rec)
		}
	}

	stats.Records = len(records)
	return records, stats, nil
}

func parseSiteRow(cell func(string) string, stats *CleanStats) (ForestSiteRecord, error) {
	id, err := parseIdentifier(cell(ColID))
	if err != nil {
		return ForestSiteRecord{}, err
	}

	lat, err := DMSToDecimal(cell(ColLatitudeDMS))
	if err != nil {
		return ForestSiteRecord{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := DMSToDecimal(cell(ColLongitudeDMS))
	if err != nil {
		return ForestSiteRecord{}, fmt.Errorf("longitude: %w", err)
	}

	numeric := func(col string) OptionalFloat {
		v := ParseOptionalFloat(cell(col))
		if !v.Valid {
			stats.MissingNumeric[col]++
		}
		return v
	}

	rec := ForestSiteRecord{
		ID:                     id,
		Name:                   cell(ColName),
		ForestPlanEdition:      cell(ColForestPlanEdition),
		StudyEdition:           cell(ColStudyEdition),
		PropertyType:           cell(ColPropertyType),
		Latitude:               lat,
		Longitude:              lon,
		AltitudeMin:            numeric(ColAltitudeMin),
		AltitudeMax:            numeric(ColAltitudeMax),
		County:                 cell(ColCounty),
		Administrator:          cell(ColAdministrator),
		ProductionUnit:         cell(ColProductionUnit),
		Compartment:            cell(ColCompartment),
		ForestType:             cell(ColForestType),
		AreaHa:                 numeric(ColArea),
		NonNaturalCompartments: cell(ColNonNaturalCompartments),
		NonNaturalArea:         cell(ColNonNaturalArea),
	}
	if err := rec.Validate(); err != nil {
		return ForestSiteRecord{}, err
	}
	return rec, nil
}

// parseIdentifier accepts "12" and the "12.0" that spreadsheets produce for
// numeric cells.
func parseIdentifier(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	return int(f), nil
}

// headerIndex maps trimmed header names to column positions. The first
// occurrence of a duplicated name wins.
func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}
	return index
}

// checkColumns requires every source column to appear in at least one sheet.
// Sheets missing a column contribute blank cells for it.
func checkColumns(sheets []RawSheet) error {
	present := make(map[string]bool)
	for _, sheet := range sheets {
		for name := range headerIndex(sheet.Header) {
			present[name] = true
		}
	}
	var missing []string
	for _, col := range sourceColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}
