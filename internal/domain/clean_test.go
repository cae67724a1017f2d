package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSheetVirgin      = "PADURI VIRGINE"
	testSheetQuasiVirgin = "PADURI CVASIVIRGINE"
	testCounty           = "Hunedoara"
)

// catalogHeader mirrors the workbook header, including the stray whitespace
// the ministry spreadsheet has around some names.
var catalogHeader = []string{
	ColID, " " + ColName + " ", ColForestPlanEdition, ColStudyEdition, ColPropertyType,
	ColLatitudeDMS, ColLongitudeDMS + " ", ColAltitudeMin, ColAltitudeMax, ColCounty,
	ColAdministrator, ColProductionUnit, ColCompartment, ColForestType, ColArea,
	ColNonNaturalCompartments, ColNonNaturalArea,
}

func catalogRow(id, name, lat, lon, altMin, altMax, area string) []string {
	return []string{
		id, name, "2014", "2015", "publica",
		lat, lon, altMin, altMax, testCounty,
		"DS Hunedoara", "V Retezat", "12A", "4111", area,
		"", "",
	}
}

func totalRow(area string) []string {
	return []string{"TOTAL", "", "", "", "", "", "", "", "", "", "", "", "", "", area, "", ""}
}

func TestCleanCatalog_TwoRowCatalog(t *testing.T) {
	sheet := RawSheet{
		Name:   testSheetVirgin,
		Header: catalogHeader,
		Rows: [][]string{
			catalogRow("1", "Codrii Retezatului", `45°22'10"`, `22°50'30"`, "900", "1500", "120.5"),
			catalogRow("2", "Valea Pietrele", `45°23′05″`, `22°52′12″`, "1100", "1700", "80"),
			totalRow("200.5"),
		},
	}

	records, stats, err := CleanCatalog(sheet)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 1, records[0].ID)
	assert.Equal(t, "Codrii Retezatului", records[0].Name)
	assert.InDelta(t, 45+22.0/60+10.0/3600, records[0].Latitude, 1e-12)
	assert.InDelta(t, 22+50.0/60+30.0/3600, records[0].Longitude, 1e-12)
	assert.Equal(t, Float(900), records[0].AltitudeMin)
	assert.Equal(t, Float(1500), records[0].AltitudeMax)
	assert.Equal(t, Float(120.5), records[0].AreaHa)
	assert.Equal(t, testCounty, records[0].County)
	assert.Equal(t, "V Retezat", records[0].ProductionUnit)

	assert.Equal(t, 2, records[1].ID)
	assert.InDelta(t, 45+23.0/60+5.0/3600, records[1].Latitude, 1e-12)

	assert.Equal(t, 3, stats.RowsRead[testSheetVirgin])
	assert.Equal(t, 1, stats.TotalRows)
	assert.Equal(t, 0, stats.BlankRows)
	assert.Equal(t, 2, stats.Records)
}

func TestCleanCatalog_ConcatenatesSheets(t *testing.T) {
	virgin := RawSheet{
		Name:   testSheetVirgin,
		Header: catalogHeader,
		Rows: [][]string{
			catalogRow("1", "Codrii Retezatului", `45°22'10"`, `22°50'30"`, "900", "1500", "120.5"),
			totalRow("120.5"),
		},
	}
	quasi := RawSheet{
		Name:   testSheetQuasiVirgin,
		Header: catalogHeader,
		Rows: [][]string{
			catalogRow("1", "Izvorul Bistrei", `45°20'00"`, `22°40'00"`, "800", "1200", "45"),
			totalRow("45"),
		},
	}

	records, stats, err := CleanCatalog(virgin, quasi)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Codrii Retezatului", records[0].Name)
	assert.Equal(t, "Izvorul Bistrei", records[1].Name)
	assert.NotEqual(t, records[0].Key(), records[1].Key(), "identifiers restart per sheet, keys must not")
	assert.Equal(t, 2, stats.TotalRows)
}

func TestCleanCatalog_DropsBlankIdentifierRows(t *testing.T) {
	sheet := RawSheet{
		Name:   testSheetVirgin,
		Header: catalogHeader,
		Rows: [][]string{
			catalogRow("1", "Codrii Retezatului", `45°22'10"`, `22°50'30"`, "900", "1500", "120.5"),
			catalogRow("", "", "", "", "", "", ""),
			{},
			catalogRow("3.0", "Valea Pietrele", `45°23'05"`, `22°52'12"`, "1100", "1700", "80"),
			totalRow("200.5"),
		},
	}

	records, stats, err := CleanCatalog(sheet)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 3, records[1].ID)
	assert.Equal(t, 2, stats.BlankRows)
}

func TestCleanCatalog_NumericCoercion(t *testing.T) {
	sheet := RawSheet{
		Name:   testSheetVirgin,
		Header: catalogHeader,
		Rows: [][]string{
			catalogRow("1", "Codrii Retezatului", `45°22'10"`, `22°50'30"`, "N/A", "", "NaN"),
			totalRow(""),
		},
	}

	records, stats, err := CleanCatalog(sheet)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.False(t, records[0].AltitudeMin.Valid)
	assert.False(t, records[0].AltitudeMax.Valid)
	assert.False(t, records[0].AreaHa.Valid)
	assert.Equal(t, 1, stats.MissingNumeric[ColAltitudeMin])
	assert.Equal(t, 1, stats.MissingNumeric[ColAltitudeMax])
	assert.Equal(t, 1, stats.MissingNumeric[ColArea])
}

func TestCleanCatalog_InvalidCoordinateIsFatal(t *testing.T) {
	sheet := RawSheet{
		Name:   testSheetQuasiVirgin,
		Header: catalogHeader,
		Rows: [][]string{
			catalogRow("1", "Codrii Retezatului", `45°22'10"`, `22°50'30"`, "900", "1500", "120.5"),
			catalogRow("2", "Valea Pietrele", "45,23,05", `22°52'12"`, "1100", "1700", "80"),
			totalRow("200.5"),
		},
	}

	records, _, err := CleanCatalog(sheet)
	require.Error(t, err)
	assert.Nil(t, records, "no partial output on a format error")
	assert.ErrorIs(t, err, ErrInvalidCoordinateFormat)
	assert.Contains(t, err.Error(), `sheet "PADURI CVASIVIRGINE" row 3`)
	assert.Contains(t, err.Error(), "latitude")
}

func TestCleanCatalog_TotalRowDroppedByPosition(t *testing.T) {
	// The last row is dropped even when it looks like data.
	sheet := RawSheet{
		Name:   testSheetVirgin,
		Header: catalogHeader,
		Rows: [][]string{
			catalogRow("1", "Codrii Retezatului", `45°22'10"`, `22°50'30"`, "900", "1500", "120.5"),
			catalogRow("2", "Valea Pietrele", `45°23'05"`, `22°52'12"`, "1100", "1700", "80"),
		},
	}

	records, _, err := CleanCatalog(sheet)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].ID)
}

func TestCleanCatalog_TotalRowNotParsed(t *testing.T) {
	// A malformed total row never reaches the coordinate parser.
	bad := totalRow("x")
	bad[5] = "not a coordinate"
	sheet := RawSheet{
		Name:   testSheetVirgin,
		Header: catalogHeader,
		Rows: [][]string{
			catalogRow("1", "Codrii Retezatului", `45°22'10"`, `22°50'30"`, "900", "1500", "120.5"),
			bad,
		},
	}

	_, _, err := CleanCatalog(sheet)
	require.NoError(t, err)
}

func TestCleanCatalog_MissingColumn(t *testing.T) {
	header := append([]string{}, catalogHeader...)
	header[5] = "Lat"
	sheet := RawSheet{Name: testSheetVirgin, Header: header}

	_, _, err := CleanCatalog(sheet)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), ColLatitudeDMS)
}

func TestCleanCatalog_ColumnMissingFromOneSheet(t *testing.T) {
	// A column present in only one sheet yields blank cells for the other.
	shortHeader := catalogHeader[:len(catalogHeader)-1]
	short := func(row []string) []string { return row[:len(row)-1] }

	virgin := RawSheet{
		Name:   testSheetVirgin,
		Header: catalogHeader,
		Rows: [][]string{
			catalogRow("1", "Codrii Retezatului", `45°22'10"`, `22°50'30"`, "900", "1500", "120.5"),
			totalRow("120.5"),
		},
	}
	row := catalogRow("1", "Izvorul Bistrei", `45°20'00"`, `22°40'00"`, "800", "1200", "45")
	quasi := RawSheet{
		Name:   testSheetQuasiVirgin,
		Header: shortHeader,
		Rows:   [][]string{short(row), short(totalRow("45"))},
	}

	records, _, err := CleanCatalog(virgin, quasi)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Empty(t, records[1].NonNaturalArea)
}

func TestCleanCatalog_InvalidIdentifier(t *testing.T) {
	sheet := RawSheet{
		Name:   testSheetVirgin,
		Header: catalogHeader,
		Rows: [][]string{
			catalogRow("1.5", "Codrii Retezatului", `45°22'10"`, `22°50'30"`, "900", "1500", "120.5"),
			totalRow("120.5"),
		},
	}

	_, _, err := CleanCatalog(sheet)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestCleanCatalog_NegativeArea(t *testing.T) {
	sheet := RawSheet{
		Name:   testSheetVirgin,
		Header: catalogHeader,
		Rows: [][]string{
			catalogRow("1", "Codrii Retezatului", `45°22'10"`, `22°50'30"`, "900", "1500", "-3"),
			totalRow("-3"),
		},
	}

	_, _, err := CleanCatalog(sheet)
	assert.ErrorIs(t, err, ErrNegativeMeasurement)
}

func TestCleanCatalog_LatitudeOutOfRange(t *testing.T) {
	sheet := RawSheet{
		Name:   testSheetVirgin,
		Header: catalogHeader,
		Rows: [][]string{
			catalogRow("1", "Codrii Retezatului", `95°22'10"`, `22°50'30"`, "900", "1500", "1"),
			totalRow("1"),
		},
	}

	_, _, err := CleanCatalog(sheet)
	assert.ErrorIs(t, err, ErrCoordinateOutOfRange)
}

func TestCleanedColumns(t *testing.T) {
	assert.Len(t, CleanedColumns, 17)
	assert.Equal(t, ColID, CleanedColumns[0])
	assert.Equal(t, ColLatitude, CleanedColumns[5])
	assert.Equal(t, ColLongitude, CleanedColumns[6])
	assert.Equal(t, append(append([]string{}, CleanedColumns...), ColTreeCover, ColLossYear), JoinedColumns)
}
