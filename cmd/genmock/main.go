// Command genmock writes a synthetic catalog workbook shaped like the ministry
// file: two sheets, stray header whitespace, blank separator rows, unreadable
// numeric cells and a trailing total row on each sheet. The generated sheets
// are run through the cleaning stage before saving so the printed counts
// match what `forestloss clean` will produce.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out datasets/mock_catalog.xlsx \
//	  -cleaned-out datasets/mock_cleaned.csv \
//	  -sites 40 -seed 42
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/couchcryptid/forest-loss-pipeline/internal/adapter/csvfile"
	"github.com/couchcryptid/forest-loss-pipeline/internal/adapter/excel"
	"github.com/couchcryptid/forest-loss-pipeline/internal/config"
	"github.com/couchcryptid/forest-loss-pipeline/internal/domain"
)

// county is a bounding box sites are drawn from.
type county struct {
	name               string
	latMin, latMax     float64
	lonMin, lonMax     float64
	administrator      string
	productionUnitName string
}

var counties = []county{
	{name: "Hunedoara", latMin: 45.3, latMax: 45.9, lonMin: 22.4, lonMax: 23.3, administrator: "DS Hunedoara", productionUnitName: "Retezat"},
	{name: "Caras Severin", latMin: 44.8, latMax: 45.4, lonMin: 21.7, lonMax: 22.6, administrator: "DS Caras Severin", productionUnitName: "Nera"},
	{name: "Cluj", latMin: 46.4, latMax: 46.9, lonMin: 23.0, lonMax: 23.8, administrator: "DS Cluj", productionUnitName: "Somes"},
}

var forestTypes = []string{"4111", "4121", "5111", "2211"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the synthetic catalog workbook")
	cleanedOut := flag.String("cleaned-out", "", "optional output path for the cleaned CSV")
	sites := flag.Int("sites", 40, "sites per sheet")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *out == "" || *sites < 1 {
		flag.Usage()
		return fmt.Errorf("missing required flag -out or non-positive -sites")
	}

	defaults := config.Defaults()
	rng := rand.New(rand.NewPCG(*seed, *seed))
	sheets := []domain.RawSheet{
		generateSheet(rng, defaults.Catalog.VirginSheet, *sites),
		generateSheet(rng, defaults.Catalog.QuasiVirginSheet, *sites),
	}

	records, stats, err := domain.CleanCatalog(sheets...)
	if err != nil {
		return fmt.Errorf("generated catalog does not clean: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return err
	}
	if err := excel.WriteCatalog(*out, sheets); err != nil {
		return err
	}
	log.Printf("wrote workbook: %s", *out)

	if *cleanedOut != "" {
		if err := os.MkdirAll(filepath.Dir(*cleanedOut), 0o755); err != nil {
			return err
		}
		table := csvfile.NewCleanedTable(*cleanedOut, slog.New(slog.NewTextHandler(io.Discard, nil)))
		if err := table.LoadCleaned(context.Background(), records); err != nil {
			return err
		}
		log.Printf("wrote cleaned table: %s", *cleanedOut)
	}

	printStats(records, stats)
	return nil
}

func generateSheet(rng *rand.Rand, name string, n int) domain.RawSheet {
	sheet := domain.RawSheet{Name: name, Header: header()}
	var total float64
	for id := 1; id <= n; id++ {
		// The ministry file separates groups of sites with empty rows.
		if id > 1 && rng.IntN(12) == 0 {
			sheet.Rows = append(sheet.Rows, make([]string, len(sheet.Header)))
		}

		c := counties[rng.IntN(len(counties))]
		lat := c.latMin + rng.Float64()*(c.latMax-c.latMin)
		lon := c.lonMin + rng.Float64()*(c.lonMax-c.lonMin)
		altMin := 600 + rng.IntN(900)
		altMax := altMin + 100 + rng.IntN(700)
		area := float64(5+rng.IntN(400)) + float64(rng.IntN(10))/10

		areaCell := strconv.FormatFloat(area, 'f', -1, 64)
		altMaxCell := strconv.Itoa(altMax)
		switch rng.IntN(15) {
		case 0:
			areaCell = "N/A"
		case 1:
			altMaxCell = "-"
		default:
			total += area
		}

		sheet.Rows = append(sheet.Rows, []string{
			strconv.Itoa(id),
			fmt.Sprintf("%s %s %d", c.productionUnitName, name, id),
			strconv.Itoa(2005 + rng.IntN(10)),
			strconv.Itoa(2010 + rng.IntN(6)),
			[]string{"publica", "privata"}[rng.IntN(2)],
			dmsCell(rng, lat),
			dmsCell(rng, lon),
			strconv.Itoa(altMin),
			altMaxCell,
			c.name,
			c.administrator,
			fmt.Sprintf("%s %s", []string{"I", "II", "III", "IV"}[rng.IntN(4)], c.productionUnitName),
			fmt.Sprintf("%d%c", 1+rng.IntN(120), 'A'+rune(rng.IntN(4))),
			forestTypes[rng.IntN(len(forestTypes))],
			areaCell,
			"",
			"",
		})
	}

	totalRow := make([]string, len(sheet.Header))
	totalRow[1] = "TOTAL"
	totalRow[14] = strconv.FormatFloat(total, 'f', 1, 64)
	sheet.Rows = append(sheet.Rows, totalRow)
	return sheet
}

// header mirrors the workbook column order, with the whitespace the ministry
// file has around a few names.
func header() []string {
	return []string{
		domain.ColID,
		domain.ColName + " ",
		domain.ColForestPlanEdition,
		domain.ColStudyEdition,
		" " + domain.ColPropertyType,
		domain.ColLatitudeDMS,
		domain.ColLongitudeDMS + " ",
		domain.ColAltitudeMin,
		domain.ColAltitudeMax,
		domain.ColCounty,
		domain.ColAdministrator,
		domain.ColProductionUnit,
		domain.ColCompartment,
		domain.ColForestType,
		domain.ColArea,
		domain.ColNonNaturalCompartments,
		domain.ColNonNaturalArea,
	}
}

// dmsCell renders a coordinate with one of the glyph variants found in the
// catalog. Seconds are rounded to a tenth, as the ministry wrote them.
func dmsCell(rng *rand.Rand, v float64) string {
	d := domain.DecimalToDMS(v)
	sec := strconv.FormatFloat(float64(int(d.Seconds*10))/10, 'f', -1, 64)
	switch rng.IntN(3) {
	case 0:
		return fmt.Sprintf("%d°%d'%s\"", d.Degrees, d.Minutes, sec)
	case 1:
		return fmt.Sprintf("%dº%d′%s″", d.Degrees, d.Minutes, sec)
	default:
		return fmt.Sprintf(" %d°%d′%s\" ", d.Degrees, d.Minutes, sec)
	}
}

type countyCount struct {
	county string
	count  int
}

func printStats(records []domain.ForestSiteRecord, stats domain.CleanStats) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Records: %d\n", len(records))
	fmt.Printf("Total rows dropped: %d, blank rows dropped: %d\n", stats.TotalRows, stats.BlankRows)

	fields := make([]string, 0, len(stats.MissingNumeric))
	for f := range stats.MissingNumeric {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Printf("Missing %q: %d\n", f, stats.MissingNumeric[f])
	}

	byCounty := map[string]int{}
	var largest float64
	for _, r := range records {
		byCounty[r.County]++
		if r.AreaHa.Valid && r.AreaHa.Value > largest {
			largest = r.AreaHa.Value
		}
	}
	cc := make([]countyCount, 0, len(byCounty))
	for c, n := range byCounty {
		cc = append(cc, countyCount{c, n})
	}
	sort.Slice(cc, func(i, j int) bool { return cc[i].count > cc[j].count })
	fmt.Printf("Counties (%d): ", len(cc))
	for _, c := range cc {
		fmt.Printf("%s=%d ", c.county, c.count)
	}
	fmt.Println()
	fmt.Printf("Largest site: %.1f ha (radius %.0f m)\n", largest, domain.SiteRadiusMeters(largest))
}
