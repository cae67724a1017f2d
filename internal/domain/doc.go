// Package domain models the Romanian ministry catalog of virgin and
// quasi-virgin forests and its enrichment with Global Forest Change rasters.
//
// # Data Source
//
// The catalog is published by the Ministry of Environment as a workbook
// ("2016-12-07_catalog_paduri_virgine_si_cvasivirgine.xlsx") with two sheets
// sharing one column schema:
//
//	PADURI VIRGINE       virgin forests
//	PADURI CVASIVIRGINE  quasi-virgin forests
//
// The last row of each sheet is a hand-entered total and is dropped by
// position. Blank rows left over from spreadsheet formatting have an empty
// "Nr. crt." cell and are dropped as well.
//
// # Coordinate Conventions
//
// Coordinates are entered by hand as degrees/minutes/seconds text:
//
//	45°30'15"   45º30′15″   45°30'15.5   45°30'
//
// The degree marker is "°" or "º", the minute marker "'" or "′", the optional
// second marker '"' or "″". Latitude is implicitly North and longitude
// implicitly East (Romania lies entirely in that quadrant), so no hemisphere
// correction is applied. Anything that does not match the grammar from its
// first character is a fatal [ErrInvalidCoordinateFormat]; see [ParseDMS].
//
// # Numeric Fields
//
// "Altitudine min", "Altitudine max" and "S (ha)" may be genuinely blank or
// hold text such as "N/A". Those cells become missing ([OptionalFloat] with
// Valid false), never zero.
//
// # Raster Covariates
//
// Two Hansen Global Forest Change layers are sampled at each site:
//
//	treecover2000  canopy closure percentage, 0–100
//	lossyear       0 = no loss, n = loss detected in year 2000+n
//
// A site outside a raster's extent gets a missing value for that layer.
// Training drops sites whose loss-year code is missing; see [LossYearCode].
package domain
