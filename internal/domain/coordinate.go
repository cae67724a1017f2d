package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidCoordinateFormat reports a coordinate string that does not match
// the DMS grammar. It is fatal for a cleaning run.
var ErrInvalidCoordinateFormat = errors.New("invalid coordinate format")

// dmsRe matches hand-entered DMS text from its first character:
// degrees, "°" or "º", minutes, "'" or "′", then optionally seconds with a
// fraction and an optional '"' or "″". Text after the match is ignored.
var dmsRe = regexp.MustCompile(`^(\d+)[°º](\d+)['′](?:(\d+[.\d]*)["″]?)?`)

// CoordinateFormatError carries the offending coordinate text.
type CoordinateFormatError struct {
	Input string
}

func (e *CoordinateFormatError) Error() string {
	return fmt.Sprintf("invalid coordinate format: %q", e.Input)
}

func (e *CoordinateFormatError) Is(target error) bool {
	return target == ErrInvalidCoordinateFormat
}

// DMS is a coordinate in degrees, minutes and seconds.
type DMS struct {
	Degrees int
	Minutes int
	Seconds float64
}

// ParseDMS parses a degrees/minutes/seconds string such as 45°30'15" into its
// components. Surrounding whitespace is ignored. Signs, cardinal letters and
// other separators are not part of the grammar and fail with a
// *CoordinateFormatError.
func ParseDMS(s string) (DMS, error) {
	m := dmsRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return DMS{}, &CoordinateFormatError{Input: s}
	}

	deg, errD := strconv.Atoi(m[1])
	mins, errM := strconv.Atoi(m[2])
	var sec float64
	var errS error
	if m[3] != "" {
		// The seconds group admits repeated dots ("15.3.4"); those fail here.
		sec, errS = strconv.ParseFloat(m[3], 64)
	}
	if errD != nil || errM != nil || errS != nil {
		return DMS{}, &CoordinateFormatError{Input: s}
	}

	return DMS{Degrees: deg, Minutes: mins, Seconds: sec}, nil
}

// Decimal converts to decimal degrees: degrees + minutes/60 + seconds/3600.
func (d DMS) Decimal() float64 {
	return float64(d.Degrees) + float64(d.Minutes)/60 + d.Seconds/3600
}

// String formats the coordinate with ASCII markers, e.g. 45°30'15".
// The output is accepted by ParseDMS.
func (d DMS) String() string {
	return fmt.Sprintf("%d°%d'%s\"", d.Degrees, d.Minutes, strconv.FormatFloat(d.Seconds, 'f', -1, 64))
}

// DMSToDecimal parses s and converts it to decimal degrees.
func DMSToDecimal(s string) (float64, error) {
	d, err := ParseDMS(s)
	if err != nil {
		return 0, err
	}
	return d.Decimal(), nil
}

// DecimalToDMS splits non-negative decimal degrees into DMS components.
// DecimalToDMS(x).Decimal() equals x within floating-point tolerance.
func DecimalToDMS(dd float64) DMS {
	deg := math.Floor(dd)
	rem := (dd - deg) * 60
	mins := math.Floor(rem)
	sec := (rem - mins) * 60
	return DMS{Degrees: int(deg), Minutes: int(mins), Seconds: sec}
}
