package gdal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/airbusgeo/godal"
)

// geoPackage is the OGR short name of the GeoPackage driver.
const geoPackage = "GPKG"

// BoundaryExtractor copies the features of a boundary layer whose attribute
// matches one of a set of values into a new GeoPackage.
type BoundaryExtractor struct {
	logger *slog.Logger
}

func NewBoundaryExtractor(logger *slog.Logger) *BoundaryExtractor {
	return &BoundaryExtractor{logger: logger}
}

// Extract copies the features of src whose attribute is one of values into a
// GeoPackage at dst, replacing an existing output layer. It returns the number of features written.
func (e *BoundaryExtractor) Extract(ctx context.Context, src, attribute string, values []string, dst string) (int, error) {
	if len(values) == 0 {
		return 0, errors.New("extract boundaries: no attribute values")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	register()

	in, err := godal.Open(src, godal.VectorOnly())
	if err != nil {
		return 0, fmt.Errorf("open boundaries %q: %w", src, err)
	}
	defer in.Close()

	if len(in.Layers()) == 0 {
		return 0, fmt.Errorf("open boundaries %q: no layers", src)
	}

	filter := AttributeFilter(attribute, values)
	out, err := in.VectorTranslate(dst, []string{"-f", geoPackage, "-overwrite", "-where", filter})
	if err != nil {
		return 0, fmt.Errorf("translate %q to %q where %s: %w", src, dst, filter, err)
	}

	var n int
	if layers := out.Layers(); len(layers) > 0 {
		if n, err = layers[0].FeatureCount(); err != nil {
			out.Close()
			return 0, fmt.Errorf("count features in %q: %w", dst, err)
		}
	}

	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close %q: %w", dst, err)
	}
	e.logger.Info("boundaries extracted", "source", src, "filter", filter, "output", dst, "features", n)
	return n, nil
}

// AttributeFilter builds an OGR SQL filter selecting features whose
// attribute equals any of values.
func AttributeFilter(attribute string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return fmt.Sprintf(`"%s" IN (%s)`, strings.ReplaceAll(attribute, `"`, `""`), strings.Join(quoted, ","))
}
