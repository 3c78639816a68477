package ports

import (
	"context"
	"io"

	"gosuperior/domain/superior"
)

// ExporterPort writes the probability matrices of a result as a table:
// genotype rows, environment (or region) columns, decimal fractions or a
// missing marker.
type ExporterPort interface {
	Export(ctx context.Context, result *superior.Result, w io.Writer) error
	Extension() string
}

// RendererPort produces a human-readable document for an external viewer.
type RendererPort interface {
	Render(result *superior.Result) ([]byte, error)
	ContentType() string
}
