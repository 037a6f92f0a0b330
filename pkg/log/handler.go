package log

import (
	"context"
	"log/slog"

	crdberrors "github.com/cockroachdb/errors"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

// errorDetailsHandler decorates records carrying an error attribute: the
// error's taxonomy kind and its cockroachdb stacktrace become first-class
// attributes, so log queries can filter validation noise from artifact
// and model failures.
type errorDetailsHandler struct {
	handler slog.Handler
}

// WithErrorDetails wraps a slog handler so that records logged with
// ErrAttr gain error_type and stacktrace attributes.
func WithErrorDetails(handler slog.Handler) slog.Handler {
	return &errorDetailsHandler{handler: handler}
}

func (h *errorDetailsHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.handler.Enabled(ctx, l)
}

func (h *errorDetailsHandler) Handle(ctx context.Context, r slog.Record) error {
	var logged error
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == ErrAttrKey {
			if err, ok := attr.Value.Any().(error); ok {
				logged = err
			}
			return false
		}
		return true
	})
	if logged != nil {
		r.AddAttrs(slog.String(ErrTypeAttrKey, errorKind(logged)))
		if stack := extractStacktrace(logged); stack != "" {
			r.AddAttrs(slog.String(StacktraceAttrKey, stack))
		}
	}
	return h.handler.Handle(ctx, r)
}

func (h *errorDetailsHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &errorDetailsHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *errorDetailsHandler) WithGroup(g string) slog.Handler {
	return &errorDetailsHandler{handler: h.handler.WithGroup(g)}
}

// errorKind maps an error to its taxonomy name. Untyped errors report as
// internal.
func errorKind(err error) string {
	var (
		validationErr *errors.ValidationError
		dataErr       *errors.DataError
		artifactErr   *errors.ArtifactError
		dimensionErr  *errors.DimensionError
		modelErr      *errors.ModelError
		categoryWarn  *errors.UnknownCategoryWarning
	)
	switch {
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &dataErr):
		return "data"
	case errors.As(err, &artifactErr):
		return "artifact"
	case errors.As(err, &dimensionErr):
		return "dimension"
	case errors.As(err, &modelErr):
		return "model"
	case errors.As(err, &categoryWarn):
		return "unknown_category"
	default:
		return "internal"
	}
}

func extractStacktrace(err error) string {
	safeDetails := crdberrors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
