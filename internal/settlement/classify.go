package settlement

import (
	"context"
	"errors"

	"github.com/angelmondragon/groupbuy-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-settlement/pkg/errors"
)

const (
	reasonTimeout  = "timeout"
	reasonCanceled = "canceled"
)

// classify maps an issuer error to a failure kind and a reason. Typed errors
// follow their code's Retryable metadata; untyped errors are transient.
func classify(err error) (enums.FailureKind, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return enums.FailureKindTransient, reasonTimeout
	case errors.Is(err, context.Canceled):
		return enums.FailureKindTransient, reasonCanceled
	}
	if typed := pkgerrors.As(err); typed != nil {
		if pkgerrors.MetadataFor(typed.Code()).Retryable {
			return enums.FailureKindTransient, err.Error()
		}
		return enums.FailureKindPermanent, err.Error()
	}
	return enums.FailureKindTransient, err.Error()
}
