package enums

import "fmt"

// SettlementOutcome is the per-participant result of a fan-out.
type SettlementOutcome string

const (
	SettlementOutcomeIssued SettlementOutcome = "issued"
	SettlementOutcomeFailed SettlementOutcome = "failed"
)

var validSettlementOutcomes = []SettlementOutcome{
	SettlementOutcomeIssued,
	SettlementOutcomeFailed,
}

// String implements fmt.Stringer.
func (o SettlementOutcome) String() string {
	return string(o)
}

// IsValid reports whether the value is a known SettlementOutcome.
func (o SettlementOutcome) IsValid() bool {
	for _, candidate := range validSettlementOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseSettlementOutcome converts a raw string into a SettlementOutcome.
func ParseSettlementOutcome(value string) (SettlementOutcome, error) {
	for _, candidate := range validSettlementOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid settlement outcome %q", value)
}

// FailureKind separates failures the resume path may retry from those it must not.
type FailureKind string

const (
	FailureKindTransient FailureKind = "transient"
	FailureKindPermanent FailureKind = "permanent"
)

var validFailureKinds = []FailureKind{
	FailureKindTransient,
	FailureKindPermanent,
}

// String implements fmt.Stringer.
func (k FailureKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known FailureKind.
func (k FailureKind) IsValid() bool {
	for _, candidate := range validFailureKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseFailureKind converts a raw string into a FailureKind.
func ParseFailureKind(value string) (FailureKind, error) {
	for _, candidate := range validFailureKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid failure kind %q", value)
}

// FailureStage records which issuer call failed. FailureStagePayment means
// the order exists but its authorization hold does not.
type FailureStage string

const (
	FailureStageOrder   FailureStage = "order"
	FailureStagePayment FailureStage = "payment"
)

var validFailureStages = []FailureStage{
	FailureStageOrder,
	FailureStagePayment,
}

// String implements fmt.Stringer.
func (s FailureStage) String() string {
	return string(s)
}

// IsValid reports whether the value is a known FailureStage.
func (s FailureStage) IsValid() bool {
	for _, candidate := range validFailureStages {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseFailureStage converts a raw string into a FailureStage.
func ParseFailureStage(value string) (FailureStage, error) {
	for _, candidate := range validFailureStages {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid failure stage %q", value)
}

// SettlementDisposition summarizes what a settlement call did.
type SettlementDisposition string

const (
	SettlementDispositionSettled       SettlementDisposition = "settled"
	SettlementDispositionResumed       SettlementDisposition = "resumed"
	SettlementDispositionNotDue        SettlementDisposition = "not_due"
	SettlementDispositionClaimConflict SettlementDisposition = "claim_conflict"
	SettlementDispositionNotFound      SettlementDisposition = "not_found"
	SettlementDispositionNotResumable  SettlementDisposition = "not_resumable"
)

var validSettlementDispositions = []SettlementDisposition{
	SettlementDispositionSettled,
	SettlementDispositionResumed,
	SettlementDispositionNotDue,
	SettlementDispositionClaimConflict,
	SettlementDispositionNotFound,
	SettlementDispositionNotResumable,
}

// String implements fmt.Stringer.
func (d SettlementDisposition) String() string {
	return string(d)
}

// IsValid reports whether the value is a known SettlementDisposition.
func (d SettlementDisposition) IsValid() bool {
	for _, candidate := range validSettlementDispositions {
		if candidate == d {
			return true
		}
	}
	return false
}
