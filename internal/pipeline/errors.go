package pipeline

import (
	"errors"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/classify"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/extract"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/normalize"
)

// Failure kinds recorded in the error ledger. None of them stops a run.
var (
	// ErrClassify marks a failed generation-assisted classification.
	ErrClassify = classify.ErrClassify
	// ErrGenerationUnavailable covers connect failures, timeouts and non-success statuses.
	ErrGenerationUnavailable = errors.New("generation unavailable")
	// ErrMalformedOutput marks a response with no usable JSON object.
	ErrMalformedOutput = extract.ErrMalformedOutput
	// ErrContractViolation marks a generated result that could not be made contract-valid.
	ErrContractViolation = normalize.ErrContractViolation
)
