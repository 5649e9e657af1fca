package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"

	"github.com/roach88/flagsearch/internal/ir"
)

func TestSearchError_Error(t *testing.T) {
	err := runError(ErrCodeCandidate, ir.Request{RunID: 12, Kind: ir.RunKindTest, Flags: "-fno-a"}, errors.New("boom"))
	assert.Equal(t, `CANDIDATE_FAILED: run test-12 (flags "-fno-a"): boom`, err.Error())

	plain := &SearchError{Code: ErrCodePrecondition, Err: errors.New("cmake missing")}
	assert.Equal(t, "PRECONDITION_FAILED: cmake missing", plain.Error())
}

func TestErrorCode_ThroughWrapping(t *testing.T) {
	inner := errors.New("boom")
	err := fmt.Errorf("search: %w", multierr.Combine(
		runError(ErrCodeCandidate, ir.Request{RunID: 1, Kind: ir.RunKindTest}, inner),
		runError(ErrCodeCandidate, ir.Request{RunID: 2, Kind: ir.RunKindTest}, inner),
	))
	assert.Equal(t, ErrCodeCandidate, ErrorCode(err))
	assert.True(t, IsCandidateError(err))
	assert.True(t, errors.Is(err, inner))
	assert.Equal(t, SearchErrorCode(""), ErrorCode(inner))
}
