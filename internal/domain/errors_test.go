package domain

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestTypedErrors_MatchSentinelAndCause(t *testing.T) {
	cause := io.ErrUnexpectedEOF

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"data load", &DataLoadError{Path: "x.xlsx", Err: cause}, ErrDataLoad},
		{"index build", &IndexBuildError{Collection: "c", Err: cause}, ErrIndexBuild},
		{"index load", &IndexLoadError{Collection: "c", Err: cause}, ErrIndexLoad},
		{"retrieval", &RetrievalError{Query: "q", Err: cause}, ErrRetrieval},
		{"generation", &GenerationError{Model: "m", Err: cause}, ErrGeneration},
		{"query parse", &QueryParseError{Input: "{", Err: cause}, ErrQueryParse},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tc.err)
			if !errors.Is(wrapped, tc.sentinel) {
				t.Errorf("expected errors.Is(%v)", tc.sentinel)
			}
			if !errors.Is(wrapped, cause) {
				t.Errorf("expected cause to be reachable")
			}
		})
	}
}

func TestTypedErrors_DoNotCrossMatch(t *testing.T) {
	err := &IndexLoadError{Collection: "c", Err: io.EOF}
	if errors.Is(err, ErrIndexBuild) {
		t.Error("load error must not match ErrIndexBuild")
	}
}

func TestDataLoadError_MessageCarriesPath(t *testing.T) {
	err := &DataLoadError{Path: "datasets/prestadores.xlsx", Err: io.EOF}
	if !strings.Contains(err.Error(), "datasets/prestadores.xlsx") {
		t.Errorf("expected path in message, got %q", err.Error())
	}

	var dle *DataLoadError
	if !errors.As(fmt.Errorf("init: %w", err), &dle) || dle.Path != "datasets/prestadores.xlsx" {
		t.Errorf("expected errors.As to recover the path")
	}
}
