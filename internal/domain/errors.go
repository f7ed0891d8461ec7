package domain

import (
	"errors"
	"fmt"
)

// ErrorCode - код ошибки пайплайна, видимый вызывающей стороне.
type ErrorCode string

const (
	CodeInsufficientCredits ErrorCode = "insufficient_credits"
	CodeInvalidAnalysis     ErrorCode = "invalid_analysis"
	CodeAnalysisFailed      ErrorCode = "analysis_failed"
	CodeAllSegmentsFailed   ErrorCode = "all_segments_failed"
	CodeNarrationFailed     ErrorCode = "narration_failed"
	CodeAssemblyFailed      ErrorCode = "assembly_failed"
	CodeCancelled           ErrorCode = "cancelled"
	CodeSubjectUnresolved   ErrorCode = "subject_unresolved"
	CodeLedgerUnavailable   ErrorCode = "ledger_unavailable"
)

// Стандартные ошибки пайплайна. Сравнивать через errors.Is.
var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAnalysis     = errors.New("invalid narrative analysis")
	ErrAnalysisFailed      = errors.New("narrative analysis failed")
	ErrAllSegmentsFailed   = errors.New("all segments failed")
	ErrNarrationFailed     = errors.New("narration synthesis failed")
	ErrAssemblyFailed      = errors.New("assembly failed")
	ErrCancelled           = errors.New("pipeline cancelled")
	ErrSubjectUnresolved   = errors.New("subject could not be resolved")
	ErrLedgerUnavailable   = errors.New("credit ledger unavailable")
)

var codeSentinels = map[ErrorCode]error{
	CodeInsufficientCredits: ErrInsufficientCredits,
	CodeInvalidAnalysis:     ErrInvalidAnalysis,
	CodeAnalysisFailed:      ErrAnalysisFailed,
	CodeAllSegmentsFailed:   ErrAllSegmentsFailed,
	CodeNarrationFailed:     ErrNarrationFailed,
	CodeAssemblyFailed:      ErrAssemblyFailed,
	CodeCancelled:           ErrCancelled,
	CodeSubjectUnresolved:   ErrSubjectUnresolved,
	CodeLedgerUnavailable:   ErrLedgerUnavailable,
}

// PipelineError - типизированная ошибка запуска: код, фаза, в которой он упал, и причина.
type PipelineError struct {
	Code  ErrorCode
	Phase Phase
	Err   error
}

// NewPipelineError создает ошибку с кодом и исходной причиной (может быть nil).
func NewPipelineError(code ErrorCode, phase Phase, cause error) *PipelineError {
	return &PipelineError{Code: code, Phase: phase, Err: cause}
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (phase %s)", e.Code, e.Phase)
	}
	return fmt.Sprintf("%s (phase %s): %v", e.Code, e.Phase, e.Err)
}

// Unwrap отдает и sentinel кода, и причину, поэтому работают оба варианта errors.Is.
func (e *PipelineError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := codeSentinels[e.Code]; ok {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// CodeOf извлекает код ошибки пайплайна. Для чужих ошибок возвращает пустую строку.
func CodeOf(err error) ErrorCode {
	var pErr *PipelineError
	if errors.As(err, &pErr) {
		return pErr.Code
	}
	return ""
}
