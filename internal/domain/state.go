package domain

// Phase - состояние запуска пайплайна. Значения упорядочены: переходы
// допускаются только вперед, FAILED достижим из любого нетерминального состояния.
type Phase int

const (
	PhasePending Phase = iota
	PhaseAnalyzing
	PhaseSynthesizingSegments
	PhaseSynthesizingNarration
	PhaseAssembling
	PhaseCompleted
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhasePending:               "PENDING",
	PhaseAnalyzing:             "ANALYZING",
	PhaseSynthesizingSegments:  "SYNTHESIZING_SEGMENTS",
	PhaseSynthesizingNarration: "SYNTHESIZING_NARRATION",
	PhaseAssembling:            "ASSEMBLING",
	PhaseCompleted:             "COMPLETED",
	PhaseFailed:                "FAILED",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalText отдает имя фазы, чтобы в JSON уходили строки, а не числа.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// IsTerminal сообщает, завершен ли запуск.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// CanTransition проверяет допустимость перехода from -> to.
func CanTransition(from, to Phase) bool {
	if from.IsTerminal() {
		return false
	}
	if to == PhaseFailed {
		return true
	}
	return to > from
}
