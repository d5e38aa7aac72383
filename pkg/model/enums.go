package model

import (
	"fmt"

	"github.com/ethpandaops/angles-client-go/pkg/canonical"
)

// ExecutionState is the result state of a build, execution or action.
type ExecutionState string

const (
	ExecutionSkipped ExecutionState = "SKIPPED"
	ExecutionPass    ExecutionState = "PASS"
	ExecutionError   ExecutionState = "ERROR"
	ExecutionFail    ExecutionState = "FAIL"
)

// StepState is the state of a single reported step.
type StepState string

const (
	StepInfo  StepState = "INFO"
	StepDebug StepState = "DEBUG"
	StepPass  StepState = "PASS"
	StepError StepState = "ERROR"
	StepFail  StepState = "FAIL"
)

// GroupingPeriod controls how phase metrics are bucketed.
type GroupingPeriod string

const (
	GroupingDay       GroupingPeriod = "day"
	GroupingWeek      GroupingPeriod = "week"
	GroupingFortnight GroupingPeriod = "fortnight"
	GroupingMonth     GroupingPeriod = "month"
	GroupingYear      GroupingPeriod = "year"
)

// Compile-time interface checks.
var (
	_ canonical.Enum = ExecutionState("")
	_ canonical.Enum = StepState("")
	_ canonical.Enum = GroupingPeriod("")
)

// EnumValue returns the wire literal.
func (s ExecutionState) EnumValue() any { return string(s) }

// EnumValue returns the wire literal.
func (s StepState) EnumValue() any { return string(s) }

// EnumValue returns the wire literal.
func (p GroupingPeriod) EnumValue() any { return string(p) }

var validStepStates = map[StepState]struct{}{
	StepInfo:  {},
	StepDebug: {},
	StepPass:  {},
	StepError: {},
	StepFail:  {},
}

// ParseStepState converts a literal into a StepState.
func ParseStepState(s string) (StepState, error) {
	state := StepState(s)
	if _, ok := validStepStates[state]; !ok {
		return "", fmt.Errorf("unknown step state %q", s)
	}

	return state, nil
}

var validGroupingPeriods = map[GroupingPeriod]struct{}{
	GroupingDay:       {},
	GroupingWeek:      {},
	GroupingFortnight: {},
	GroupingMonth:     {},
	GroupingYear:      {},
}

// ParseGroupingPeriod converts a literal into a GroupingPeriod.
func ParseGroupingPeriod(s string) (GroupingPeriod, error) {
	period := GroupingPeriod(s)
	if _, ok := validGroupingPeriods[period]; !ok {
		return "", fmt.Errorf("unknown grouping period %q", s)
	}

	return period, nil
}
