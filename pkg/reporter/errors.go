package reporter

import (
	"errors"
	"fmt"
)

// ErrUsage is the parent of every error caused by calling the reporter in
// the wrong state. No request is sent when one is returned.
var ErrUsage = errors.New("reporter usage error")

var (
	ErrNoCurrentBuild = fmt.Errorf(
		"%w: no current build set, call StartBuild or SetCurrentBuildID first", ErrUsage)
	ErrNoCurrentTest = fmt.Errorf(
		"%w: no current test started, call StartTest first", ErrUsage)
	ErrAlreadyInitialized = fmt.Errorf(
		"%w: reporter already initialized, use Instance", ErrUsage)
)
