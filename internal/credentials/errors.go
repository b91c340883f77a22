package credentials

import "errors"

// ErrIncompatibleScenario indicates a combination that cannot be
// executed. The runner surfaces it as a skip, never as a failure.
var ErrIncompatibleScenario = errors.New("incompatible scenario configuration")
