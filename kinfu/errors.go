package kinfu

import "github.com/pkg/errors"

// ErrSingularICP is returned (and wrapped with iteration context) when the ICP
// normal-equation system becomes singular or produces a non-finite entry. The
// session is reset and the frame is dropped whenever this occurs.
var ErrSingularICP = errors.New("singular icp system")

// ErrInvalidInput covers empty depth frames, depth/color dimension mismatches, and
// color frames supplied before color integration has been initialized. No state is
// mutated when this error is returned.
var ErrInvalidInput = errors.New("invalid input")

// ErrDeviceFailure stands in for a failure of the simulated parallel accelerator.
// Core state is considered poisoned; callers should reinitialize the tracker.
var ErrDeviceFailure = errors.New("device failure")
