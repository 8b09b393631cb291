package simulate

import "errors"

// ErrNoRecords reports a simulation request with an empty baseline; the
// mean and deviation of zero rollout steps are undefined, so callers must
// supply at least one record.
var ErrNoRecords = errors.New("simulation requires at least one baseline record")
