package encoder

import "errors"

// ErrBadShape reports a feature vector whose length does not match the
// encoder input dimension. Shape mismatches are caller errors.
var ErrBadShape = errors.New("feature vector shape mismatch")
