package recorder

import "errors"

// ErrConfiguration is returned by Start when a session cannot be set up.
var ErrConfiguration = errors.New("recorder: cannot start session")
