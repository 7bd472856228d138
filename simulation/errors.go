package simulation

import "errors"

var errNoEngine = errors.New("simulation: engine not initialized")
