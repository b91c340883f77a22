package api

import "errors"

var errInvalidTimeout = errors.New("invalid timeout duration")
