package types

import "errors"

var ErrNotFound = errors.New("not found")
var ErrDuplicateUUID = errors.New("uuid already exists")
var ErrInvalidSchedule = errors.New("invalid schedule")
