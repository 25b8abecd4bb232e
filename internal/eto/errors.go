package eto

import "errors"

// ErrMissingColumns is returned when a required hourly field is absent
// (NaN) for at least one hour in the input array.
var ErrMissingColumns = errors.New("eto: missing required column")

// ErrInsufficientHours is returned when the input array has fewer than
// 24 hourly records.
var ErrInsufficientHours = errors.New("eto: fewer than 24 hours of input")

// MinHours is the minimum hourly record count the kernel will compute
// a daily aggregation from.
const MinHours = 24
