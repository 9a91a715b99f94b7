package service

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrQueueFull = errors.New("guess queue is full")
)
