package report

import "errors"

// ErrNoFrames — в стеке не найдено ни одного кадра.
var ErrNoFrames = errors.New("no frames in stack trace")
