package service

import "errors"

var (
	ErrUnknownSubject   = errors.New("unknown subject")
	ErrUnknownChapter   = errors.New("unknown chapter")
	ErrUnknownItem      = errors.New("item not tracked")
	ErrDuplicate        = errors.New("already exists")
	ErrInvalidWeights   = errors.New("invalid weights")
	ErrPaperUnavailable = errors.New("paper not available at this level")
	ErrNoPresets        = errors.New("no preset catalog configured")
)
