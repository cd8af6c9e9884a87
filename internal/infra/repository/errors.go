package repository

import "errors"

var (
	ErrInvalidMessageData = errors.New("invalid message data")
	ErrInvalidWindowData  = errors.New("invalid window marker data")
	ErrInvalidResultData  = errors.New("invalid batch result data")
)
