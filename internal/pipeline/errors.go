package pipeline

import "errors"

var (
	ErrUnsupportedInput = errors.New("unsupported input type")
	ErrNoRows           = errors.New("no table rows found")
)
