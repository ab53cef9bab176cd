package exception

import "github.com/yanun0323/errors"

// General errors
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNilInstance   = errors.New("nil instance")
	ErrInvalidConfig = errors.New("invalid config")
)
