package exception

import "github.com/yanun0323/errors"

var (
	ErrFeedClosed         = errors.New("market data: feed closed")
	ErrFeedNotStarted     = errors.New("market data: feed not started")
	ErrFeedSubscribeReply = errors.New("market data: subscribe rejected")
)
