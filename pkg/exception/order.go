package exception

import "github.com/yanun0323/errors"

var (
	ErrOrderUnsupportedSide    = errors.New("order: unsupported side")
	ErrOrderDecodeResponseBody = errors.New("order: decode response body")
	ErrOrderEmptyResponseID    = errors.New("order: empty response order id")
)

var (
	// ErrGatewayResponse is returned when the exchange answers with a non-2xx status.
	ErrGatewayResponse = errors.New("order: gateway response status is not 2xx")
)
