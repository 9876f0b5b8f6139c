package synth

import "errors"

var (
	ErrMarketNotFound         = errors.New("market not found")
	ErrMarketExists           = errors.New("market already exists")
	ErrPositionNotFound       = errors.New("position not found")
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidOrder           = errors.New("invalid order")
	ErrInvalidCollateral      = errors.New("collateral token not valid for market")
	ErrEmptyPrice             = errors.New("empty oracle price")
	ErrNothingToClaim         = errors.New("nothing to claim")
	ErrInsufficientPool       = errors.New("insufficient pool amount")
	ErrOrderNotRetryable      = errors.New("order is not in a retryable state")
	ErrPriceImpactTooLarge    = errors.New("price impact larger than order size")
	ErrInsufficientCollateral = errors.New("insufficient collateral")
	ErrPositionTooSmall       = errors.New("position size below minimum")
)

// Cancellation reasons recorded on orders. Acceptable-price violations
// freeze instead of cancel so the order can retry at a fresh price.
const (
	ReasonUnacceptablePrice      = "unacceptable execution price"
	ReasonPriceImpactTooLarge    = "negative price impact exceeds order size"
	ReasonInsufficientCollateral = "collateral below minimum after fees"
	ReasonPositionTooSmall       = "position size below minimum"
	ReasonSizeExceedsPosition    = "decrease size exceeds position size"
	ReasonInsufficientPoolAmount = "insufficient pool amount"
	ReasonEmptyPosition          = "position is empty"
)
