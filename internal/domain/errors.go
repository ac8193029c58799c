package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrMarketNotFound      = errors.New("market not found")
	ErrMarketClosed        = errors.New("market closed")
	ErrRateLimited         = errors.New("rate limited")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientFee     = errors.New("insufficient fee balance")
	ErrAmountOverflow      = errors.New("amount exceeds 64-bit ceiling")
	ErrInvalidKey          = errors.New("invalid signing key")
	ErrWSDisconnect        = errors.New("websocket disconnected")
)
