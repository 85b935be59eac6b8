package service

import "errors"

var (
	ErrEmptyCart            = errors.New("cart is empty, nothing to order")
	ErrAlreadyPaid          = errors.New("order has already been paid")
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured")
)
