package domain

import "errors"

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrClassNotFound        = errors.New("class not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrStartNumberTaken     = errors.New("start number already taken")
)
