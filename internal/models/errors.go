package models

import (
	"errors"
	"fmt"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrPaymentNotFound     = errors.New("payment not found at gateway")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrPaymentNotSucceeded = errors.New("payment not succeeded")
	ErrAlreadyProvisioned  = errors.New("transaction already provisioned")
)

// ProvisioningError means the payment went through but the panel could not
// create the account. Diagnostic carries the backend's response body for
// operator follow-up.
type ProvisioningError struct {
	Diagnostic string
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed: %s", e.Diagnostic)
}
