package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	StatusPending           PaymentStatus = "pending"
	StatusWaitingForCapture PaymentStatus = "waiting_for_capture"
	StatusSucceeded         PaymentStatus = "succeeded"
	StatusCanceled          PaymentStatus = "canceled"
	StatusUnknown           PaymentStatus = "unknown"
)

// ParsePaymentStatus maps a raw gateway status string onto the known
// vocabulary. Anything unrecognized collapses to StatusUnknown, which the
// orchestrator treats as not-yet-succeeded.
func ParsePaymentStatus(raw string) PaymentStatus {
	switch PaymentStatus(raw) {
	case StatusPending, StatusWaitingForCapture, StatusSucceeded, StatusCanceled:
		return PaymentStatus(raw)
	default:
		return StatusUnknown
	}
}

// Transaction is one purchase attempt, keyed by the payment id the gateway
// assigned at creation. Status always mirrors the gateway; Provisioned is the
// at-most-once marker for the account-creation side effect.
type Transaction struct {
	ID              string          `json:"transaction_id"`
	RequesterID     int64           `json:"requester_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          PaymentStatus   `json:"status"`
	ConfirmationURL string          `json:"confirmation_url"`
	Provisioned     bool            `json:"provisioned"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Payment is the gateway's view of a transaction, returned by create and
// fetch calls.
type Payment struct {
	ID              string
	Status          PaymentStatus
	Amount          decimal.Decimal
	Currency        string
	ConfirmationURL string
}

// ProvisionedAccount is what the panel hands back for a paid transaction.
// It is not persisted; it goes straight into the outgoing message.
type ProvisionedAccount struct {
	Handle               string
	ConnectionDescriptor string
}

// ConfirmOutcome is the result of a confirmation check that did not error.
type ConfirmOutcome struct {
	Status PaymentStatus
	// Account is set when this check performed the provisioning.
	Account *ProvisionedAccount
	// AlreadyProvisioned reports that a previous check already created the
	// account for this transaction.
	AlreadyProvisioned bool
}
