package interfaces

import (
	"context"

	"github.com/askhat/vpn-shop-bot/internal/models"
)

// TransactionStore is the single source of truth for purchase state.
// Implementations must guarantee that concurrent mutations never expose a
// torn record to a reader.
type TransactionStore interface {
	// Save upserts the full record keyed by transaction id.
	Save(ctx context.Context, tx *models.Transaction) error
	// Get returns models.ErrTransactionNotFound for an unknown id.
	Get(ctx context.Context, id string) (*models.Transaction, error)
	// UpdateStatus performs a read-modify-write of the status field and
	// returns the updated record, or models.ErrTransactionNotFound.
	UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) (*models.Transaction, error)
	// ClaimProvisioning atomically flips the provisioned marker from false
	// to true and reports whether this caller won the claim. A false return
	// with nil error means another confirmation already holds it.
	ClaimProvisioning(ctx context.Context, id string) (bool, error)
	// ReleaseProvisioning resets the marker after a failed provisioning
	// attempt so an operator retry can claim it again.
	ReleaseProvisioning(ctx context.Context, id string) error
}

// PaymentGateway creates hosted payment pages and reads back authoritative
// payment state. FetchPayment is a pure read; status transitions are never
// trusted without it.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, description string, metadata map[string]string) (*models.Payment, error)
	FetchPayment(ctx context.Context, id string) (*models.Payment, error)
}

// Provisioner creates a time-boxed access account on the panel. The call has
// a real remote side effect and is not idempotent; callers own the
// at-most-once guarantee.
type Provisioner interface {
	CreateAccount(ctx context.Context, requesterID int64) (*models.ProvisionedAccount, error)
}
