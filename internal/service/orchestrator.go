package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/askhat/vpn-shop-bot/internal/events"
	"github.com/askhat/vpn-shop-bot/internal/interfaces"
	"github.com/askhat/vpn-shop-bot/internal/metrics"
	"github.com/askhat/vpn-shop-bot/internal/models"
)

// Orchestrator drives a purchase through
// pending -> awaiting confirmation -> succeeded -> provisioned.
//
// Status is only ever advanced from gateway responses, and the panel is
// invoked at most once per transaction: confirmations on one transaction id
// are serialized by the locker, and the provisioned marker in the store is
// claimed with an atomic check-then-set before the panel call.
type Orchestrator struct {
	store       interfaces.TransactionStore
	gateway     interfaces.PaymentGateway
	provisioner interfaces.Provisioner
	locks       Locker
	publisher   events.Publisher
	metrics     *metrics.PurchaseMetrics
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewOrchestrator(
	store interfaces.TransactionStore,
	gateway interfaces.PaymentGateway,
	provisioner interfaces.Provisioner,
	locks Locker,
	publisher events.Publisher,
	purchaseMetrics *metrics.PurchaseMetrics,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:       store,
		gateway:     gateway,
		provisioner: provisioner,
		locks:       locks,
		publisher:   publisher,
		metrics:     purchaseMetrics,
		logger:      logger,
		tracer:      otel.Tracer("purchase-orchestrator"),
	}
}

// Initiate registers a payment intent with the gateway and persists the
// pending transaction. The returned record carries the confirmation URL to
// present to the user.
func (o *Orchestrator) Initiate(ctx context.Context, requesterID int64) (*models.Transaction, error) {
	ctx, span := o.tracer.Start(ctx, "purchase.initiate")
	defer span.End()

	description := fmt.Sprintf("VPN access for %d", requesterID)
	metadata := map[string]string{"telegram_id": strconv.FormatInt(requesterID, 10)}

	payment, err := o.gateway.CreatePayment(ctx, description, metadata)
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	now := time.Now().UTC()
	tx := &models.Transaction{
		ID:              payment.ID,
		RequesterID:     requesterID,
		Amount:          payment.Amount,
		Currency:        payment.Currency,
		Status:          payment.Status,
		ConfirmationURL: payment.ConfirmationURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := o.store.Save(ctx, tx); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}

	o.publishTransition(ctx, tx)
	if o.metrics != nil {
		o.metrics.PurchasesInitiatedTotal.Inc()
	}
	o.logger.Info("purchase initiated",
		zap.String("transaction_id", tx.ID),
		zap.Int64("requester_id", requesterID),
		zap.String("amount", tx.Amount.StringFixed(2)),
	)

	span.SetAttributes(attribute.String("transaction_id", tx.ID))
	return tx, nil
}

// Confirm re-verifies the transaction against the gateway and, on the first
// check that observes a succeeded payment, provisions the account. It is safe
// to invoke any number of times, concurrently or across restarts.
func (o *Orchestrator) Confirm(ctx context.Context, id string) (*models.ConfirmOutcome, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "purchase.confirm",
		trace.WithAttributes(attribute.String("transaction_id", id)))
	defer span.End()

	release, err := o.locks.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := o.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrTransactionNotFound) {
			o.recordConfirm("not_found", start)
		}
		return nil, err
	}

	if tx.Provisioned {
		o.recordConfirm("already_provisioned", start)
		return &models.ConfirmOutcome{Status: tx.Status, AlreadyProvisioned: true}, nil
	}

	payment, err := o.gateway.FetchPayment(ctx, id)
	if err != nil {
		o.recordConfirm("gateway_error", start)
		return nil, err
	}

	if payment.Status != models.StatusSucceeded {
		tx, err = o.store.UpdateStatus(ctx, id, payment.Status)
		if err != nil {
			return nil, fmt.Errorf("persist status: %w", err)
		}
		o.publishTransition(ctx, tx)
		o.recordConfirm("not_paid", start)
		return &models.ConfirmOutcome{Status: payment.Status}, nil
	}

	tx, err = o.store.UpdateStatus(ctx, id, models.StatusSucceeded)
	if err != nil {
		return nil, fmt.Errorf("persist status: %w", err)
	}
	o.publishTransition(ctx, tx)

	account, already, err := o.provisionOnce(ctx, tx)
	if err != nil {
		o.recordConfirm("provisioning_failed", start)
		return nil, err
	}
	if already {
		o.recordConfirm("already_provisioned", start)
		return &models.ConfirmOutcome{Status: models.StatusSucceeded, AlreadyProvisioned: true}, nil
	}

	o.recordConfirm("provisioned", start)
	return &models.ConfirmOutcome{Status: models.StatusSucceeded, Account: account}, nil
}

// RetryProvision is the operator path for transactions that are paid but not
// provisioned. It never touches the gateway or re-charges.
func (o *Orchestrator) RetryProvision(ctx context.Context, id string) (*models.ProvisionedAccount, error) {
	ctx, span := o.tracer.Start(ctx, "purchase.retry_provision",
		trace.WithAttributes(attribute.String("transaction_id", id)))
	defer span.End()

	release, err := o.locks.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Status != models.StatusSucceeded {
		return nil, models.ErrPaymentNotSucceeded
	}

	account, already, err := o.provisionOnce(ctx, tx)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, models.ErrAlreadyProvisioned
	}
	return account, nil
}

// provisionOnce claims the provisioned marker and calls the panel. The claim
// is released on failure so a later retry can go through; a lost claim means
// another confirmation already provisioned and the caller must not repeat
// the side effect.
func (o *Orchestrator) provisionOnce(ctx context.Context, tx *models.Transaction) (*models.ProvisionedAccount, bool, error) {
	claimed, err := o.store.ClaimProvisioning(ctx, tx.ID)
	if err != nil {
		return nil, false, fmt.Errorf("claim provisioning: %w", err)
	}
	if !claimed {
		return nil, true, nil
	}

	account, err := o.provisioner.CreateAccount(ctx, tx.RequesterID)
	if err != nil {
		if relErr := o.store.ReleaseProvisioning(ctx, tx.ID); relErr != nil {
			o.logger.Error("failed to release provisioning claim",
				zap.String("transaction_id", tx.ID),
				zap.Error(relErr),
			)
		}
		if o.metrics != nil {
			o.metrics.ProvisioningFailuresTotal.Inc()
		}
		// Money has moved; this log line is what the operator works from.
		o.logger.Error("provisioning failed after successful payment",
			zap.String("transaction_id", tx.ID),
			zap.Int64("requester_id", tx.RequesterID),
			zap.Error(err),
		)
		o.publisher.Publish(ctx, events.TransitionEvent{
			TransactionID: tx.ID,
			RequesterID:   tx.RequesterID,
			Status:        models.StatusSucceeded,
			Provisioned:   false,
			Timestamp:     time.Now().UTC(),
		})

		var perr *models.ProvisioningError
		if errors.As(err, &perr) {
			return nil, false, err
		}
		return nil, false, &models.ProvisioningError{Diagnostic: err.Error()}
	}

	if o.metrics != nil {
		o.metrics.AccountsProvisionedTotal.Inc()
	}
	o.logger.Info("account provisioned",
		zap.String("transaction_id", tx.ID),
		zap.Int64("requester_id", tx.RequesterID),
		zap.String("account", account.Handle),
	)
	o.publisher.Publish(ctx, events.TransitionEvent{
		TransactionID: tx.ID,
		RequesterID:   tx.RequesterID,
		Status:        models.StatusSucceeded,
		Provisioned:   true,
		Timestamp:     time.Now().UTC(),
	})

	return account, false, nil
}

func (o *Orchestrator) publishTransition(ctx context.Context, tx *models.Transaction) {
	o.publisher.Publish(ctx, events.TransitionEvent{
		TransactionID: tx.ID,
		RequesterID:   tx.RequesterID,
		Status:        tx.Status,
		Provisioned:   tx.Provisioned,
		Timestamp:     time.Now().UTC(),
	})
}

func (o *Orchestrator) recordConfirm(result string, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordConfirm(result, time.Since(start).Seconds())
	}
}
