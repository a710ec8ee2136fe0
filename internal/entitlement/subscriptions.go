package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/picha-hub/picha_portal/internal/metrics"
	"github.com/picha-hub/picha_portal/internal/upstream"
)

const (
	PlanBasic = "basic"
	PlanPro   = "pro"

	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"

	genericCreateFailure = "Could not start the subscription. Please try again."
	genericCancelFailure = "Could not cancel the subscription. Please try again."
)

var (
	ErrInvalidPlan   = errors.New("plan must be basic or pro")
	ErrInvalidPeriod = errors.New("period must be monthly or yearly")
)

// CreateResult is the structured outcome of CreateSubscription. When the
// provider needs a checkout, PaymentURL is set and Subscription may be nil.
type CreateResult struct {
	OK           bool                   `json:"ok"`
	Subscription *upstream.Subscription `json:"subscription,omitempty"`
	PaymentURL   string                 `json:"paymentUrl,omitempty"`
	Message      string                 `json:"message,omitempty"`
}

// ValidatePlan checks a plan/period pair before it is sent upstream.
func ValidatePlan(plan, period string) error {
	switch plan {
	case PlanBasic, PlanPro:
	default:
		return ErrInvalidPlan
	}
	switch period {
	case PeriodMonthly, PeriodYearly:
	default:
		return ErrInvalidPeriod
	}
	return nil
}

// CreateSubscription asks the API to start a subscription. The cache is not
// touched; callers refresh once the payment is confirmed.
func (c *Cache) CreateSubscription(ctx context.Context, plan, period string) CreateResult {
	plan = strings.ToLower(strings.TrimSpace(plan))
	period = strings.ToLower(strings.TrimSpace(period))
	if err := ValidatePlan(plan, period); err != nil {
		return CreateResult{Message: err.Error()}
	}

	res, err := c.api.CreateSubscription(ctx, upstream.CreateSubscriptionInput{Plan: plan, Period: period})
	if err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues("create_subscription").Inc()
		c.logger.Warn("create subscription failed", slog.String("plan", plan), slog.Any("error", err))
		return CreateResult{Message: upstream.Message(err, genericCreateFailure)}
	}
	if !res.Success {
		return CreateResult{Message: genericCreateFailure}
	}
	return CreateResult{OK: true, Subscription: res.Data, PaymentURL: res.PaymentURL}
}

// CancelSubscription cancels id upstream. On success the cached subscription
// (if it is the one cancelled) is marked cancelled and a refresh starts.
func (c *Cache) CancelSubscription(ctx context.Context, id string) (*upstream.Subscription, error) {
	sub, err := c.api.CancelSubscription(ctx, id)
	if err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues("cancel_subscription").Inc()
		c.logger.Warn("cancel subscription failed", slog.String("subscription_id", id), slog.Any("error", err))
		return nil, err
	}

	c.mu.Lock()
	if c.state.Subscription != nil && c.state.Subscription.ID == id {
		c.state.Subscription.Status = upstream.StatusCancelled
	}
	c.mu.Unlock()

	c.Refresh()
	return &sub, nil
}

// CancelMessage turns a cancel error into visitor-facing text.
func CancelMessage(err error) string {
	return upstream.Message(err, genericCancelFailure)
}
