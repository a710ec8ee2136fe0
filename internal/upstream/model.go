package upstream

import "time"

// Subscription statuses reported by the marketplace API.
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
	StatusPending   = "pending"
	StatusExpired   = "expired"
)

// Subscription is a billing subscription record.
type Subscription struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Plan      string     `json:"plan"`
	Period    string     `json:"period"`
	Status    string     `json:"status"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// Usage is the server-tracked consumption for the current period.
type Usage struct {
	ProposalsUsed      int `json:"proposalsUsed"`
	RemainingProposals int `json:"remainingProposals"`
}

// Limits is the entitlement payload for a subscription.
type Limits struct {
	ProposalsPerMonth int    `json:"proposalsPerMonth"`
	ActiveRequests    int    `json:"activeRequests"`
	CanSeeBudget      bool   `json:"canSeeBudget"`
	Priority          string `json:"priority"`
	VerificationBadge bool   `json:"verificationBadge"`
	Usage             *Usage `json:"usage,omitempty"`
}

// CreateSubscriptionInput starts a subscription for the authenticated user.
type CreateSubscriptionInput struct {
	Plan   string `json:"plan"`
	Period string `json:"period"`
}

// CreateSubscriptionResult is either a created subscription or a checkout
// URL for the payment provider.
type CreateSubscriptionResult struct {
	Success    bool          `json:"success"`
	Data       *Subscription `json:"data,omitempty"`
	PaymentURL string        `json:"paymentUrl,omitempty"`
}

// Request is a client's brief for a shoot, as listed to creatives.
type Request struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Category    string     `json:"category"`
	Location    string     `json:"location"`
	EventDate   *time.Time `json:"eventDate,omitempty"`
	Budget      *int64     `json:"budget,omitempty"`
	ClientID    string     `json:"clientId"`
	ClientPhone string     `json:"clientPhone,omitempty"`
	Status      string     `json:"status"`
}

// ProposalInput is a creative's offer on a request.
type ProposalInput struct {
	Message string `json:"message"`
	Price   int64  `json:"price"`
}

// Proposal is a submitted offer.
type Proposal struct {
	ID         string `json:"id"`
	RequestID  string `json:"requestId"`
	CreativeID string `json:"creativeId"`
	Message    string `json:"message"`
	Price      int64  `json:"price"`
	Status     string `json:"status"`
}
