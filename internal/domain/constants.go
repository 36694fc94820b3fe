package domain

// Exchange direction, relative to the member who recorded the entry.
const (
	DirectionProvided = "provided"
	DirectionReceived = "received"
)

// Exchange categories form a closed set; anything else is rejected before any mutation.
var ExchangeCategories = map[string]struct{}{
	"food-necessities":    {},
	"repairs-maintenance": {},
	"creative-works":      {},
	"care-work":           {},
	"knowledge-teaching":  {},
	"physical-goods":      {},
	"services-skills":     {},
	"other":               {},
}

// Notification types.
const (
	NotifyExchangeReceived  = "exchange-received"
	NotifyExchangeConfirmed = "exchange-confirmed"
	NotifyBalanceUpdate     = "balance-update"
	NotifyCommunitySupport  = "community-support"
	NotifyCommunityActivity = "community-activity"
	NotifyDirectMessage     = "direct-message"
	NotifySystemMessage     = "system-message"
)

// Notification priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Community activity types.
const (
	ActivityCheckIn            = "community-check-in"
	ActivitySupportOffer       = "support-offer"
	ActivityCommunityEvent     = "community-event"
	ActivityGovernanceProposal = "governance-proposal"
	ActivityResourceSharing    = "resource-sharing"
	ActivityFeedback           = "feedback"
)

var ActivityTypes = map[string]struct{}{
	ActivityCheckIn:            {},
	ActivitySupportOffer:       {},
	ActivityCommunityEvent:     {},
	ActivityGovernanceProposal: {},
	ActivityResourceSharing:    {},
	ActivityFeedback:           {},
}

// Activity lifecycle states.
const (
	ActivityStatusActive    = "active"
	ActivityStatusCompleted = "completed"
	ActivityStatusCancelled = "cancelled"
)

// Activity response types.
var ActivityResponseTypes = map[string]struct{}{
	"support":     {},
	"participate": {},
	"acknowledge": {},
	"decline":     {},
	"other":       {},
}

// User roles.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Balance thresholds (whole pebs) for community-support surfacing.
// Negative balances are a normal state; these only drive visibility.
const (
	SupportNeededBelowPebs = -100
	AttentionBelowPebs     = -50
)
