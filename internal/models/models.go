package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/ripple-community/pebs-api/internal/domain"
)

type User struct {
	ID           uuid.UUID   `json:"id"`
	Username     string      `json:"username"`
	DisplayName  string      `json:"display_name"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Biography    string      `json:"biography"`
	Avatar       string      `json:"avatar"`
	Location     string      `json:"location"`
	Skills       []string    `json:"skills"`
	Needs        []string    `json:"needs"`
	PebsBalance  domain.Pebs `json:"pebs_balance_micros"`
	Role         string      `json:"role"`
	IsActive     bool        `json:"is_active"`
	LastActive   time.Time   `json:"last_active"`
	CreatedAt    time.Time   `json:"created_at"`
}

// BalanceStatus buckets the balance for community-support views.
func (u *User) BalanceStatus() string {
	return domain.BalanceStatus(u.PebsBalance)
}

// UserRef is the display slice of a user composed into read responses.
type UserRef struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Avatar      string    `json:"avatar"`
}

func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Avatar: u.Avatar}
}

// Exchange is one immutable recorded transfer of pebs between two members.
type Exchange struct {
	ID              uuid.UUID   `json:"id"`
	InitiatorID     uuid.UUID   `json:"initiator_id"`
	CounterpartID   uuid.UUID   `json:"counterpart_id"`
	Direction       string      `json:"direction"`
	Description     string      `json:"description"`
	Category        string      `json:"category"`
	AmountMicros    domain.Pebs `json:"amount_micros"`
	Notes           string      `json:"notes"`
	Location        string      `json:"location"`
	Images          []string    `json:"images"`
	IsConfirmed     bool        `json:"is_confirmed"`
	IsEdited        bool        `json:"is_edited"`
	CorrectionNotes string      `json:"correction_notes,omitempty"`
	ExchangeDate    time.Time   `json:"exchange_date"`
	CreatedAt       time.Time   `json:"created_at"`

	Initiator   *UserRef `json:"initiator,omitempty"`
	Counterpart *UserRef `json:"counterpart,omitempty"`
}

// Flow resolves the giver and receiver of the exchange from its direction.
// Direction is relative to the initiator: provided means the initiator gave
// value and therefore pays pebs to the counterpart.
func (e *Exchange) Flow() (giver, receiver uuid.UUID) {
	if e.Direction == domain.DirectionReceived {
		return e.CounterpartID, e.InitiatorID
	}
	return e.InitiatorID, e.CounterpartID
}

type Notification struct {
	ID          uuid.UUID        `json:"id"`
	RecipientID uuid.UUID        `json:"recipient_id"`
	Type        string           `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Data        NotificationData `json:"data"`
	IsRead      bool             `json:"is_read"`
	Priority    string           `json:"priority"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NotificationData is the structured payload referencing the triggering entity.
type NotificationData struct {
	ExchangeID   *uuid.UUID `json:"exchange_id,omitempty"`
	ActorID      *uuid.UUID `json:"actor_id,omitempty"`
	ActivityID   *uuid.UUID `json:"activity_id,omitempty"`
	SubjectID    *uuid.UUID `json:"subject_id,omitempty"`
	AmountMicros *int64     `json:"amount_micros,omitempty"`
}

type CommunityActivity struct {
	ID           uuid.UUID  `json:"id"`
	ActivityType string     `json:"activity_type"`
	InitiatorID  uuid.UUID  `json:"initiator_id"`
	TargetUserID *uuid.UUID `json:"target_user_id,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Location     string     `json:"location"`
	Tags         []string   `json:"tags"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	IsPublic     bool       `json:"is_public"`
	CreatedAt    time.Time  `json:"created_at"`

	Initiator  *UserRef           `json:"initiator,omitempty"`
	TargetUser *UserRef           `json:"target_user,omitempty"`
	Responses  []ActivityResponse `json:"responses,omitempty"`
}

// ActivityResponse is keyed by (activity, user); a member responding twice
// replaces their earlier response.
type ActivityResponse struct {
	ActivityID   uuid.UUID `json:"activity_id"`
	UserID       uuid.UUID `json:"user_id"`
	Response     string    `json:"response"`
	ResponseType string    `json:"response_type"`
	CreatedAt    time.Time `json:"created_at"`

	User *UserRef `json:"user,omitempty"`
}

// CategoryStat is one row of the per-category ledger aggregate.
type CategoryStat struct {
	Category    string      `json:"category"`
	Count       int64       `json:"count"`
	TotalMicros domain.Pebs `json:"total_amount_micros"`
}

// DailyStat is one day's bucket of the trailing-window ledger aggregate.
type DailyStat struct {
	Day         time.Time   `json:"day"`
	Count       int64       `json:"count"`
	TotalMicros domain.Pebs `json:"total_amount_micros"`
}

// OverallStats is the ledger-wide aggregate.
type OverallStats struct {
	TotalExchanges int64       `json:"total_exchanges"`
	TotalMicros    domain.Pebs `json:"total_amount_micros"`
	AverageMicros  domain.Pebs `json:"average_amount_micros"`
}
