// Package domain defines the persistence models for companies, communication
// methods, communication logs, users, and notifications. These types are
// mapped with GORM and form the core data layer of the follow-up tracker.
package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Company is an organization the team keeps in touch with on a recurring
// cadence.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name / Location: display data; Name is required.
//   - LinkedInProfile: optional profile URL.
//   - Emails / PhoneNumbers: JSON arrays of contact points.
//   - Comments: free-form notes.
//   - Periodicity: cadence that drives the follow-up schedule.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type Company struct {
	ID              string                      `json:"id"                        gorm:"type:char(36);primaryKey"`
	Name            string                      `json:"name"                      gorm:"type:varchar(255);not null;index:idx_company_name"`
	Location        string                      `json:"location"                  gorm:"type:varchar(255)"`
	LinkedInProfile *string                     `json:"linkedin_profile,omitempty" gorm:"column:linkedin_profile;type:varchar(512)"`
	Emails          datatypes.JSONSlice[string] `json:"emails"`
	PhoneNumbers    datatypes.JSONSlice[string] `json:"phone_numbers"`
	Comments        string                      `json:"comments"                  gorm:"type:text"`
	Periodicity     Periodicity                 `json:"communication_periodicity" gorm:"column:communication_periodicity;type:varchar(16);not null;default:'monthly'"`
	CreatedAt       time.Time                   `json:"created_at"                gorm:"index:idx_company_created"`
	UpdatedAt       time.Time                   `json:"updated_at"`
	DeletedAt       gorm.DeletedAt              `json:"-"                         gorm:"index"`
}

// TableName returns the database table name for Company.
func (Company) TableName() string { return "companies" }

// CommunicationMethod is one step of the outreach sequence (LinkedIn post,
// email, call, ...). Methods are globally ordered by Sequence, which is unique
// among live rows.
type CommunicationMethod struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	Name        string         `json:"name"        gorm:"type:varchar(128);not null"`
	Description string         `json:"description" gorm:"type:text"`
	Sequence    int            `json:"sequence"    gorm:"not null;uniqueIndex:idx_method_sequence_live,where:deleted_at IS NULL"`
	Mandatory   bool           `json:"mandatory"   gorm:"not null;default:false"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for CommunicationMethod.
func (CommunicationMethod) TableName() string { return "communication_methods" }

// CommunicationLog records one completed outreach action. Entries are
// immutable once created.
//
// MethodID intentionally has no foreign key: a log outlives the method it
// references, and the scheduler treats a missing method as "wrap to first".
type CommunicationLog struct {
	ID          string    `json:"id"           gorm:"type:varchar(36);primaryKey"`
	CompanyID   string    `json:"company_id"   gorm:"type:char(36);not null;index:idx_company_logs,priority:1"`
	MethodID    string    `json:"method_id"    gorm:"type:char(36);not null;index"`
	PerformedBy string    `json:"performed_by" gorm:"type:varchar(64);not null;index"`
	Notes       *string   `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"   gorm:"index:idx_company_logs,priority:2"`

	// Company is the contacted company. Logs are cascade-deleted if the
	// company row is hard-deleted.
	Company Company `json:"-" gorm:"foreignKey:CompanyID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for CommunicationLog.
func (CommunicationLog) TableName() string { return "communication_logs" }

// Role is the authorization role of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// User is a team member provisioned from the identity provider.
type User struct {
	ID              string         `json:"id"                gorm:"type:char(36);primaryKey"`
	ExternalID      string         `json:"external_id"       gorm:"type:varchar(128);not null;uniqueIndex"`
	Email           string         `json:"email"             gorm:"type:varchar(255);not null;uniqueIndex"`
	FirstName       string         `json:"first_name"        gorm:"type:varchar(128)"`
	LastName        string         `json:"last_name"         gorm:"type:varchar(128)"`
	ProfileImageURL string         `json:"profile_image_url" gorm:"type:varchar(512)"`
	Role            Role           `json:"role"              gorm:"type:varchar(16);not null;default:'user';index;check:role IN ('user','admin')"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"                 gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// NotificationKind distinguishes the reason a notification was raised.
type NotificationKind string

const (
	NotificationOverdue  NotificationKind = "overdue"
	NotificationDueToday NotificationKind = "due_today"
)

// NotificationStatus tracks whether the recipient has seen a notification.
type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "unread"
	NotificationRead   NotificationStatus = "read"
)

// Notification tells a user that a company needs follow-up. At most one
// notification exists per (user, company, kind, due date).
type Notification struct {
	ID        string             `json:"id"         gorm:"type:varchar(36);primaryKey"`
	UserID    string             `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_notifications,priority:1;uniqueIndex:ux_notification_once,priority:1"`
	CompanyID string             `json:"company_id" gorm:"type:char(36);not null;uniqueIndex:ux_notification_once,priority:2"`
	Kind      NotificationKind   `json:"kind"       gorm:"type:varchar(16);not null;uniqueIndex:ux_notification_once,priority:3;check:kind IN ('overdue','due_today')"`
	Message   string             `json:"message"    gorm:"type:text;not null"`
	Status    NotificationStatus `json:"status"     gorm:"type:varchar(16);not null;default:'unread';check:status IN ('unread','read')"`
	DueDate   time.Time          `json:"due_date"   gorm:"uniqueIndex:ux_notification_once,priority:4"`
	CreatedAt time.Time          `json:"created_at" gorm:"index:idx_user_notifications,priority:2"`
	UpdatedAt time.Time          `json:"updated_at"`

	Company Company `json:"-" gorm:"foreignKey:CompanyID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }
