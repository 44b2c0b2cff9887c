package family

import "time"

// Marriage is one direction of a marriage. Every marriage is stored as two
// rows sharing MarriageID, one per participant.
type Marriage struct {
	MarriageID string    `gorm:"column:marriage_id;primaryKey;size:32" json:"marriage_id"`
	UserID     string    `gorm:"column:user_id;primaryKey;size:64;uniqueIndex:idx_marriages_active_user,where:valid = true" json:"user_id"`
	PartnerID  string    `gorm:"column:partner_id;not null;size:64;index" json:"partner_id"`
	Valid      bool      `gorm:"column:valid;not null;index" json:"valid"`
	ScopeID    string    `gorm:"column:scope_id;not null;size:64" json:"scope_id"`
	CreatedAt  time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Marriage) TableName() string { return "marriages" }

// ParentLink records one child's single parent. ID preserves insertion order
// for child listings.
type ParentLink struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ParentID  string    `gorm:"column:parent_id;not null;size:64;index" json:"parent_id"`
	ChildID   string    `gorm:"column:child_id;not null;size:64;uniqueIndex" json:"child_id"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (ParentLink) TableName() string { return "parents" }

// MemberProfile holds the display label shown in trees. Members without a
// profile are labelled by their id.
type MemberProfile struct {
	MemberID    string    `gorm:"column:member_id;primaryKey;size:64" json:"member_id"`
	DisplayName string    `gorm:"column:display_name;not null;size:256" json:"display_name"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (MemberProfile) TableName() string { return "member_profiles" }
