package model

import (
	"time"
)

type Entry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"type:varchar(200);not null" json:"title"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	ProjectName  string    `gorm:"type:varchar(100);not null;index" json:"project_name"`
	DeveloperTag string    `gorm:"type:varchar(50);not null;index" json:"developer_tag"`
	Timestamp    time.Time `gorm:"not null;index" json:"timestamp"`
	StartTime    time.Time `gorm:"not null" json:"start_time"`
	EndTime      time.Time `gorm:"not null" json:"end_time"`
	// TimeWorked is in minutes and always derived from StartTime/EndTime.
	TimeWorked int     `gorm:"not null;default:0" json:"time_worked"`
	CommitSHA  *string `gorm:"column:commit_sha;type:varchar(40)" json:"commit_sha,omitempty"`

	Project   *Project `gorm:"foreignKey:ProjectName;references:Name;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
	Developer *User    `gorm:"foreignKey:DeveloperTag;references:DeveloperTag;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (Entry) TableName() string { return "log_entries" }

type ReactionKind int

const (
	ReactionNone    ReactionKind = 0
	ReactionLike    ReactionKind = 1
	ReactionDislike ReactionKind = 2
)

func (k ReactionKind) String() string {
	switch k {
	case ReactionLike:
		return "like"
	case ReactionDislike:
		return "dislike"
	default:
		return "none"
	}
}

// ParseReactionKind accepts "like" or "dislike".
func ParseReactionKind(s string) (ReactionKind, bool) {
	switch s {
	case "like":
		return ReactionLike, true
	case "dislike":
		return ReactionDislike, true
	default:
		return ReactionNone, false
	}
}

type Reaction struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	EntryID      uint         `gorm:"not null;uniqueIndex:idx_reaction_entry_user,priority:1" json:"entry_id"`
	UserTag      string       `gorm:"type:varchar(50);not null;uniqueIndex:idx_reaction_entry_user,priority:2;index" json:"user_tag"`
	ReactionType ReactionKind `gorm:"not null" json:"reaction_type"`
	Timestamp    time.Time    `gorm:"autoCreateTime" json:"timestamp"`

	Entry *Entry `gorm:"foreignKey:EntryID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
	User  *User  `gorm:"foreignKey:UserTag;references:DeveloperTag;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (Reaction) TableName() string { return "entry_reactions" }

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EntryID   uint      `gorm:"not null;index" json:"entry_id"`
	UserTag   string    `gorm:"type:varchar(50);not null;index" json:"user_tag"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time `gorm:"autoCreateTime" json:"timestamp"`
	ParentID  *uint     `gorm:"index" json:"parent_id,omitempty"`

	Entry  *Entry   `gorm:"foreignKey:EntryID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
	Author *User    `gorm:"foreignKey:UserTag;references:DeveloperTag;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
	Parent *Comment `gorm:"foreignKey:ParentID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (Comment) TableName() string { return "comments" }
