package model

import (
	"time"
)

type Project struct {
	Name          string    `gorm:"primaryKey;type:varchar(100)" json:"name"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	RepositoryURL string    `gorm:"type:varchar(255);not null" json:"repository_url"`
	CreatedBy     *string   `gorm:"type:varchar(50);index" json:"created_by,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Project <-> User (creator); cleared when the creator deletes their account
	Creator *User `gorm:"foreignKey:CreatedBy;references:DeveloperTag;constraint:OnDelete:SET NULL,OnUpdate:CASCADE;" json:"-"`
}

func (Project) TableName() string { return "projects" }

type ProjectMember struct {
	ProjectName  string    `gorm:"primaryKey;type:varchar(100)" json:"project_name"`
	DeveloperTag string    `gorm:"primaryKey;type:varchar(50);index" json:"developer_tag"`
	JoinedAt     time.Time `gorm:"autoCreateTime" json:"joined_at"`

	Project *Project `gorm:"foreignKey:ProjectName;references:Name;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
	User    *User    `gorm:"foreignKey:DeveloperTag;references:DeveloperTag;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (ProjectMember) TableName() string { return "project_members" }

type LanguageTag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(50);not null;uniqueIndex:idx_language_tags_name" json:"name"`
}

func (LanguageTag) TableName() string { return "language_tags" }

type ProjectLanguage struct {
	ProjectName   string `gorm:"primaryKey;type:varchar(100)" json:"project_name"`
	LanguageTagID uint   `gorm:"primaryKey;index" json:"language_tag_id"`

	Project     *Project     `gorm:"foreignKey:ProjectName;references:Name;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
	LanguageTag *LanguageTag `gorm:"foreignKey:LanguageTagID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (ProjectLanguage) TableName() string { return "project_tags" }
