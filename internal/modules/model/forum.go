package model

import (
	"fmt"
	"time"
)

const (
	CategoryGeneral = "general"
	CategoryHelp    = "help"
)

// DefaultCategories are created for every language and every project.
var DefaultCategories = []string{CategoryGeneral, CategoryHelp}

func IsDefaultCategory(name string) bool {
	for _, c := range DefaultCategories {
		if c == name {
			return true
		}
	}
	return false
}

// ForumOwner is either a LanguageForum or a ProjectForum.
type ForumOwner interface {
	isForumOwner()
	String() string
}

type LanguageForum struct {
	TagID uint
}

func (LanguageForum) isForumOwner()    {}
func (o LanguageForum) String() string { return fmt.Sprintf("language:%d", o.TagID) }

type ProjectForum struct {
	ProjectName string
}

func (ProjectForum) isForumOwner()    {}
func (o ProjectForum) String() string { return "project:" + o.ProjectName }

// ForumCategory stores its owner in two nullable columns; the check
// constraint guarantees exactly one of them is set.
type ForumCategory struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	Name          string  `gorm:"type:varchar(50);not null;uniqueIndex:idx_forum_cat_language,priority:2;uniqueIndex:idx_forum_cat_project,priority:2" json:"name"`
	LanguageTagID *uint   `gorm:"uniqueIndex:idx_forum_cat_language,priority:1;check:chk_forum_categories_owner,(language_tag_id IS NULL) <> (project_name IS NULL)" json:"language_tag_id,omitempty"`
	ProjectName   *string `gorm:"type:varchar(100);uniqueIndex:idx_forum_cat_project,priority:1" json:"project_name,omitempty"`

	LanguageTag *LanguageTag `gorm:"foreignKey:LanguageTagID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
	Project     *Project     `gorm:"foreignKey:ProjectName;references:Name;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (ForumCategory) TableName() string { return "forum_categories" }

func (c *ForumCategory) Owner() ForumOwner {
	if c.LanguageTagID != nil {
		return LanguageForum{TagID: *c.LanguageTagID}
	}
	if c.ProjectName != nil {
		return ProjectForum{ProjectName: *c.ProjectName}
	}
	return nil
}

func (c *ForumCategory) SetOwner(o ForumOwner) {
	c.LanguageTagID, c.ProjectName = nil, nil
	switch v := o.(type) {
	case LanguageForum:
		id := v.TagID
		c.LanguageTagID = &id
	case ProjectForum:
		name := v.ProjectName
		c.ProjectName = &name
	}
}

type ForumTopic struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"type:varchar(200);not null" json:"title"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CategoryID uint      `gorm:"not null;index" json:"category_id"`
	AuthorTag  string    `gorm:"type:varchar(50);not null;index" json:"author_tag"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Category *ForumCategory `gorm:"foreignKey:CategoryID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
	Author   *User          `gorm:"foreignKey:AuthorTag;references:DeveloperTag;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (ForumTopic) TableName() string { return "forum_topics" }

type ForumReply struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	TopicID   uint      `gorm:"not null;index" json:"topic_id"`
	AuthorTag string    `gorm:"type:varchar(50);not null;index" json:"author_tag"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Topic  *ForumTopic `gorm:"foreignKey:TopicID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
	Author *User       `gorm:"foreignKey:AuthorTag;references:DeveloperTag;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (ForumReply) TableName() string { return "forum_replies" }

// All returns every model in dependency order for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Project{},
		&ProjectMember{},
		&LanguageTag{},
		&ProjectLanguage{},
		&Entry{},
		&Reaction{},
		&Comment{},
		&ForumCategory{},
		&ForumTopic{},
		&ForumReply{},
	}
}
