package mq

import (
	"context"
	"time"
)

type ActivityType string

const (
	ActivityEntryCreated    ActivityType = "entry.created"
	ActivityEntryDeleted    ActivityType = "entry.deleted"
	ActivityReactionToggled ActivityType = "reaction.toggled"
	ActivityCommentCreated  ActivityType = "comment.created"
	ActivityTopicCreated    ActivityType = "forum.topic.created"
	ActivityReplyCreated    ActivityType = "forum.reply.created"
	ActivityProjectCreated  ActivityType = "project.created"
	ActivityAccountDeleted  ActivityType = "account.deleted"
)

// ActivityEvent is the message body published on the activity exchange,
// routed by Type.
type ActivityEvent struct {
	Type    ActivityType   `json:"type"`
	Actor   string         `json:"actor"`
	Project string         `json:"project,omitempty"`
	EntryID uint           `json:"entry_id,omitempty"`
	TopicID uint           `json:"topic_id,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	At      time.Time      `json:"at"`
}

// Recorder collects events in memory. Used when RabbitMQ is disabled and in tests.
type Recorder struct {
	Events []ActivityEvent
}

func (r *Recorder) PublishActivity(_ context.Context, ev ActivityEvent) error {
	r.Events = append(r.Events, ev)
	return nil
}

// Discard drops every event.
type Discard struct{}

func (Discard) PublishActivity(context.Context, ActivityEvent) error { return nil }
