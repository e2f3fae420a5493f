package model

import "time"

// Note is a document in the host's note store, as seen by note actions.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NotePatch lists note fields to change. Nil fields are left alone.
type NotePatch struct {
	Title   *string
	Content *string
	Tags    *[]string
}

// Fields returns n as a variable map suitable for merging into a workflow
// environment.
func (n *Note) Fields() map[string]any {
	tags := make([]any, len(n.Tags))
	for i, t := range n.Tags {
		tags[i] = t
	}
	return map[string]any{
		"id":        n.ID,
		"title":     n.Title,
		"content":   n.Content,
		"tags":      tags,
		"createdAt": n.CreatedAt,
		"updatedAt": n.UpdatedAt,
	}
}
