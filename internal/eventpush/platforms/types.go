// Package platforms renders event push messages for each delivery target.
package platforms

import "context"

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is the platform-neutral rendering of one bus event. Payload carries
// the raw event for adapters that forward it untouched.
type Message struct {
	EventID     string
	Title       string
	Content     string
	Description string
	Color       int
	Timestamp   string
	Footer      string
	Fields      []Field
	Payload     any
}

type Adapter interface {
	Name() string
	Send(ctx context.Context, endpoint, secret string, msg Message) error
}

// Adapters returns every built-in adapter keyed by platform name.
func Adapters(client *HTTPClient) map[string]Adapter {
	out := map[string]Adapter{}
	for _, a := range []Adapter{NewDiscordAdapter(client), NewFeishuAdapter(client), NewWebhookAdapter(client)} {
		out[a.Name()] = a
	}
	return out
}
