package platforms

import "context"

// Discord rejects embeds past these sizes.
const (
	discordTitleLimit       = 256
	discordDescriptionLimit = 4096
	discordFieldLimit       = 25
)

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Footer      *discordFooter      `json:"footer,omitempty"`
	Fields      []discordEmbedField `json:"fields"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordWebhook struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

type DiscordAdapter struct {
	client *HTTPClient
}

func NewDiscordAdapter(client *HTTPClient) *DiscordAdapter {
	return &DiscordAdapter{client: client}
}

func (a *DiscordAdapter) Name() string { return "discord" }

func (a *DiscordAdapter) Send(ctx context.Context, endpoint, _ string, msg Message) error {
	embed := discordEmbed{
		Title:       truncate(msg.Title, discordTitleLimit),
		Description: truncate(msg.Description, discordDescriptionLimit),
		Color:       msg.Color,
		Timestamp:   msg.Timestamp,
		Fields:      make([]discordEmbedField, 0, min(len(msg.Fields), discordFieldLimit)),
	}
	if msg.Footer != "" {
		embed.Footer = &discordFooter{Text: msg.Footer}
	}
	for i, f := range msg.Fields {
		if i == discordFieldLimit {
			break
		}
		embed.Fields = append(embed.Fields, discordEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return a.client.PostJSON(ctx, endpoint, nil, discordWebhook{Content: msg.Content, Embeds: []discordEmbed{embed}})
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
