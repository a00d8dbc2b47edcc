package platforms

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// feishuTemplates maps embed colours onto the card header palette.
var feishuTemplates = map[int]string{
	0x3BA55D: "green",
	0x57F287: "turquoise",
	0xFEE75C: "yellow",
	0xED4245: "red",
}

type FeishuAdapter struct {
	client *HTTPClient
	now    func() time.Time
}

func NewFeishuAdapter(client *HTTPClient) *FeishuAdapter {
	return &FeishuAdapter{client: client, now: time.Now}
}

func (a *FeishuAdapter) Name() string { return "feishu" }

// Send posts an interactive card. A non-empty secret signs the request the
// way custom bots expect: timestamp and sign travel in the body.
func (a *FeishuAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	elements := []map[string]string{{"tag": "markdown", "text": fallback(msg.Description, msg.Content)}}
	for _, f := range msg.Fields {
		elements = append(elements, map[string]string{"tag": "markdown", "text": "**" + f.Name + "**: " + f.Value})
	}
	if msg.Footer != "" {
		elements = append(elements, map[string]string{"tag": "markdown", "text": "*" + msg.Footer + "*"})
	}
	template, ok := feishuTemplates[msg.Color]
	if !ok {
		template = "blue"
	}
	payload := map[string]any{
		"msg_type": "interactive",
		"card": map[string]any{
			"header": map[string]any{
				"title":    map[string]string{"tag": "plain_text", "content": msg.Title},
				"template": template,
			},
			"elements": elements,
		},
	}
	if s := strings.TrimSpace(secret); s != "" {
		ts := strconv.FormatInt(a.now().Unix(), 10)
		payload["timestamp"] = ts
		payload["sign"] = FeishuSign(s, ts)
	}
	return a.client.PostJSON(ctx, endpoint, nil, payload)
}

// FeishuSign computes the custom bot signature for timestamp ts.
func FeishuSign(secret, ts string) string {
	mac := hmac.New(sha256.New, []byte(ts+"\n"+secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func fallback(v, d string) string {
	if v == "" {
		return d
	}
	return v
}
