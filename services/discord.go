package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"charforge/models"
)

// DiscordNotifier posts character submissions to a Discord webhook so the
// game masters can review them. A failed notification is reported back as a
// tool-level failure by the caller, never as a turn failure.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Fields      []discordField `json:"fields"`
}

type discordWebhookPayload struct {
	Content string         `json:"content"`
	Embeds  []discordEmbed `json:"embeds"`
}

// Notify posts a submission embed to the configured webhook.
func (n *DiscordNotifier) Notify(ctx context.Context, ch models.Character, submitterEmail string) error {
	if n.webhookURL == "" {
		return fmt.Errorf("discord webhook is not configured")
	}

	payload := discordWebhookPayload{
		Content: fmt.Sprintf("New character submitted by %s", submitterEmail),
		Embeds: []discordEmbed{{
			Title:       ch.Name,
			Description: "Awaiting game master approval",
			Fields: []discordField{
				{Name: "Class", Value: stringOrDash(ch.Class), Inline: true},
				{Name: "Race", Value: stringOrDash(ch.Race), Inline: true},
				{Name: "Scores", Value: formatScores(ch.Scores), Inline: false},
			},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func stringOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func formatScores(scores models.AbilityScores) string {
	if !scores.Complete() {
		return "not assigned"
	}
	return fmt.Sprintf("STR %d / DEX %d / CON %d / INT %d / WIS %d / CHA %d",
		*scores.Strength, *scores.Dexterity, *scores.Constitution,
		*scores.Intelligence, *scores.Wisdom, *scores.Charisma)
}
