package analyzer

import (
	"fmt"
	"strings"

	"campaign-server/internal/domain"
)

var channelGuidance = map[string]string{
	"instagram": "Instagram Reels: bold first frame, fast cuts, upbeat energetic voice.",
	"tiktok":    "TikTok: hook within the first second, casual conversational voice, trend-aware.",
	"youtube":   "YouTube Shorts: clear story arc, confident narrator, strong closing call to action.",
	"facebook":  "Facebook: warm community tone, explain what and when clearly.",
	"linkedin":  "LinkedIn: professional tone, emphasize value and networking.",
	"x":         "X: punchy, witty, minimal words.",
}

// buildSystemPrompt формирует системный промпт с требованиями к структуре ответа.
func buildSystemPrompt(channel, aspectRatio string, n int) string {
	var b strings.Builder
	b.WriteString("You are a creative director producing short promotional videos for live events.\n")
	fmt.Fprintf(&b, "Produce a narrative for a %s video with EXACTLY %d scenes.\n", aspectRatio, n)
	if guidance, ok := channelGuidance[strings.ToLower(channel)]; ok {
		fmt.Fprintf(&b, "Channel: %s\n", guidance)
	}
	b.WriteString("Rules:\n")
	b.WriteString("- visual_dna is a single short paragraph; every scene prompt must be consistent with it.\n")
	b.WriteString("- visual_prompt describes only what is on screen in that scene; do not repeat the visual_dna.\n")
	fmt.Fprintf(&b, "- ordinals run from 1 to %d; the first scene is the hook, the last is the call to action.\n", n)
	b.WriteString("- The script is read continuously over the whole video; keep it close to the sum of scene durations.\n")
	b.WriteString("- Respond with JSON only, matching the provided schema.\n")
	return b.String()
}

// buildUserInput описывает субъект ролика.
func buildUserInput(subject domain.Subject) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", subject.Name)
	if subject.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", subject.Description)
	}
	if subject.Venue != "" {
		fmt.Fprintf(&b, "Venue: %s\n", subject.Venue)
	}
	if subject.StartsAt != "" {
		fmt.Fprintf(&b, "Starts at: %s\n", subject.StartsAt)
	}
	if subject.SourceURL != "" {
		fmt.Fprintf(&b, "Source: %s\n", subject.SourceURL)
	}
	return b.String()
}
