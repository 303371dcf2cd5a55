package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sujalbistaa/retroboard/internal/models"
)

const promptTemplate = `You are a retrospective facilitator analyzing team feedback. Be honest and realistic.
%s
Items with more likes show stronger team agreement. Weight them more heavily.

%s
Based on all of the above, produce:
1. "summary": a concise markdown summary covering the overall mood, the key themes of what went well,
   the key areas to improve, and 2-3 suggested action items.
2. "imagePrompt": a prompt for an image generator showing 4-6 simple stick figure team members whose
   poses, expressions and props reflect the true team mood. Show stress or fatigue if there are serious
   issues and a mix of moods if feedback is mixed. Clean minimalist digital illustration on a colored
   background. Do not make it more cheerful than the feedback.
3. "sentiment": {"overall": one of "positive", "negative", "mixed", "neutral",
   "positiveRatio": number from 0.0 to 1.0, "keyEmotions": 2-3 short strings}.

Respond with ONLY a JSON object with the keys "summary", "imagePrompt" and "sentiment". No other text.`

var sectionTitles = map[models.Category]string{
	models.CategoryGood:     "Went well",
	models.CategoryImprove:  "To improve",
	models.CategoryFeedback: "Feedback",
}

// BuildPrompt groups items by category, listing like counts so the model
// can weight agreement. topic is an optional paragraph about the retro.
func BuildPrompt(items []models.Item, topic string) string {
	grouped := make(map[models.Category][]models.Item, len(models.Categories))
	for _, it := range items {
		grouped[it.Category] = append(grouped[it.Category], it)
	}

	var b strings.Builder
	for _, cat := range models.Categories {
		group := grouped[cat]
		fmt.Fprintf(&b, "**%s (%d items):**\n", sectionTitles[cat], len(group))
		if len(group) == 0 {
			b.WriteString("- none\n\n")
			continue
		}
		for _, it := range group {
			line := strings.ReplaceAll(it.Text, "\n", " ")
			if it.LikeCount > 0 {
				fmt.Fprintf(&b, "- %s [%d likes]\n", line, it.LikeCount)
			} else {
				fmt.Fprintf(&b, "- %s\n", line)
			}
		}
		b.WriteString("\n")
	}

	if topic = strings.TrimSpace(topic); topic != "" {
		topic = "Context about this retrospective: " + topic + "\n"
	}
	return fmt.Sprintf(promptTemplate, topic, b.String())
}

// ParseAnalysis extracts the JSON object from a model reply, tolerating
// code fences and surrounding prose.
func ParseAnalysis(raw string) (Analysis, error) {
	jsonStr, err := extractJSON(raw)
	if err != nil {
		return Analysis{}, err
	}

	var a Analysis
	if err := json.Unmarshal([]byte(jsonStr), &a); err != nil {
		return Analysis{}, fmt.Errorf("parse analysis: %w", err)
	}
	if strings.TrimSpace(a.Summary) == "" {
		return Analysis{}, fmt.Errorf("parse analysis: empty summary")
	}
	a.Sentiment = a.Sentiment.Normalize()
	a.ImagePrompt = strings.TrimSpace(a.ImagePrompt)
	return a, nil
}

// extractJSON finds the outermost JSON object in a string.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return s[start : end+1], nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
