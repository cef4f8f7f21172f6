package filter

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pario-ai/tickerpulse/pkg/models"
)

// DefaultMinCommentLength is the shortest comment worth sending to a model.
const DefaultMinCommentLength = 40

var memePhrases = compileAll(
	`\b(to the moon|moon|rocket|wen lambo|lambo)\b`,
	`\b(yolo|fomo|hodl|diamond hands?|paper hands?)\b`,
	`\b(tendies|stonks?|apes? together strong|this is the way)\b`,
	`\b(buy the dip|dip|rip|btfd)\b`,
	`\b(pump it|dump it|shill|bag holder)\b`,
	`\b(wsb|retard|regard|autis[tm])\b`,
	`\b(brrr|printer go brrr)\b`,
	`^\s*f+\s*$`,
	`^\s*nice\s*$`,
	`^\s*this\s*$`,
)

var lowEffort = compileAll(
	`^[\x{1F680}\x{1F48E}\x{1F64C}\x{1F4C8}\x{1F4C9}\x{1F4B0}\x{1F911}\x{1F602}\x{1F62D}\x{1F44D}\x{1F44E}]+$`,
	`^\s*lol\s*$`,
	`^\s*lmao\s*$`,
	`^\s*omg\s*$`,
	`^\s*wow\s*$`,
	`^\s*same\s*$`,
	`^\s*agreed?\s*$`,
	`^\s*\+1\s*$`,
)

// valueIndicators mark substance; any match keeps the comment regardless of memes.
var valueIndicators = compileAll(
	`\b(earnings?|revenue|profit|loss|eps|p/e|valuation)\b`,
	`\b(analyst|target|price target|upgrade|downgrade)\b`,
	`\b(fundamental|technical|chart|support|resistance)\b`,
	`\b(news|announced|report|filing|sec|10-k|10-q)\b`,
	`\b(management|ceo|cfo|guidance|outlook)\b`,
	`\b(competitor|competition|market share|growth)\b`,
	`\b(quarter|q[1-4]|fy20\d\d|annual)\b`,
	`\b(debt|cash flow|balance sheet|assets)\b`,
	`\b(dividend|yield|payout)\b`,
	`\$\d+`,
	`\d+%`,
	`\b(bought|sold|position|shares?|entry|exit)\b`,
)

var skipFlairs = []string{"gain", "loss", "gain/loss", "gains", "losses", "yolo", "meme"}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// IsQualityComment reports whether text is worth a language-model call.
func IsQualityComment(text string, minLength int) bool {
	if minLength <= 0 {
		minLength = DefaultMinCommentLength
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minLength {
		return false
	}

	lower := strings.ToLower(text)
	if anyMatch(lowEffort, lower) {
		return false
	}
	if anyMatch(valueIndicators, lower) {
		return true
	}

	memes := 0
	for _, re := range memePhrases {
		if re.MatchString(lower) {
			memes++
		}
	}
	if words := len(strings.Fields(lower)); words > 0 && float64(memes)/float64(words) > 0.3 {
		return false
	}

	emoji, chars := 0, 0
	for _, r := range text {
		chars++
		if r > 127000 {
			emoji++
		}
	}
	if chars > 0 && float64(emoji)/float64(chars) > 0.2 {
		return false
	}
	return true
}

// SkipFlair reports whether a post flair marks gain/loss or meme content.
func SkipFlair(flair string) bool {
	if flair == "" {
		return false
	}
	lower := strings.ToLower(flair)
	for _, f := range skipFlairs {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// Stats summarises one FilterComments pass.
type Stats struct {
	Total      int     `json:"total"`
	Kept       int     `json:"kept"`
	Filtered   int     `json:"filtered"`
	FilterRate float64 `json:"filter_rate"`
}

// FilterComments keeps the comments that pass IsQualityComment.
func FilterComments(comments []models.Comment, minLength int) ([]models.Comment, Stats) {
	kept := make([]models.Comment, 0, len(comments))
	for _, c := range comments {
		if IsQualityComment(c.Body, minLength) {
			kept = append(kept, c)
		}
	}
	st := Stats{Total: len(comments), Kept: len(kept), Filtered: len(comments) - len(kept)}
	if st.Total > 0 {
		st.FilterRate = float64(st.Filtered) / float64(st.Total)
	}
	return kept, st
}
