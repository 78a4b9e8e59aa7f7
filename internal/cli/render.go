package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// hashtagView is the union of the fields the hashtag tools return.
type hashtagView struct {
	URL               string       `json:"url"`
	Topic             string       `json:"topic"`
	UsedKeywords      []string     `json:"used_keywords"`
	GeneratedHashtags []string     `json:"generated_hashtags"`
	Top               []string     `json:"top"`
	TrendingHashtags  []string     `json:"apify_trending_hashtags"`
	Ranking           []rankedView `json:"ranking"`
	RankingAll        []rankedView `json:"apify_trending_hashtags_all"`
	TotalUnique       *int         `json:"total_unique"`
	ApifyTotalUnique  *int         `json:"apify_total_unique"`
	Warnings          []string     `json:"warnings"`
}

type rankedView struct {
	Hashtag string `json:"hashtag"`
	Count   int    `json:"count"`
}

func (v hashtagView) ranking() []rankedView {
	if len(v.Ranking) > 0 {
		return v.Ranking
	}
	return v.RankingAll
}

func (v hashtagView) top() []string {
	if v.Top != nil {
		return v.Top
	}
	return v.TrendingHashtags
}

func (v hashtagView) totalUnique() (int, bool) {
	switch {
	case v.TotalUnique != nil:
		return *v.TotalUnique, true
	case v.ApifyTotalUnique != nil:
		return *v.ApifyTotalUnique, true
	}
	return 0, false
}

// isHashtagResult reports whether the decoded payload came from a hashtag tool.
func (v hashtagView) isHashtagResult() bool {
	_, hasTotal := v.totalUnique()
	return hasTotal || v.Top != nil || v.TrendingHashtags != nil || v.GeneratedHashtags != nil
}

// renderHashtags prints a coloured summary when text is a hashtag tool payload. It returns false
// for anything else so the caller can print the text unchanged.
func (r *Runner) renderHashtags(text string) bool {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	var v hashtagView
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil || !v.isHashtagResult() {
		return false
	}

	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	switch {
	case v.URL != "":
		fmt.Fprintf(r.out, "%s %s\n", bold("URL:"), v.URL)
	case v.Topic != "":
		fmt.Fprintf(r.out, "%s %s\n", bold("Topic:"), v.Topic)
	}
	if len(v.UsedKeywords) > 0 {
		fmt.Fprintf(r.out, "%s %s\n", bold("Keywords:"), strings.Join(v.UsedKeywords, ", "))
	}
	if len(v.GeneratedHashtags) > 0 {
		fmt.Fprintf(r.out, "%s %s\n", bold("Generated:"), cyan(strings.Join(v.GeneratedHashtags, " ")))
	}

	top := v.top()
	if len(top) == 0 {
		fmt.Fprintf(r.out, "%s %s\n", bold("Trending:"), yellow("none"))
	} else {
		fmt.Fprintf(r.out, "%s %s\n", bold("Trending:"), green(strings.Join(top, " ")))
	}

	if ranking := v.ranking(); len(ranking) > 0 {
		fmt.Fprintln(r.out, bold("Ranking:"))
		for i, rk := range ranking {
			fmt.Fprintf(r.out, "  %2d. %-32s %d\n", i+1, rk.Hashtag, rk.Count)
		}
	}
	if n, ok := v.totalUnique(); ok {
		fmt.Fprintf(r.out, "%s %d\n", bold("Unique:"), n)
	}
	for _, w := range v.Warnings {
		fmt.Fprintf(r.out, "%s %s\n", yellow("warning:"), w)
	}
	return true
}
