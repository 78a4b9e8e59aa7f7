package extract

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// WebSearch reads search-engine result pages: organic results, related queries and AI overviews.
	WebSearch Profile = webSearchProfile{}
	// Microblog reads short posts: post text and entity-tagged hashtags.
	Microblog Profile = microblogProfile{}
	// PhotoNetwork reads photo posts: captions and explicit related-hashtag lists.
	PhotoNetwork Profile = photoNetworkProfile{}
)

var (
	organicFields   = []string{"title", "snippet", "description", "plainText", "text"}
	relatedFields   = []string{"text", "query", "title"}
	overviewFields  = []string{"aiOverview", "aiModeResults", "aiOverviews"}
	postTextFields  = []string{"text", "full_text", "fullText"}
	photoListFields = []string{"hashtags", "relatedHashtags"}
)

var wholeTokenPattern = regexp.MustCompile(`^#[\p{L}\p{M}\p{N}_]+$`)

type webSearchProfile struct{}

func (webSearchProfile) Name() string { return "web" }

func (webSearchProfile) Tokens(result Result) []string {
	var tokens []string

	for _, raw := range listField(result, "organicResults") {
		organic, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		for _, field := range organicFields {
			if s, ok := stringField(organic, field); ok {
				tokens = append(tokens, Tokens(s)...)
			}
		}
	}

	for _, raw := range listField(result, "relatedQueries") {
		tokens = append(tokens, Tokens(relatedQueryText(raw))...)
	}

	for _, field := range overviewFields {
		switch v := result[field].(type) {
		case string:
			tokens = append(tokens, Tokens(v)...)
		case []any:
			for _, sub := range v {
				if s, ok := sub.(string); ok {
					tokens = append(tokens, Tokens(s)...)
				}
			}
		case []string:
			for _, s := range v {
				tokens = append(tokens, Tokens(s)...)
			}
		}
	}

	return tokens
}

func relatedQueryText(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case map[string]any:
		for _, field := range relatedFields {
			if s, ok := stringField(v, field); ok && s != "" {
				return s
			}
		}
		return ""
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

type microblogProfile struct{}

func (microblogProfile) Name() string { return "microblog" }

// Tokens reads the post text and then the entity hashtags; an entity tag already
// present in the text of the same post is not counted twice.
func (microblogProfile) Tokens(result Result) []string {
	var tokens []string
	for _, field := range postTextFields {
		if s, ok := stringField(result, field); ok && strings.TrimSpace(s) != "" {
			tokens = Tokens(s)
			break
		}
	}

	var tagged []string
	for _, raw := range listField(mapField(result, "entities"), "hashtags") {
		switch v := raw.(type) {
		case string:
			tagged = append(tagged, v)
		case map[string]any:
			if s, ok := stringField(v, "text"); ok {
				tagged = append(tagged, s)
			} else if s, ok := stringField(v, "tag"); ok {
				tagged = append(tagged, s)
			}
		}
	}

	return appendTagged(tokens, tagged)
}

type photoNetworkProfile struct{}

func (photoNetworkProfile) Name() string { return "photo" }

// Tokens reads the caption and then the explicit hashtag lists; a listed tag already
// present in the caption of the same post is not counted twice.
func (photoNetworkProfile) Tokens(result Result) []string {
	var tokens []string
	if s, ok := stringField(result, "caption"); ok {
		tokens = Tokens(s)
	}

	var tagged []string
	for _, field := range photoListFields {
		for _, raw := range listField(result, field) {
			switch v := raw.(type) {
			case string:
				tagged = append(tagged, v)
			case map[string]any:
				if s, ok := stringField(v, "name"); ok {
					tagged = append(tagged, s)
				}
			}
		}
	}

	return appendTagged(tokens, tagged)
}

// appendTagged adds explicitly tagged names to tokens, normalised to a single leading '#'.
func appendTagged(tokens []string, tagged []string) []string {
	inText := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		inText[t] = struct{}{}
	}

	for _, name := range tagged {
		tag := TagFromName(name)
		if tag == "" {
			continue
		}
		if _, ok := inText[tag]; ok {
			continue
		}
		inText[tag] = struct{}{}
		tokens = append(tokens, tag)
	}
	return tokens
}

// TagFromName turns a bare or prefixed hashtag name into a token with exactly one leading '#'.
// Names that do not form a valid token, such as those containing spaces, yield "".
func TagFromName(name string) string {
	tag := "#" + strings.ReplaceAll(strings.TrimSpace(name), "#", "")
	if !wholeTokenPattern.MatchString(tag) {
		return ""
	}
	return tag
}
