package aggregate

import (
	"cmp"
	"slices"

	"golang.org/x/text/cases"
)

// Ranked is a hashtag with its accumulated weight.
type Ranked struct {
	Hashtag string `json:"hashtag"`
	Weight  int    `json:"count"`
}

// tally accumulates weights per token and remembers first-insertion order.
type tally struct {
	weights map[string]int
	display map[string]string
	order   []string
	fold    cases.Caser
	folding bool
}

func newTally(caseFold bool) *tally {
	t := &tally{
		weights: make(map[string]int),
		display: make(map[string]string),
		folding: caseFold,
	}
	if caseFold {
		t.fold = cases.Fold()
	}
	return t
}

func (t *tally) key(token string) string {
	if !t.folding {
		return token
	}
	return t.fold.String(token)
}

func (t *tally) add(token string, weight int) {
	k := t.key(token)
	if _, ok := t.weights[k]; !ok {
		t.order = append(t.order, k)
		t.display[k] = token
	}
	t.weights[k] += weight
}

func (t *tally) len() int {
	return len(t.order)
}

// ranking sorts by descending weight; ties keep insertion order.
func (t *tally) ranking() []Ranked {
	out := make([]Ranked, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, Ranked{Hashtag: t.display[k], Weight: t.weights[k]})
	}
	slices.SortStableFunc(out, func(a, b Ranked) int {
		return cmp.Compare(b.Weight, a.Weight)
	})
	return out
}
