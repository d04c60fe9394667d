// Package scoring computes exam scores from submitted answers. It is pure:
// callers are responsible for persisting the result.
package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/vigilo/vigilo-backend/internal/model"
)

// Score grades an answer map against an exam's question set and returns the
// percentage of marks earned, rounded to the nearest integer.
//
// Single-answer questions compare by trimmed string equality. Multi-select
// questions (more than one correct answer) compare by set equality after
// trimming each element; partial matches earn nothing. Comparison is
// case-sensitive throughout. Case-folding here would silently re-grade
// historical submissions, so it stays out.
//
// Returns 0 when the obtainable total is 0.
func Score(answers model.AnswerMap, questions []model.Question) int {
	obtainable := 0
	earned := 0

	for _, q := range questions {
		obtainable += q.Marks

		submitted, ok := answers[q.ID.String()]
		if !ok || len(submitted) == 0 {
			continue
		}

		if correct(submitted, q.CorrectAnswers) {
			earned += q.Marks
		}
	}

	if obtainable == 0 {
		return 0
	}
	return int(math.Round(100 * float64(earned) / float64(obtainable)))
}

// TotalMarks sums the obtainable marks of a question set.
func TotalMarks(questions []model.Question) int {
	total := 0
	for _, q := range questions {
		total += q.Marks
	}
	return total
}

func correct(submitted model.AnswerValue, correctSet []string) bool {
	if len(correctSet) > 1 {
		return setsEqual(submitted, correctSet)
	}
	if len(correctSet) == 0 {
		return false
	}
	// Single-answer: a multi-valued submission cannot match.
	if len(submitted) != 1 {
		return false
	}
	return strings.TrimSpace(submitted[0]) == strings.TrimSpace(correctSet[0])
}

// setsEqual sorts trimmed copies of both sides and compares element-wise,
// so submission order never matters.
func setsEqual(a []string, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	as := normalize(a)
	bs := normalize(b)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func normalize(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	sort.Strings(out)
	return out
}
