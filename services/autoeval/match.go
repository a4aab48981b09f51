package autoeval

import (
	"zzuli-evaluation/lib/platforms/zzuli/jwgl"
	"zzuli-evaluation/lib/textutil"
)

// MatchThreshold is the similarity a course must reach to be picked by name.
const MatchThreshold = 0.75

// Pick returns the course whose name (or "name teacher") is closest to query.
func Pick(courses []jwgl.Course, query string) (jwgl.Course, bool) {
	candidates := make([]string, 0, len(courses)*2)
	for _, c := range courses {
		candidates = append(candidates, c.CourseName, c.CourseName+c.TeacherName)
	}
	idx, _ := textutil.BestMatch(query, candidates, MatchThreshold)
	if idx < 0 {
		return jwgl.Course{}, false
	}
	return courses[idx/2], true
}

// Exclude drops the courses whose name contains any of the keywords.
func Exclude(courses []jwgl.Course, keywords []string) (kept, excluded []jwgl.Course) {
	kept = []jwgl.Course{}
	keywords = nonEmpty(keywords)
	if len(keywords) == 0 {
		return append(kept, courses...), nil
	}
	for _, c := range courses {
		if textutil.MatchName(c.CourseName, keywords) {
			excluded = append(excluded, c)
			continue
		}
		kept = append(kept, c)
	}
	return kept, excluded
}

func nonEmpty(keywords []string) []string {
	out := []string{}
	for _, k := range keywords {
		if textutil.NormalizeName(k) != "" {
			out = append(out, k)
		}
	}
	return out
}
