package debate

import (
	"slices"
	"strings"
	"unicode"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
)

// DefaultSimilarity is the keyword Jaccard index at which two statements are
// considered the same theme.
const DefaultSimilarity = 0.5

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"but": true, "by": true, "for": true, "from": true, "has": true, "have": true, "in": true,
	"into": true, "is": true, "it": true, "its": true, "of": true, "on": true, "or": true,
	"should": true, "that": true, "the": true, "their": true, "there": true, "this": true,
	"to": true, "was": true, "we": true, "were": true, "will": true, "with": true, "would": true,
	"can": true, "could": true, "may": true, "might": true, "must": true, "not": true,
	"more": true, "most": true, "very": true, "than": true, "then": true, "also": true,
	"our": true, "all": true, "any": true, "some": true, "such": true, "these": true, "those": true,
}

// keywords normalises s into a set of content words: lowercased, punctuation
// stripped, stopwords dropped, trailing plural s removed.
func keywords(s string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		if len(f) > 4 && strings.HasSuffix(f, "s") && !strings.HasSuffix(f, "ss") {
			f = f[:len(f)-1]
		}
		set[f] = true
	}
	return set
}

// jaccard is |a∩b| / |a∪b|. Two empty sets score 0.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// statement is one claim made by one participant.
type statement struct {
	text string
	role models.AuditorRole
	risk bool
}

// cluster is a group of similar statements. The first statement names it.
type cluster struct {
	theme    string
	keywords map[string]bool
	roles    map[models.AuditorRole]bool
	risk     bool
	rounds   map[int]bool
}

// clusterStatements groups statements greedily in input order. Each statement
// joins the first cluster whose theme is similar enough, or starts a new one.
func clusterStatements(stmts []statement, threshold float64) []*cluster {
	var clusters []*cluster
	for _, st := range stmts {
		text := strings.TrimSpace(st.text)
		if text == "" {
			continue
		}
		kw := keywords(text)
		var match *cluster
		for _, c := range clusters {
			if jaccard(kw, c.keywords) >= threshold || strings.EqualFold(text, c.theme) {
				match = c
				break
			}
		}
		if match == nil {
			match = &cluster{
				theme:    text,
				keywords: kw,
				roles:    map[models.AuditorRole]bool{},
				rounds:   map[int]bool{},
			}
			clusters = append(clusters, match)
		}
		match.roles[st.role] = true
		match.risk = match.risk || st.risk
	}
	return clusters
}

func themes(clusters []*cluster, keep func(*cluster) bool) []string {
	out := []string{}
	for _, c := range clusters {
		if keep(c) {
			out = append(out, c.theme)
		}
	}
	return out
}

// initialRoundThemes extracts consensus and disagreements from opening reviews.
// Points raised by two or more participants are consensus; risks raised by
// only one participant are disagreements.
func initialRoundThemes(reviews []models.InitialReview, threshold float64) (consensus, disagreements []string) {
	var stmts []statement
	for _, r := range reviews {
		for _, p := range r.KeyPoints {
			stmts = append(stmts, statement{text: p, role: r.Role})
		}
		for _, p := range r.Recommendations {
			stmts = append(stmts, statement{text: p, role: r.Role})
		}
		for _, p := range r.TopRisks {
			stmts = append(stmts, statement{text: p, role: r.Role, risk: true})
		}
	}
	clusters := clusterStatements(stmts, threshold)
	consensus = themes(clusters, func(c *cluster) bool { return len(c.roles) >= 2 })
	disagreements = themes(clusters, func(c *cluster) bool { return len(c.roles) == 1 && c.risk })
	return consensus, disagreements
}

// peerRoundThemes extracts consensus, disagreements and questions from one
// round of peer responses.
func peerRoundThemes(responses []models.PeerResponse, threshold float64) (consensus, disagreements, questions []string) {
	var agreements, counterpoints []statement
	for _, r := range responses {
		for _, a := range r.Agreements {
			agreements = append(agreements, statement{text: a, role: r.Role})
		}
		for _, c := range r.Counterpoints {
			counterpoints = append(counterpoints, statement{text: c, role: r.Role, risk: true})
		}
	}
	consensus = themes(clusterStatements(agreements, threshold), func(c *cluster) bool { return len(c.roles) >= 2 })
	disagreements = themes(clusterStatements(counterpoints, threshold), func(*cluster) bool { return true })

	questions = []string{}
	seen := map[string]bool{}
	for _, r := range responses {
		for _, q := range r.Questions {
			key := strings.ToLower(strings.TrimSpace(q))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			questions = append(questions, strings.TrimSpace(q))
		}
	}
	return consensus, disagreements, questions
}

// finalThemes computes the session outcome. Consensus themes that recur in at
// least two rounds are final; with a single round, that round's consensus is.
// Unresolved issues are the last round's disagreements that no final theme covers.
func finalThemes(rounds []models.DebateRound, threshold float64) (final, unresolved []string) {
	final, unresolved = []string{}, []string{}
	if len(rounds) == 0 {
		return final, unresolved
	}

	// The recurrence rule needs at least two rounds. A debate that converged
	// in its opening round keeps that round's consensus instead, otherwise an
	// early stop would always end with an empty final consensus.
	if len(rounds) == 1 {
		final = append(final, rounds[0].ConsensusThemes...)
	} else {
		var clusters []*cluster
		for _, r := range rounds {
			for _, theme := range r.ConsensusThemes {
				kw := keywords(theme)
				var match *cluster
				for _, c := range clusters {
					if jaccard(kw, c.keywords) >= threshold || strings.EqualFold(theme, c.theme) {
						match = c
						break
					}
				}
				if match == nil {
					match = &cluster{theme: theme, keywords: kw, rounds: map[int]bool{}}
					clusters = append(clusters, match)
				}
				match.rounds[r.Number] = true
			}
		}
		final = themes(clusters, func(c *cluster) bool { return len(c.rounds) >= 2 })
	}

	finalKW := make([]map[string]bool, len(final))
	for i, f := range final {
		finalKW[i] = keywords(f)
	}
	last := rounds[len(rounds)-1]
	for _, d := range last.Disagreements {
		kw := keywords(d)
		covered := slices.ContainsFunc(finalKW, func(f map[string]bool) bool { return jaccard(kw, f) >= threshold })
		if !covered {
			unresolved = append(unresolved, d)
		}
	}
	return final, unresolved
}

// consensusScore is |final| / (|final| + |unresolved|), or 0 when both are empty.
func consensusScore(final, unresolved []string) float64 {
	total := len(final) + len(unresolved)
	if total == 0 {
		return 0
	}
	return float64(len(final)) / float64(total)
}
