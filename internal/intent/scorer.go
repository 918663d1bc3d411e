package intent

import (
	"strings"
	"unicode"
)

// BM25 parameters. k1 and b are the conventional defaults; the average
// document length is a fixed constant rather than a corpus statistic
// because intent keyword bags are small and near-uniform.
const (
	bm25K1        = 1.2
	bm25B         = 0.75
	avgKeywordLen = 10.0

	// scoreDivisor maps a raw BM25 score onto [0,1]. Empirically chosen,
	// kept for compatibility with prior behavior; tunable, not derived.
	scoreDivisor  = 5.0
	maxConfidence = 0.95

	// ConfidenceFloor is the minimum confidence a scored intent needs to
	// beat the general-inquiry fallback.
	ConfidenceFloor = 0.3

	// FallbackConfidence is the fixed confidence of the fallback match.
	FallbackConfidence = 0.5
)

// Match is the ephemeral result of scoring one utterance.
type Match struct {
	IntentID         string         `json:"intent_id"`
	Topic            string         `json:"topic"`
	Confidence       float64        `json:"confidence"`
	MatchedKeywords  []string       `json:"matched_keywords,omitempty"`
	Parameters       map[string]any `json:"parameters,omitempty"`
	SuggestedActions []string       `json:"suggested_actions,omitempty"`
}

// Tokenize lowercases, strips punctuation, and splits on whitespace.
func Tokenize(s string) []string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}

// Score ranks the utterance against every intent in the corpus and
// returns the best match with extracted parameters. It is a pure
// function of its inputs: no randomness, no I/O, and it never fails for
// well-formed input — below the confidence floor it returns the
// general-inquiry fallback.
//
// When activeTopic names a non-general topic, intents belonging to
// neither that topic nor "general" are skipped, keeping scoring
// relevant to the ongoing conversation without losing general-purpose
// intents.
func Score(utterance string, c *Corpus, activeTopic string) Match {
	if c == nil {
		return fallbackMatch(nil)
	}

	tokens := Tokenize(utterance)
	lowered := strings.ToLower(utterance)

	var (
		best        *IntentDefinition
		bestScore   float64
		bestMatched []string
	)

	for i := range c.intents {
		def := &c.intents[i]
		if activeTopic != "" && activeTopic != GeneralTopic &&
			def.Topic != activeTopic && def.Topic != GeneralTopic {
			continue
		}
		score, matched := scoreIntent(tokens, lowered, def, c)
		if best == nil && score > 0 || score > bestScore {
			best = def
			bestScore = score
			bestMatched = matched
		}
	}

	confidence := bestScore / scoreDivisor
	if confidence > maxConfidence {
		confidence = maxConfidence
	}
	if best == nil || confidence < ConfidenceFloor {
		return fallbackMatch(c)
	}

	return Match{
		IntentID:         best.ID,
		Topic:            best.Topic,
		Confidence:       confidence,
		MatchedKeywords:  bestMatched,
		Parameters:       extractParameters(utterance, best.Parameters),
		SuggestedActions: append([]string(nil), best.SuggestedActions...),
	}
}

// scoreIntent computes BM25 of the utterance tokens over the intent's
// keyword bag. Term frequency is substring-tolerant: a keyword word
// counts when it equals, contains, or is contained by the token. That
// tolerance accepts plurals and near-misses at the cost of some false
// positives — a deliberate trade-off.
func scoreIntent(tokens []string, lowered string, def *IntentDefinition, c *Corpus) (float64, []string) {
	if len(def.keywordWords) == 0 {
		// Malformed catalogue entry; scores zero rather than failing.
		return 0, nil
	}

	docLen := float64(len(def.keywordWords))
	lengthNorm := bm25K1 * (1 - bm25B + bm25B*docLen/avgKeywordLen)

	var (
		score   float64
		matched []string
		seen    = make(map[string]struct{})
	)
	for _, token := range tokens {
		tf := 0.0
		firstHit := ""
		for _, word := range def.keywordWords {
			if word == token || strings.Contains(word, token) || strings.Contains(token, word) {
				tf++
				if firstHit == "" {
					firstHit = word
				}
			}
		}
		if tf == 0 {
			continue
		}
		idf := c.idf[token]
		if idf == 0 {
			// Substring hit on a token outside the IDF table; weight it
			// by the matched keyword word instead.
			idf = c.idf[firstHit]
		}
		score += idf * (tf * (bm25K1 + 1)) / (tf + lengthNorm)
		if _, dup := seen[firstHit]; !dup {
			seen[firstHit] = struct{}{}
			matched = append(matched, firstHit)
		}
	}

	// A phrase pattern hit boosts the raw score by the intent's base
	// confidence before normalization.
	for _, re := range def.patterns {
		if re.MatchString(lowered) {
			score += def.BaseConfidence
			break
		}
	}

	return score, matched
}

func extractParameters(utterance string, specs []ParameterSpec) map[string]any {
	if len(specs) == 0 {
		return nil
	}
	params := make(map[string]any)
	for _, spec := range specs {
		if value, ok := Extract(utterance, spec); ok {
			params[spec.Name] = value
		}
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

func fallbackMatch(c *Corpus) Match {
	match := Match{
		IntentID:         FallbackIntentID,
		Topic:            GeneralTopic,
		Confidence:       FallbackConfidence,
		SuggestedActions: []string{"browse_help_topics", "contact_support"},
	}
	if c != nil {
		if def, ok := c.Intent(FallbackIntentID); ok {
			match.Topic = def.Topic
			match.SuggestedActions = append([]string(nil), def.SuggestedActions...)
		}
	}
	return match
}

// Fallback returns the canonical general-inquiry match for a corpus.
// Exposed so the orchestrator can degrade to it when scoring faults.
func Fallback(c *Corpus) Match {
	return fallbackMatch(c)
}
