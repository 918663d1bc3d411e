package intent

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

const (
	// GeneralTopic is the initial topic of every session. It is always
	// present in a corpus and reachable from every other topic.
	GeneralTopic = "general"

	// FallbackIntentID is returned when no intent clears the confidence
	// floor. A corpus always carries a definition for it.
	FallbackIntentID = "general_inquiry"
)

// ParameterSpec describes one typed value an intent needs from the user.
type ParameterSpec struct {
	Name     string    `json:"name"`
	Kind     ParamKind `json:"kind"`
	Required bool      `json:"required"`
	Min      *float64  `json:"min,omitempty"`
	Max      *float64  `json:"max,omitempty"`
	// Pattern, when set, takes precedence over the kind's extraction
	// strategy; the first regex match wins.
	Pattern  string   `json:"pattern,omitempty"`
	Prompt   string   `json:"prompt,omitempty"`
	Examples []string `json:"examples,omitempty"`

	pattern *regexp.Regexp
}

// IntentDefinition is one entry of the intent catalogue. Immutable once
// the corpus is built; changes go through a full corpus reload.
type IntentDefinition struct {
	ID               string          `json:"id"`
	Topic            string          `json:"topic"`
	Keywords         []string        `json:"keywords"`
	Patterns         []string        `json:"patterns,omitempty"`
	BaseConfidence   float64         `json:"base_confidence,omitempty"`
	Parameters       []ParameterSpec `json:"parameters,omitempty"`
	Responses        []string        `json:"responses,omitempty"`
	SuggestedActions []string        `json:"suggested_actions,omitempty"`

	patterns     []*regexp.Regexp
	keywordWords []string
}

// TopicConfig is the corpus-file stanza for a topic. Membership and
// parameter data are derived from the intents, never declared here, so
// the two cannot drift apart.
type TopicConfig struct {
	ID                 string       `json:"id"`
	AllowedTransitions []string     `json:"allowed_transitions,omitempty"`
	ResponseTemplates  []string     `json:"responses,omitempty"`
	Rules              []RuleConfig `json:"rules,omitempty"`
}

// TopicDefinition groups the intents of one conversational context and
// the parameters they need. Regenerated on every corpus load.
type TopicDefinition struct {
	ID                 string
	MemberIntentIDs    []string
	RequiredParams     []string
	OptionalParams     []string
	ResponseTemplates  []string
	ParameterPrompts   map[string]string
	ParameterSpecs     map[string]ParameterSpec
	AllowedTransitions []string
	Rules              []Rule
}

// AllowsTransitionFrom reports whether this topic accepts a switch away
// from the given topic. The general topic accepts everything.
func (t *TopicDefinition) AllowsTransitionFrom(topic string) bool {
	if t.ID == GeneralTopic || topic == GeneralTopic {
		return true
	}
	for _, allowed := range t.AllowedTransitions {
		if allowed == topic {
			return true
		}
	}
	return false
}

// HasMember reports whether the intent belongs to this topic.
func (t *TopicDefinition) HasMember(intentID string) bool {
	for _, id := range t.MemberIntentIDs {
		if id == intentID {
			return true
		}
	}
	return false
}

// File is the on-disk corpus format.
type File struct {
	Intents []IntentDefinition `json:"intents"`
	Topics  []TopicConfig      `json:"topics,omitempty"`
}

// Corpus is an immutable catalogue of intents, the topics derived from
// them, and the IDF table computed over their keywords. Built once per
// load and shared without locking; reloads swap in a whole new Corpus.
type Corpus struct {
	intents []IntentDefinition
	topics  []TopicDefinition

	intentIndex map[string]*IntentDefinition
	topicIndex  map[string]*TopicDefinition
	idf         map[string]float64
}

// Build validates the intent catalogue, derives the topic definitions,
// and computes the IDF table. The returned corpus is immutable.
func Build(intents []IntentDefinition, topicConfigs []TopicConfig) (*Corpus, error) {
	if len(intents) == 0 {
		return nil, errors.New("intent: corpus must define at least one intent")
	}

	prepared := make([]IntentDefinition, len(intents))
	copy(prepared, intents)

	seen := make(map[string]struct{}, len(prepared))
	for i := range prepared {
		def := &prepared[i]
		if strings.TrimSpace(def.ID) == "" {
			return nil, fmt.Errorf("intent: intent %d has an empty id", i)
		}
		if _, dup := seen[def.ID]; dup {
			return nil, fmt.Errorf("intent: duplicate intent id %q", def.ID)
		}
		seen[def.ID] = struct{}{}
		if def.Topic == "" {
			def.Topic = GeneralTopic
		}
		def.keywordWords = keywordBag(def.Keywords)
		for _, raw := range def.Patterns {
			re, err := regexp.Compile("(?i)" + raw)
			if err != nil {
				return nil, fmt.Errorf("intent: intent %q pattern %q: %w", def.ID, raw, err)
			}
			def.patterns = append(def.patterns, re)
		}
		for j := range def.Parameters {
			spec := &def.Parameters[j]
			if strings.TrimSpace(spec.Name) == "" {
				return nil, fmt.Errorf("intent: intent %q parameter %d has an empty name", def.ID, j)
			}
			if spec.Pattern != "" {
				re, err := regexp.Compile(spec.Pattern)
				if err != nil {
					return nil, fmt.Errorf("intent: intent %q parameter %q pattern: %w", def.ID, spec.Name, err)
				}
				spec.pattern = re
			}
		}
	}

	if _, ok := seen[FallbackIntentID]; !ok {
		fallback := fallbackDefinition()
		fallback.keywordWords = keywordBag(fallback.Keywords)
		prepared = append(prepared, fallback)
	}

	topics, err := deriveTopics(prepared, topicConfigs)
	if err != nil {
		return nil, err
	}

	c := &Corpus{
		intents:     prepared,
		topics:      topics,
		intentIndex: make(map[string]*IntentDefinition, len(prepared)),
		topicIndex:  make(map[string]*TopicDefinition, len(topics)),
		idf:         computeIDF(prepared),
	}
	for i := range c.intents {
		c.intentIndex[c.intents[i].ID] = &c.intents[i]
	}
	for i := range c.topics {
		c.topicIndex[c.topics[i].ID] = &c.topics[i]
	}
	return c, nil
}

// Intents returns the catalogue in corpus order.
func (c *Corpus) Intents() []IntentDefinition { return c.intents }

// Topics returns the derived topic definitions in corpus order.
func (c *Corpus) Topics() []TopicDefinition { return c.topics }

// Intent looks up a definition by id.
func (c *Corpus) Intent(id string) (*IntentDefinition, bool) {
	def, ok := c.intentIndex[id]
	return def, ok
}

// Topic looks up a derived topic by id.
func (c *Corpus) Topic(id string) (*TopicDefinition, bool) {
	def, ok := c.topicIndex[id]
	return def, ok
}

// IDF returns the inverse document frequency of a token, or zero when
// the token appears in no intent's keywords.
func (c *Corpus) IDF(token string) float64 { return c.idf[token] }

// deriveTopics regenerates topic definitions from the intent catalogue.
// Topic order follows the config stanzas, then first appearance in the
// intents; "general" is always present.
func deriveTopics(intents []IntentDefinition, configs []TopicConfig) ([]TopicDefinition, error) {
	order := make([]string, 0, len(configs)+1)
	byID := make(map[string]*TopicDefinition)

	add := func(id string) *TopicDefinition {
		if def, ok := byID[id]; ok {
			return def
		}
		def := &TopicDefinition{
			ID:               id,
			ParameterPrompts: map[string]string{},
			ParameterSpecs:   map[string]ParameterSpec{},
		}
		byID[id] = def
		order = append(order, id)
		return def
	}

	for _, cfg := range configs {
		if strings.TrimSpace(cfg.ID) == "" {
			return nil, errors.New("intent: topic config has an empty id")
		}
		if _, dup := byID[cfg.ID]; dup {
			return nil, fmt.Errorf("intent: duplicate topic id %q", cfg.ID)
		}
		def := add(cfg.ID)
		def.AllowedTransitions = append([]string(nil), cfg.AllowedTransitions...)
		def.ResponseTemplates = append([]string(nil), cfg.ResponseTemplates...)
		for _, rc := range cfg.Rules {
			rule, err := ParseRule(rc)
			if err != nil {
				return nil, fmt.Errorf("intent: topic %q: %w", cfg.ID, err)
			}
			def.Rules = append(def.Rules, rule)
		}
	}

	for i := range intents {
		def := &intents[i]
		topic := add(def.Topic)
		topic.MemberIntentIDs = append(topic.MemberIntentIDs, def.ID)
		topic.ResponseTemplates = append(topic.ResponseTemplates, def.Responses...)
		for _, spec := range def.Parameters {
			if _, known := topic.ParameterPrompts[spec.Name]; !known && spec.Prompt != "" {
				topic.ParameterPrompts[spec.Name] = spec.Prompt
			}
			// First declaration wins when two intents share a name.
			if _, known := topic.ParameterSpecs[spec.Name]; !known {
				topic.ParameterSpecs[spec.Name] = spec
			}
			if spec.Required {
				if !containsString(topic.RequiredParams, spec.Name) {
					topic.RequiredParams = append(topic.RequiredParams, spec.Name)
				}
			} else if !containsString(topic.OptionalParams, spec.Name) {
				topic.OptionalParams = append(topic.OptionalParams, spec.Name)
			}
		}
	}

	add(GeneralTopic)

	out := make([]TopicDefinition, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// computeIDF derives the rarity weight of every keyword token across
// the catalogue. Recomputed on every build so a stale table is never
// served alongside a changed intent set.
func computeIDF(intents []IntentDefinition) map[string]float64 {
	docCount := float64(len(intents))
	df := make(map[string]int)
	for i := range intents {
		unique := make(map[string]struct{})
		for _, word := range intents[i].keywordWords {
			unique[word] = struct{}{}
		}
		for word := range unique {
			df[word]++
		}
	}

	idf := make(map[string]float64, len(df))
	for word, n := range df {
		idf[word] = math.Log(1 + (docCount-float64(n)+0.5)/(float64(n)+0.5))
	}
	return idf
}

// keywordBag flattens keyword phrases into lowercase words.
func keywordBag(keywords []string) []string {
	var words []string
	for _, kw := range keywords {
		for _, word := range Tokenize(kw) {
			words = append(words, word)
		}
	}
	return words
}

func fallbackDefinition() IntentDefinition {
	return IntentDefinition{
		ID:               FallbackIntentID,
		Topic:            GeneralTopic,
		Keywords:         []string{"hello", "hi", "question", "info", "information", "help"},
		Responses:        []string{"How can I help you today?"},
		SuggestedActions: []string{"browse_help_topics", "contact_support"},
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
