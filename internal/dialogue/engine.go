package dialogue

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wavely/converse/internal/intent"
	"github.com/wavely/converse/pkg/logging"
)

// NextAction tells the caller what kind of turn this was.
type NextAction string

const (
	// ActionCollectParameter means a required parameter is still missing
	// and the response asks for it.
	ActionCollectParameter NextAction = "parameter_collection"

	// ActionProvideService means the topic has everything it needs and
	// the response answers the request.
	ActionProvideService NextAction = "provide_service"
)

// Result is the outcome of advancing a session by one turn.
type Result struct {
	Response          string
	NextAction        NextAction
	Topic             string
	SwitchedTopic     bool
	MissingParameters []string
	PromptedParameter string

	// NeedsAnswer is set when no template produced a response; the
	// orchestrator may consult a downstream generator before falling
	// back to a canned line.
	NeedsAnswer bool
}

// Engine applies one scored turn to a session's dialogue state: topic
// switching, parameter merging, topic rules, and response selection.
// Stateless; all per-session data lives in SessionState.
type Engine struct {
	logger *logging.Logger
}

func NewEngine(logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{logger: logger}
}

// Advance mutates state with the consequences of one turn and returns
// its result. Given the same pre-turn state, utterance, match, corpus,
// and clock, it produces the same post-turn state and result.
func (e *Engine) Advance(state *SessionState, utterance string, match intent.Match, c *intent.Corpus, now time.Time) Result {
	entryTopic := state.CurrentTopic

	if target, switched := decideTopic(state.CurrentTopic, match, c); switched {
		e.switchTopic(state, target, match.IntentID, now)
	}

	mergeParameters(state, match.Parameters, now)
	topic := currentTopic(state, c)
	// A mid-collection reply like "3pm" rarely matches an intent, so the
	// scorer extracts nothing for it. Pull the landed topic's outstanding
	// parameters straight from the utterance.
	mergeParameters(state, harvestOutstanding(utterance, topic, state.Memory.CollectedParameters), now)

	state.Memory.ConversationPath = append(state.Memory.ConversationPath, match.IntentID)
	state.Memory.LastIntent = match.IntentID
	state.LastActivity = now

	result, fired := e.applyRules(state, match, c, topic, now)
	if !fired {
		// Rules may have moved the session; gate on the topic it landed in.
		topic = currentTopic(state, c)
		result = e.respond(state, match, c, topic)
	}
	result.SwitchedTopic = state.CurrentTopic != entryTopic
	return result
}

// decideTopic picks where the turn lands. The session stays put when
// the matched intent belongs to the current topic; otherwise the first
// topic in corpus order that owns the intent and accepts a switch from
// the current topic wins. No eligible topic means no switch. The
// fallback intent is topic-neutral: it never pulls a session out of
// its topic, so a low-content reply cannot derail parameter
// collection.
func decideTopic(current string, match intent.Match, c *intent.Corpus) (string, bool) {
	if c == nil || match.Topic == current || match.IntentID == intent.FallbackIntentID {
		return current, false
	}
	if cur, ok := c.Topic(current); ok && cur.HasMember(match.IntentID) {
		return current, false
	}
	for _, topic := range c.Topics() {
		if topic.ID == current {
			continue
		}
		if topic.HasMember(match.IntentID) && topic.AllowsTransitionFrom(current) {
			return topic.ID, true
		}
	}
	return current, false
}

func (e *Engine) switchTopic(state *SessionState, target, trigger string, now time.Time) {
	e.logger.Debug("topic switch",
		"session_id", state.SessionID,
		"from", state.CurrentTopic,
		"to", target,
		"trigger", trigger,
	)
	state.PreviousTopic = state.CurrentTopic
	state.CurrentTopic = target
	state.TopicHistory = append(state.TopicHistory, TopicEvent{
		Topic:     target,
		Timestamp: now,
		Trigger:   trigger,
	})
	state.Memory.TopicSwitchCount++
}

// mergeParameters folds this turn's extractions into memory,
// last-write-wins per name. Nothing is ever removed, so a topic's
// missing-parameter set only shrinks while the session stays on it.
func mergeParameters(state *SessionState, params map[string]any, now time.Time) {
	if len(params) == 0 {
		return
	}
	if state.Memory.CollectedParameters == nil {
		state.Memory.CollectedParameters = make(map[string]any, len(params))
	}
	// Specs are extracted in declaration order; replay that order so
	// the history is deterministic.
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		state.Memory.CollectedParameters[name] = params[name]
		state.Memory.ParameterHistory = append(state.Memory.ParameterHistory, ParameterEvent{
			Name:      name,
			Value:     params[name],
			Timestamp: now,
		})
	}
}

// harvestOutstanding extracts the topic's not-yet-collected parameters
// from the raw utterance, required before optional, declaration order
// within each.
func harvestOutstanding(utterance string, topic *intent.TopicDefinition, collected map[string]any) map[string]any {
	if topic == nil || utterance == "" {
		return nil
	}
	var out map[string]any
	for _, name := range append(append([]string(nil), topic.RequiredParams...), topic.OptionalParams...) {
		if _, ok := collected[name]; ok {
			continue
		}
		spec, ok := topic.ParameterSpecs[name]
		if !ok {
			continue
		}
		if value, found := intent.Extract(utterance, spec); found {
			if out == nil {
				out = make(map[string]any)
			}
			out[name] = value
		}
	}
	return out
}

// applyRules evaluates the landed topic's rules in declaration order;
// the first holding condition fires and evaluation stops.
func (e *Engine) applyRules(state *SessionState, match intent.Match, c *intent.Corpus, topic *intent.TopicDefinition, now time.Time) (Result, bool) {
	if topic == nil {
		return Result{}, false
	}
	for _, rule := range topic.Rules {
		if !rule.When.Holds(match.IntentID, match.Confidence, state.Memory.CollectedParameters) {
			continue
		}
		switch rule.Then.Kind {
		case intent.ActSwitchTopic:
			if rule.Then.Topic != state.CurrentTopic {
				if _, known := c.Topic(rule.Then.Topic); known {
					e.switchTopic(state, rule.Then.Topic, "rule:"+match.IntentID, now)
				}
			}
			return Result{}, false
		case intent.ActRequestParameter:
			name := rule.Then.Parameter
			return Result{
				Response:          promptFor(topic, name),
				NextAction:        ActionCollectParameter,
				Topic:             state.CurrentTopic,
				MissingParameters: []string{name},
				PromptedParameter: name,
			}, true
		case intent.ActEmit:
			return Result{
				Response:   interpolate(rule.Then.Response, state.Memory.CollectedParameters),
				NextAction: ActionProvideService,
				Topic:      state.CurrentTopic,
			}, true
		}
		return Result{}, false
	}
	return Result{}, false
}

// respond gates on required parameters, then renders a template.
func (e *Engine) respond(state *SessionState, match intent.Match, c *intent.Corpus, topic *intent.TopicDefinition) Result {
	missing := missingParameters(topic, state.Memory.CollectedParameters)
	if len(missing) > 0 {
		return Result{
			Response:          promptFor(topic, missing[0]),
			NextAction:        ActionCollectParameter,
			Topic:             state.CurrentTopic,
			MissingParameters: missing,
			PromptedParameter: missing[0],
		}
	}

	result := Result{
		NextAction: ActionProvideService,
		Topic:      state.CurrentTopic,
	}
	if template := pickTemplate(match, c, topic); template != "" {
		result.Response = interpolate(template, state.Memory.CollectedParameters)
	} else {
		result.NeedsAnswer = true
	}
	return result
}

// missingParameters lists the topic's required parameters not yet in
// memory, in declaration order.
func missingParameters(topic *intent.TopicDefinition, collected map[string]any) []string {
	if topic == nil {
		return nil
	}
	var missing []string
	for _, name := range topic.RequiredParams {
		if _, ok := collected[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// pickTemplate prefers the matched intent's first response, then the
// topic's first template.
func pickTemplate(match intent.Match, c *intent.Corpus, topic *intent.TopicDefinition) string {
	if c != nil {
		if def, ok := c.Intent(match.IntentID); ok && len(def.Responses) > 0 {
			return def.Responses[0]
		}
	}
	if topic != nil && len(topic.ResponseTemplates) > 0 {
		return topic.ResponseTemplates[0]
	}
	return ""
}

func promptFor(topic *intent.TopicDefinition, name string) string {
	if topic != nil {
		if prompt, ok := topic.ParameterPrompts[name]; ok && prompt != "" {
			return prompt
		}
	}
	return fmt.Sprintf("Could you provide your %s?", name)
}

// interpolate fills {name} placeholders from collected parameters.
// Unknown placeholders are left untouched.
func interpolate(template string, params map[string]any) string {
	if len(params) == 0 || !strings.Contains(template, "{") {
		return template
	}
	out := template
	for name, value := range params {
		out = strings.ReplaceAll(out, "{"+name+"}", fmt.Sprintf("%v", value))
	}
	return out
}

func currentTopic(state *SessionState, c *intent.Corpus) *intent.TopicDefinition {
	if c == nil {
		return nil
	}
	if topic, ok := c.Topic(state.CurrentTopic); ok {
		return topic
	}
	// The session's topic vanished in a reload; fall back to general.
	topic, _ := c.Topic(intent.GeneralTopic)
	return topic
}
