package intent

import (
	"fmt"
	"strings"
)

// ConditionKind enumerates the predicates a topic rule may test.
type ConditionKind int

const (
	CondIntentIs ConditionKind = iota
	CondConfidenceGTE
	CondParamEquals
)

// ActionKind enumerates what a matching rule may do.
type ActionKind int

const (
	ActSwitchTopic ActionKind = iota
	ActRequestParameter
	ActEmit
)

// Condition is one node of the rule AST, built once at corpus load.
type Condition struct {
	Kind      ConditionKind
	Intent    string
	Threshold float64
	Param     string
	Value     string
}

// Action is the consequence of a matched rule.
type Action struct {
	Kind      ActionKind
	Topic     string
	Parameter string
	Response  string
}

// Rule pairs a condition with an action. Rules are evaluated in
// declaration order; the first match wins.
type Rule struct {
	When Condition
	Then Action
}

// Holds evaluates the condition against a scored turn. Parameter
// comparison is string-based against the collected value's canonical
// form.
func (c Condition) Holds(intentID string, confidence float64, params map[string]any) bool {
	switch c.Kind {
	case CondIntentIs:
		return intentID == c.Intent
	case CondConfidenceGTE:
		return confidence >= c.Threshold
	case CondParamEquals:
		value, ok := params[c.Param]
		if !ok {
			return false
		}
		return strings.EqualFold(fmt.Sprintf("%v", value), c.Value)
	default:
		return false
	}
}

// RuleConfig is the on-disk representation of a rule, parsed into the
// typed AST when the corpus loads. Unknown kinds are a load error.
type RuleConfig struct {
	When ConditionConfig `json:"when"`
	Then ActionConfig    `json:"then"`
}

type ConditionConfig struct {
	Kind      string  `json:"kind"` // intent_is | confidence_gte | param_equals
	Intent    string  `json:"intent,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Param     string  `json:"param,omitempty"`
	Value     string  `json:"value,omitempty"`
}

type ActionConfig struct {
	Kind      string `json:"kind"` // switch_topic | request_parameter | emit
	Topic     string `json:"topic,omitempty"`
	Parameter string `json:"parameter,omitempty"`
	Response  string `json:"response,omitempty"`
}

// ParseRule turns a config stanza into the typed rule AST.
func ParseRule(cfg RuleConfig) (Rule, error) {
	var rule Rule

	switch cfg.When.Kind {
	case "intent_is":
		if cfg.When.Intent == "" {
			return rule, fmt.Errorf("intent: rule condition intent_is requires an intent")
		}
		rule.When = Condition{Kind: CondIntentIs, Intent: cfg.When.Intent}
	case "confidence_gte":
		if cfg.When.Threshold <= 0 || cfg.When.Threshold > 1 {
			return rule, fmt.Errorf("intent: rule condition confidence_gte requires a threshold in (0,1], got %v", cfg.When.Threshold)
		}
		rule.When = Condition{Kind: CondConfidenceGTE, Threshold: cfg.When.Threshold}
	case "param_equals":
		if cfg.When.Param == "" {
			return rule, fmt.Errorf("intent: rule condition param_equals requires a param")
		}
		rule.When = Condition{Kind: CondParamEquals, Param: cfg.When.Param, Value: cfg.When.Value}
	default:
		return rule, fmt.Errorf("intent: unknown rule condition kind %q", cfg.When.Kind)
	}

	switch cfg.Then.Kind {
	case "switch_topic":
		if cfg.Then.Topic == "" {
			return rule, fmt.Errorf("intent: rule action switch_topic requires a topic")
		}
		rule.Then = Action{Kind: ActSwitchTopic, Topic: cfg.Then.Topic}
	case "request_parameter":
		if cfg.Then.Parameter == "" {
			return rule, fmt.Errorf("intent: rule action request_parameter requires a parameter")
		}
		rule.Then = Action{Kind: ActRequestParameter, Parameter: cfg.Then.Parameter}
	case "emit":
		if cfg.Then.Response == "" {
			return rule, fmt.Errorf("intent: rule action emit requires a response")
		}
		rule.Then = Action{Kind: ActEmit, Response: cfg.Then.Response}
	default:
		return rule, fmt.Errorf("intent: unknown rule action kind %q", cfg.Then.Kind)
	}

	return rule, nil
}
