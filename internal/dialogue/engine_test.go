package dialogue

import (
	"reflect"
	"testing"
	"time"

	"github.com/wavely/converse/internal/intent"
)

var testNow = time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)

func advance(t *testing.T, e *Engine, state *SessionState, c *intent.Corpus, utterance string) Result {
	t.Helper()
	match := intent.Score(utterance, c, "")
	return e.Advance(state, utterance, match, c, testNow)
}

func TestAdvanceFallbackStaysGeneral(t *testing.T) {
	c := intent.DefaultCorpus()
	e := NewEngine(nil)
	state := NewSessionState("s1", "u1")

	result := advance(t, e, state, c, "xyzzy plugh quux")

	if state.CurrentTopic != intent.GeneralTopic {
		t.Fatalf("expected general topic, got %q", state.CurrentTopic)
	}
	if result.SwitchedTopic {
		t.Fatal("fallback must not switch topics")
	}
	if result.NextAction != ActionProvideService {
		t.Fatalf("expected provide_service, got %q", result.NextAction)
	}
	if result.Response == "" {
		t.Fatal("fallback intent carries a response template")
	}
	if state.Memory.LastIntent != intent.FallbackIntentID {
		t.Fatalf("expected last intent recorded, got %q", state.Memory.LastIntent)
	}
}

func TestAdvanceSwitchesIntoSchedulingAndPromptsForDate(t *testing.T) {
	c := intent.DefaultCorpus()
	e := NewEngine(nil)
	state := NewSessionState("s1", "u1")

	result := advance(t, e, state, c, "I want to book an appointment")

	if state.CurrentTopic != "scheduling" {
		t.Fatalf("expected scheduling topic, got %q", state.CurrentTopic)
	}
	if !result.SwitchedTopic || state.Memory.TopicSwitchCount != 1 {
		t.Fatalf("expected one recorded switch, got count %d", state.Memory.TopicSwitchCount)
	}
	if state.PreviousTopic != intent.GeneralTopic {
		t.Fatalf("expected previous topic general, got %q", state.PreviousTopic)
	}
	if len(state.TopicHistory) != 1 || state.TopicHistory[0].Trigger != "appointment_scheduling" {
		t.Fatalf("unexpected topic history: %+v", state.TopicHistory)
	}
	if result.NextAction != ActionCollectParameter {
		t.Fatalf("expected parameter_collection, got %q", result.NextAction)
	}
	if result.PromptedParameter != "date" {
		t.Fatalf("date is declared first, expected it prompted, got %q", result.PromptedParameter)
	}
	if len(result.MissingParameters) != 2 {
		t.Fatalf("expected date and time missing, got %v", result.MissingParameters)
	}
}

func TestAdvanceDateOnlyThenPromptsForTime(t *testing.T) {
	c := intent.DefaultCorpus()
	e := NewEngine(nil)
	state := NewSessionState("s1", "u1")

	result := advance(t, e, state, c, "book an appointment on 12/06/2026")

	if got := state.Memory.CollectedParameters["date"]; got != "12/06/2026" {
		t.Fatalf("expected date collected, got %v", got)
	}
	if result.NextAction != ActionCollectParameter || result.PromptedParameter != "time" {
		t.Fatalf("expected a prompt for time, got %+v", result)
	}
	if len(result.MissingParameters) != 1 || result.MissingParameters[0] != "time" {
		t.Fatalf("expected only time missing, got %v", result.MissingParameters)
	}
	if result.Response != "What time would you like?" {
		t.Fatalf("expected the declared prompt, got %q", result.Response)
	}
}

func TestAdvanceCompleteParametersProvideService(t *testing.T) {
	c := intent.DefaultCorpus()
	e := NewEngine(nil)
	state := NewSessionState("s1", "u1")

	advance(t, e, state, c, "book an appointment on 12/06/2026")
	result := advance(t, e, state, c, "3pm works for me, book it")

	if result.NextAction != ActionProvideService {
		t.Fatalf("expected provide_service, got %+v", result)
	}
	if result.Response != "You're booked for 12/06/2026 at 3pm. See you then!" {
		t.Fatalf("unexpected response: %q", result.Response)
	}
	if result.NeedsAnswer {
		t.Fatal("a template rendered; no downstream answer is needed")
	}
}

func TestAdvanceIsIdempotentOnEqualInputs(t *testing.T) {
	c := intent.DefaultCorpus()
	e := NewEngine(nil)

	base := NewSessionState("s1", "u1")
	advance(t, e, base, c, "book an appointment on 12/06/2026")

	match := intent.Score("3pm please", c, "")

	first, second := base.Clone(), base.Clone()
	r1 := e.Advance(first, "3pm please", match, c, testNow)
	r2 := e.Advance(second, "3pm please", match, c, testNow)

	if !reflect.DeepEqual(r1, r2) {
		t.Fatalf("results differ: %+v vs %+v", r1, r2)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("post-turn states differ: %+v vs %+v", first, second)
	}
}

func TestMissingParametersNeverGrowWithoutSwitch(t *testing.T) {
	c := intent.DefaultCorpus()
	e := NewEngine(nil)
	state := NewSessionState("s1", "u1")

	turns := []string{
		"I want to book an appointment",
		"how about 12/06/2026",
		"still thinking about the booking",
		"3pm",
	}
	prev := -1
	for _, turn := range turns {
		result := advance(t, e, state, c, turn)
		if result.SwitchedTopic && prev != -1 {
			t.Fatalf("turn %q switched topics unexpectedly", turn)
		}
		if prev != -1 && len(result.MissingParameters) > prev {
			t.Fatalf("missing parameters grew on %q: %v", turn, result.MissingParameters)
		}
		prev = len(result.MissingParameters)
	}
	if prev != 0 {
		t.Fatalf("expected all parameters collected, still missing %d", prev)
	}
}

func TestParametersSurviveTopicRoundTrip(t *testing.T) {
	c := intent.DefaultCorpus()
	e := NewEngine(nil)
	state := NewSessionState("s1", "u1")

	advance(t, e, state, c, "book an appointment on 12/06/2026")

	// Detour into support, which scheduling allows.
	result := advance(t, e, state, c, "actually I forgot my password, reset it")
	if state.CurrentTopic != "support" {
		t.Fatalf("expected support topic, got %q", state.CurrentTopic)
	}
	if result.NextAction != ActionProvideService {
		t.Fatalf("the password rule should emit immediately, got %+v", result)
	}

	// Returning to scheduling picks up where it left off.
	result = advance(t, e, state, c, "ok back to the appointment booking")
	if state.CurrentTopic != "scheduling" {
		t.Fatalf("expected scheduling topic, got %q", state.CurrentTopic)
	}
	if got := state.Memory.CollectedParameters["date"]; got != "12/06/2026" {
		t.Fatalf("date must survive the round trip, got %v", got)
	}
	if len(result.MissingParameters) != 1 || result.MissingParameters[0] != "time" {
		t.Fatalf("only time should still be missing, got %v", result.MissingParameters)
	}
}

func TestAdvanceDisallowedTransitionStaysPut(t *testing.T) {
	c := intent.DefaultCorpus()
	e := NewEngine(nil)
	state := NewSessionState("s1", "u1")
	state.CurrentTopic = "banking"

	match := intent.Match{IntentID: "appointment_scheduling", Topic: "scheduling", Confidence: 0.9}
	result := e.Advance(state, "can we set something up", match, c, testNow)

	if state.CurrentTopic != "banking" {
		t.Fatalf("scheduling does not accept switches from banking, got %q", state.CurrentTopic)
	}
	if result.SwitchedTopic || state.Memory.TopicSwitchCount != 0 {
		t.Fatal("no switch should be recorded")
	}
	// Still gated on banking's own required parameter.
	if result.NextAction != ActionCollectParameter || result.PromptedParameter != "accountId" {
		t.Fatalf("expected an accountId prompt, got %+v", result)
	}
}

func TestAdvanceRuleEmitShortCircuitsParameterGate(t *testing.T) {
	c := intent.DefaultCorpus()
	e := NewEngine(nil)
	state := NewSessionState("s1", "u1")

	// support requires an email, but the password_reset rule emits first.
	result := advance(t, e, state, c, "I forgot my password and need to reset it")

	if state.CurrentTopic != "support" {
		t.Fatalf("expected support topic, got %q", state.CurrentTopic)
	}
	if result.NextAction != ActionProvideService {
		t.Fatalf("expected provide_service from the emit rule, got %+v", result)
	}
	if result.Response == "" || len(result.MissingParameters) != 0 {
		t.Fatalf("emit must bypass the parameter gate, got %+v", result)
	}
}

func TestAdvanceVanishedTopicFallsBackToGeneralGate(t *testing.T) {
	c := intent.DefaultCorpus()
	e := NewEngine(nil)
	state := NewSessionState("s1", "u1")
	state.CurrentTopic = "discontinued"

	match := intent.Fallback(c)
	result := e.Advance(state, "hello there", match, c, testNow)

	if result.NextAction != ActionProvideService {
		t.Fatalf("general has no required parameters, got %+v", result)
	}
}

func TestMergeParametersLastWriteWins(t *testing.T) {
	state := NewSessionState("s1", "u1")
	mergeParameters(state, map[string]any{"date": "12/06/2026"}, testNow)
	mergeParameters(state, map[string]any{"date": "1/07/2027"}, testNow.Add(time.Minute))

	if got := state.Memory.CollectedParameters["date"]; got != "1/07/2027" {
		t.Fatalf("expected the later value, got %v", got)
	}
	if len(state.Memory.ParameterHistory) != 2 {
		t.Fatalf("both writes belong in the history, got %d", len(state.Memory.ParameterHistory))
	}
}

func TestInterpolateLeavesUnknownPlaceholders(t *testing.T) {
	out := interpolate("Booked for {date} at {time}.", map[string]any{"date": "12/06/2026"})
	if out != "Booked for 12/06/2026 at {time}." {
		t.Fatalf("unexpected interpolation: %q", out)
	}
}
