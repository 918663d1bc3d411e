package intent

// Default catalogue compiled into the binary. Serves as the corpus when
// no file is configured and as the last-resort catalogue when a reload
// has never succeeded.

func floatPtr(v float64) *float64 { return &v }

// DefaultIntents returns the built-in intent catalogue.
func DefaultIntents() []IntentDefinition {
	return []IntentDefinition{
		{
			ID:             "account_inquiry",
			Topic:          "banking",
			Keywords:       []string{"account", "balance", "check my account", "account status", "funds", "savings", "checking"},
			Patterns:       []string{`account (balance|status)`},
			BaseConfidence: 0.6,
			Parameters: []ParameterSpec{
				{
					Name:     "accountId",
					Kind:     KindString,
					Required: true,
					Pattern:  `\b(?:ACC|ACCT)\d{4,}\b`,
					Prompt:   "Could you share your account number? It looks like ACC123456.",
				},
			},
			Responses:        []string{"Account {accountId} is in good standing. Anything else I can check for you?"},
			SuggestedActions: []string{"view_balance", "view_transactions"},
		},
		{
			ID:             "billing_balance",
			Topic:          "billing",
			Keywords:       []string{"bill", "billing", "invoice", "balance", "owe", "amount due", "payment due", "charge"},
			Patterns:       []string{`(how much|what).*(owe|due)`},
			BaseConfidence: 0.6,
			Parameters: []ParameterSpec{
				{
					Name:     "accountId",
					Kind:     KindString,
					Required: true,
					Pattern:  `\b(?:ACC|ACCT)\d{4,}\b`,
					Prompt:   "Which account is this for? Account numbers look like ACC123456.",
				},
			},
			Responses:        []string{"The current balance on account {accountId} is ready — I've sent the latest invoice to your email on file."},
			SuggestedActions: []string{"view_invoice", "make_payment"},
		},
		{
			ID:             "billing_payment",
			Topic:          "billing",
			Keywords:       []string{"pay", "payment", "pay my bill", "credit card", "autopay", "settle"},
			BaseConfidence: 0.5,
			Parameters: []ParameterSpec{
				{
					Name:     "amount",
					Kind:     KindNumber,
					Required: true,
					Min:      floatPtr(1),
					Max:      floatPtr(100000),
					Prompt:   "How much would you like to pay?",
				},
			},
			Responses:        []string{"Got it — a payment of {amount} is queued. You'll receive a confirmation shortly."},
			SuggestedActions: []string{"confirm_payment", "set_up_autopay"},
		},
		{
			ID:             "appointment_scheduling",
			Topic:          "scheduling",
			Keywords:       []string{"schedule", "appointment", "book", "booking", "reschedule", "meeting", "visit", "available"},
			Patterns:       []string{`(book|schedule).*(appointment|meeting|visit)`},
			BaseConfidence: 0.6,
			Parameters: []ParameterSpec{
				{
					Name:     "date",
					Kind:     KindDate,
					Required: true,
					Prompt:   "What date works best for you?",
				},
				{
					Name:     "time",
					Kind:     KindString,
					Required: true,
					Pattern:  `(?i)\b\d{1,2}(?::\d{2})?\s*(?:am|pm)\b`,
					Prompt:   "What time would you like?",
				},
			},
			Responses:        []string{"You're booked for {date} at {time}. See you then!"},
			SuggestedActions: []string{"confirm_appointment", "view_calendar"},
		},
		{
			ID:             "technical_support",
			Topic:          "support",
			Keywords:       []string{"help", "problem", "issue", "error", "broken", "not working", "crash", "bug"},
			BaseConfidence: 0.5,
			Parameters: []ParameterSpec{
				{
					Name:     "email",
					Kind:     KindEmail,
					Required: true,
					Prompt:   "What's the best email to reach you at?",
				},
			},
			Responses:        []string{"Thanks — a support specialist will follow up at {email} within one business day."},
			SuggestedActions: []string{"open_ticket", "view_status_page"},
		},
		{
			ID:               "password_reset",
			Topic:            "support",
			Keywords:         []string{"password", "reset", "login", "locked out", "forgot", "sign in"},
			Patterns:         []string{`(reset|forgot).*(password)`},
			BaseConfidence:   0.6,
			Responses:        []string{"I've sent a password reset link to the email on file. It expires in 30 minutes."},
			SuggestedActions: []string{"resend_link", "contact_support"},
		},
		{
			ID:               FallbackIntentID,
			Topic:            GeneralTopic,
			Keywords:         []string{"hello", "hi", "question", "info", "information", "thanks", "thank you"},
			BaseConfidence:   0.3,
			Responses:        []string{"How can I help you today?"},
			SuggestedActions: []string{"browse_help_topics", "contact_support"},
		},
	}
}

// DefaultTopics returns the built-in topic configuration.
func DefaultTopics() []TopicConfig {
	return []TopicConfig{
		{
			ID:                 "banking",
			AllowedTransitions: []string{"billing", "general"},
		},
		{
			ID:                 "billing",
			AllowedTransitions: []string{"banking", "general"},
		},
		{
			ID:                 "scheduling",
			AllowedTransitions: []string{"support", "general"},
		},
		{
			ID:                 "support",
			AllowedTransitions: []string{"scheduling", "general"},
			Rules: []RuleConfig{
				{
					When: ConditionConfig{Kind: "intent_is", Intent: "password_reset"},
					Then: ActionConfig{Kind: "emit", Response: "I've sent a password reset link to the email on file. It expires in 30 minutes."},
				},
			},
		},
		{
			ID: GeneralTopic,
		},
	}
}

// DefaultCorpus builds the compiled-in corpus. It panics on error: a
// broken default catalogue is a programming mistake, not a runtime
// condition.
func DefaultCorpus() *Corpus {
	c, err := Build(DefaultIntents(), DefaultTopics())
	if err != nil {
		panic("intent: default corpus is invalid: " + err.Error())
	}
	return c
}
