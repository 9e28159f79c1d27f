package webhook

// Dialogflow ES fulfillment wire types, reduced to the fields this
// service reads and writes.

type WebhookRequest struct {
	ResponseID                  string                       `json:"responseId"`
	Session                     string                       `json:"session"`
	QueryResult                 QueryResult                  `json:"queryResult"`
	OriginalDetectIntentRequest *OriginalDetectIntentRequest `json:"originalDetectIntentRequest,omitempty"`
}

type OriginalDetectIntentRequest struct {
	Source string `json:"source,omitempty"`
}

type QueryResult struct {
	QueryText      string         `json:"queryText,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	Intent         Intent         `json:"intent"`
	OutputContexts []Context      `json:"outputContexts,omitempty"`
}

type Intent struct {
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"displayName"`
}

// Context is Dialogflow's multi-turn state carrier. Parameters set
// here come back on the next webhook call while the lifespan lasts.
type Context struct {
	Name          string         `json:"name"`
	LifespanCount int            `json:"lifespanCount,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty"`
}

type WebhookResponse struct {
	FulfillmentText     string    `json:"fulfillmentText,omitempty"`
	FulfillmentMessages []Message `json:"fulfillmentMessages,omitempty"`
	OutputContexts      []Context `json:"outputContexts,omitempty"`
}

type Message struct {
	Text         *Text         `json:"text,omitempty"`
	QuickReplies *QuickReplies `json:"quickReplies,omitempty"`
}

type Text struct {
	Text []string `json:"text"`
}

type QuickReplies struct {
	Title        string   `json:"title,omitempty"`
	QuickReplies []string `json:"quickReplies"`
}
