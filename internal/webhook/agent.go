package webhook

import (
	"strings"
	"time"
)

// Agent accumulates the conversational reply for one webhook call:
// messages, suggestion chips and output contexts. It is the local
// equivalent of the dispatcher-side fulfillment client.
type Agent struct {
	req         *WebhookRequest
	messages    []string
	suggestions []string
	contexts    []Context
}

func newAgent(req *WebhookRequest) *Agent {
	return &Agent{req: req}
}

func (a *Agent) Intent() string {
	return a.req.QueryResult.Intent.DisplayName
}

func (a *Agent) Param(name string) any {
	return a.req.QueryResult.Parameters[name]
}

func (a *Agent) StringParam(name string) string {
	s, _ := a.Param(name).(string)
	return s
}

// Add appends a message to the reply.
func (a *Agent) Add(msg string) {
	a.messages = append(a.messages, msg)
}

// AddSuggestions appends quick-reply chips to the reply.
func (a *Agent) AddSuggestions(chips ...string) {
	a.suggestions = append(a.suggestions, chips...)
}

// GetContext finds an active input context by its short name.
func (a *Agent) GetContext(short string) *Context {
	for i := range a.req.QueryResult.OutputContexts {
		c := &a.req.QueryResult.OutputContexts[i]
		if strings.HasSuffix(c.Name, "/contexts/"+short) {
			return c
		}
	}
	return nil
}

// SetContext activates an output context under the request's session.
func (a *Agent) SetContext(short string, lifespan int, params map[string]any) {
	a.contexts = append(a.contexts, Context{
		Name:          a.req.Session + "/contexts/" + short,
		LifespanCount: lifespan,
		Parameters:    params,
	})
}

func (a *Agent) response() WebhookResponse {
	resp := WebhookResponse{
		FulfillmentText: strings.Join(a.messages, "\n"),
		OutputContexts:  a.contexts,
	}
	for _, msg := range a.messages {
		resp.FulfillmentMessages = append(resp.FulfillmentMessages, Message{Text: &Text{Text: []string{msg}}})
	}
	if len(a.suggestions) > 0 {
		resp.FulfillmentMessages = append(resp.FulfillmentMessages, Message{
			QuickReplies: &QuickReplies{QuickReplies: a.suggestions},
		})
	}
	return resp
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// personName reads a name out of a Dialogflow parameter, which arrives
// either as a bare string or as a sys.person object {"name": ...}.
func personName(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if n, ok := t["name"].(string); ok {
			return n
		}
	}
	return ""
}

// parseDateTime reads a Dialogflow date-time parameter, which arrives
// either as an RFC 3339 string or as an object {"date_time": ...}.
func parseDateTime(v any, loc *time.Location) (time.Time, bool) {
	raw := ""
	switch t := v.(type) {
	case string:
		raw = t
	case map[string]any:
		raw, _ = t["date_time"].(string)
	}
	if raw == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts.In(loc), true
}
