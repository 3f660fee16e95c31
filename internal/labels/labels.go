// Package labels defines the closed label sets a ticket can be classified
// into. Every label value that leaves this package belongs to its set.
package labels

import (
	"errors"
	"fmt"
)

// ErrInvalidLabel is returned when a string is not a member of a label set.
var ErrInvalidLabel = errors.New("invalid label")

// Topic is the subject area of a ticket.
type Topic string

const (
	TopicHowTo         Topic = "How-to"
	TopicProduct       Topic = "Product"
	TopicConnector     Topic = "Connector"
	TopicLineage       Topic = "Lineage"
	TopicAPISDK        Topic = "API/SDK"
	TopicSSO           Topic = "SSO"
	TopicGlossary      Topic = "Glossary"
	TopicBestPractices Topic = "Best practices"
	TopicSensitiveData Topic = "Sensitive data"
)

// Sentiment is the customer's emotional tone.
type Sentiment string

const (
	SentimentFrustrated Sentiment = "Frustrated"
	SentimentCurious    Sentiment = "Curious"
	SentimentAngry      Sentiment = "Angry"
	SentimentNeutral    Sentiment = "Neutral"
	SentimentPositive   Sentiment = "Positive"
)

// Priority is the urgency of a ticket. P0 is the most urgent.
type Priority string

const (
	PriorityHigh   Priority = "P0 (High)"
	PriorityMedium Priority = "P1 (Medium)"
	PriorityLow    Priority = "P2 (Low)"
)

// Definition pairs a label value with the one-line description shown to the model.
type Definition struct {
	Value       string
	Description string
}

var topicDefs = []Definition{
	{string(TopicHowTo), "Questions about how to use features"},
	{string(TopicProduct), "General product questions or feature requests"},
	{string(TopicConnector), "Issues with data source connectors (Snowflake, BigQuery, etc.)"},
	{string(TopicLineage), "Data lineage visualization or tracking issues"},
	{string(TopicAPISDK), "Questions about API usage or SDK integration"},
	{string(TopicSSO), "Single Sign-On authentication issues"},
	{string(TopicGlossary), "Business glossary or metadata management"},
	{string(TopicBestPractices), "Questions about recommended practices"},
	{string(TopicSensitiveData), "Data privacy, security, or compliance issues"},
}

var sentimentDefs = []Definition{
	{string(SentimentFrustrated), "Customer is experiencing issues and showing frustration"},
	{string(SentimentCurious), "Customer is asking questions to learn more"},
	{string(SentimentAngry), "Customer is clearly upset or angry"},
	{string(SentimentNeutral), "Customer is matter-of-fact, no strong emotion"},
	{string(SentimentPositive), "Customer is happy or expressing satisfaction"},
}

var priorityDefs = []Definition{
	{string(PriorityHigh), "Critical issues affecting business operations, security issues, or major bugs"},
	{string(PriorityMedium), "Important issues that need attention but not immediately critical"},
	{string(PriorityLow), "General questions, feature requests, or minor issues"},
}

// TopicDefinitions returns every topic with its description, in declaration order.
func TopicDefinitions() []Definition { return append([]Definition(nil), topicDefs...) }

// SentimentDefinitions returns every sentiment with its description.
func SentimentDefinitions() []Definition { return append([]Definition(nil), sentimentDefs...) }

// PriorityDefinitions returns every priority with its description, most urgent first.
func PriorityDefinitions() []Definition { return append([]Definition(nil), priorityDefs...) }

// AllTopics returns the topic set in declaration order.
func AllTopics() []Topic {
	out := make([]Topic, len(topicDefs))
	for i, d := range topicDefs {
		out[i] = Topic(d.Value)
	}
	return out
}

// AllSentiments returns the sentiment set in declaration order.
func AllSentiments() []Sentiment {
	out := make([]Sentiment, len(sentimentDefs))
	for i, d := range sentimentDefs {
		out[i] = Sentiment(d.Value)
	}
	return out
}

// AllPriorities returns the priority set, most urgent first.
func AllPriorities() []Priority {
	out := make([]Priority, len(priorityDefs))
	for i, d := range priorityDefs {
		out[i] = Priority(d.Value)
	}
	return out
}

func member(defs []Definition, s string) bool {
	for _, d := range defs {
		if d.Value == s {
			return true
		}
	}
	return false
}

// Valid reports whether t is one of the defined topics.
func (t Topic) Valid() bool { return member(topicDefs, string(t)) }

// Valid reports whether s is one of the defined sentiments.
func (s Sentiment) Valid() bool { return member(sentimentDefs, string(s)) }

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool { return member(priorityDefs, string(p)) }

// ParseTopic returns s as a Topic when it is an exact member of the topic set.
func ParseTopic(s string) (Topic, error) {
	if t := Topic(s); t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("topic %q: %w", s, ErrInvalidLabel)
}

// ParseSentiment returns s as a Sentiment when it is an exact member of the sentiment set.
func ParseSentiment(s string) (Sentiment, error) {
	if v := Sentiment(s); v.Valid() {
		return v, nil
	}
	return "", fmt.Errorf("sentiment %q: %w", s, ErrInvalidLabel)
}

// ParsePriority returns s as a Priority when it is an exact member of the priority set.
func ParsePriority(s string) (Priority, error) {
	if p := Priority(s); p.Valid() {
		return p, nil
	}
	return "", fmt.Errorf("priority %q: %w", s, ErrInvalidLabel)
}

// UnmarshalText accepts only defined topics, so decoding JSON validates.
func (t *Topic) UnmarshalText(b []byte) error {
	v, err := ParseTopic(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// UnmarshalText accepts only defined sentiments.
func (s *Sentiment) UnmarshalText(b []byte) error {
	v, err := ParseSentiment(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// UnmarshalText accepts only defined priorities.
func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Rank returns 0 for P0, 1 for P1, 2 for P2 and -1 for values outside the set.
func (p Priority) Rank() int {
	for i, d := range priorityDefs {
		if d.Value == string(p) {
			return i
		}
	}
	return -1
}

// MoreUrgent reports whether p outranks other.
func (p Priority) MoreUrgent(other Priority) bool {
	a, b := p.Rank(), other.Rank()
	if a < 0 {
		return false
	}
	return b < 0 || a < b
}

// answerable is the set of topics the documentation can usually resolve.
var answerable = map[Topic]bool{
	TopicHowTo:         true,
	TopicProduct:       true,
	TopicBestPractices: true,
	TopicAPISDK:        true,
	TopicSSO:           true,
}

// IsAnswerable reports whether tickets on topic t are sent to the answer
// generator rather than routed to a human team.
func IsAnswerable(t Topic) bool {
	return answerable[t]
}
