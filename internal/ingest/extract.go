// Package ingest implements C8: the deterministic
// init -> extract_all -> classify_and_enrich -> build_objects ->
// store_all -> finalize pipeline.
//
// Shaped after tarsy's staged agent execution (pkg/agent/iteration.go,
// pkg/agent/base_agent.go): each stage is a plain method that always
// returns a result even on partial failure, never a half-built object
// that later stages must special-case.
package ingest

import "github.com/google/jsonschema-go/jsonschema"

// entities is the named-entity bucket the extractor reports per memory.
type entities struct {
	People        []string `json:"people,omitempty"`
	Places        []string `json:"places,omitempty"`
	Organizations []string `json:"organizations,omitempty"`
	Topics        []string `json:"topics,omitempty"`
}

// portfolioEvent is the optional structured portfolio payload a
// memory may carry straight out of extraction.
type portfolioEvent struct {
	Ticker    string  `json:"ticker,omitempty"`
	Side      string  `json:"side,omitempty"`
	Shares    float64 `json:"shares,omitempty"`
	Price     float64 `json:"price,omitempty"`
	AssetName string  `json:"asset_name,omitempty"`
}

// extractedMemory is one memory candidate out of the combined extraction
// call (spec.md §4.4). The typed fields (event_timestamp, emotional_*,
// skill_name, portfolio) are what classify_and_enrich inspects to route
// storage destinations; their absence is meaningful, not an omission.
type extractedMemory struct {
	Content       string   `json:"content"`
	Layer         string   `json:"layer"`
	Type          string   `json:"type,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Entities      entities `json:"entities,omitempty"`
	Confidence    float64  `json:"confidence"`
	TimestampType string   `json:"timestamp_type"` // explicit | inferred | none
	Timestamp     string   `json:"timestamp,omitempty"`

	EventTimestamp string         `json:"event_timestamp,omitempty"`
	Location       map[string]any `json:"location,omitempty"`
	Participants   []string       `json:"participants,omitempty"`

	EmotionalState string  `json:"emotional_state,omitempty"`
	Valence        float64 `json:"valence,omitempty"`
	Arousal        float64 `json:"arousal,omitempty"`
	Dominance      float64 `json:"dominance,omitempty"`

	SkillName        string `json:"skill_name,omitempty"`
	ProficiencyLevel string `json:"proficiency_level,omitempty"`

	Portfolio *portfolioEvent `json:"portfolio,omitempty"`
}

// profileUpdateOut is one profile field proposal out of extraction.
type profileUpdateOut struct {
	Category       string `json:"category"`
	FieldName      string `json:"field_name"`
	FieldValue     string `json:"field_value"`
	Confidence     int    `json:"confidence"`
	SourceType     string `json:"source_type"`
}

// extractResult is the combined schema's top-level shape.
type extractResult struct {
	Memories       []extractedMemory  `json:"memories"`
	ProfileUpdates []profileUpdateOut `json:"profile_updates"`
}

// extractionSystemPrompt encodes the worthiness / anti-pattern rules
// negatively, per spec.md §4.4: there is no separate worthiness-filter
// node, so every rejection rule lives here.
const extractionSystemPrompt = `You extract durable memories and profile updates from a conversation.

Only extract a memory if it is specific, durable, and would be useful to recall in a future conversation.

Reject:
- truisms and generic statements ("user wants to make money", "user likes being healthy")
- quantitative state data that belongs to a structured tool, not memory content (e.g. "owns 500 shares of X" is a portfolio event, not memory content)
- plain restatements of what the user just did in this turn with no added durable fact
- anything that semantically echoes a memory already listed under "Existing memories" below, at a near-duplicate level

For each kept memory, classify:
- layer: short-term, semantic, or long-term
- timestamp_type: explicit (user gave a date/time), inferred (can be derived), or none
- entities: people, places, organizations, topics mentioned
- if the memory anchors to a specific event in time, time_type fields: event_timestamp, location, participants
- if the memory reflects emotional state, the emotional_state/valence/arousal/dominance fields
- if the memory reflects a skill or practice, skill_name/proficiency_level
- if the memory reflects a portfolio transaction or holding, the portfolio object

Also extract profile_updates: stable facts about the user's basics, preferences, goals, interests, or background, each with a confidence 0-100 and a source_type of explicit, implicit, or inferred.

Respond with JSON only, matching the schema.`

var extractSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"memories": {
			Type: "array",
			Items: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"content":        {Type: "string"},
					"layer":          {Type: "string", Enum: []any{"short-term", "semantic", "long-term"}},
					"type":           {Type: "string", Enum: []any{"explicit", "implicit"}},
					"tags":           {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
					"confidence":     {Type: "number"},
					"timestamp_type": {Type: "string", Enum: []any{"explicit", "inferred", "none"}},
					"timestamp":      {Type: "string"},
					"entities": {
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"people":        {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
							"places":        {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
							"organizations": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
							"topics":        {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
						},
					},
					"event_timestamp": {Type: "string"},
					"location":        {Type: "object"},
					"participants":    {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
					"emotional_state": {Type: "string"},
					"valence":         {Type: "number"},
					"arousal":         {Type: "number"},
					"dominance":       {Type: "number"},
					"skill_name":      {Type: "string"},
					"proficiency_level": {Type: "string", Enum: []any{"beginner", "intermediate", "advanced", "expert"}},
					"portfolio": {
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"ticker":     {Type: "string"},
							"side":       {Type: "string", Enum: []any{"buy", "sell"}},
							"shares":     {Type: "number"},
							"price":      {Type: "number"},
							"asset_name": {Type: "string"},
						},
					},
				},
				Required: []string{"content", "layer", "confidence", "timestamp_type"},
			},
		},
		"profile_updates": {
			Type: "array",
			Items: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"category":   {Type: "string", Enum: []any{"basics", "preferences", "goals", "interests", "background"}},
					"field_name": {Type: "string"},
					"field_value": {Type: "string"},
					"confidence": {Type: "integer"},
					"source_type": {Type: "string", Enum: []any{"explicit", "implicit", "inferred"}},
				},
				Required: []string{"category", "field_name", "field_value", "confidence", "source_type"},
			},
		},
	},
	Required: []string{"memories", "profile_updates"},
}
