package api

import (
	"github.com/ankitaa186/agentic-memories-sub002/internal/conversation"
	"github.com/ankitaa186/agentic-memories-sub002/internal/ingest"
	"github.com/ankitaa186/agentic-memories-sub002/internal/models"
	"github.com/ankitaa186/agentic-memories-sub002/internal/orchestrator"
	"github.com/ankitaa186/agentic-memories-sub002/internal/retrieval"
)

// StoreRequest is the body of POST /v1/store.
type StoreRequest struct {
	UserID     string        `json:"user_id"`
	Transcript []models.Turn `json:"transcript"`
}

// StoreResponse wraps ingest.Result with the top-level status envelope
// every response carries (spec.md §7).
type StoreResponse struct {
	Status string `json:"status"`
	ingest.Result
}

// RetrieveResponse is returned by GET /v1/retrieve.
type RetrieveResponse struct {
	Status string           `json:"status"`
	Hits   []retrieval.Hit  `json:"hits"`
}

// PersonaRetrieveRequest is the body of POST /v1/retrieve.
type PersonaRetrieveRequest struct {
	UserID  string `json:"user_id"`
	Query   string `json:"query"`
	Persona string `json:"persona,omitempty"`
	TopK    int    `json:"top_k,omitempty"`
}

// PersonaRetrieveResponse is returned by POST /v1/retrieve.
type PersonaRetrieveResponse struct {
	Status         string                  `json:"status"`
	Hits           []retrieval.Hit         `json:"hits"`
	Explainability retrieval.Explainability `json:"explainability"`
}

// StructuredRetrieveRequest is the body of POST /v1/retrieve/structured.
type StructuredRetrieveRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
	TopK   int    `json:"top_k,omitempty"`
}

// StructuredRetrieveResponse is returned by POST /v1/retrieve/structured.
type StructuredRetrieveResponse struct {
	Status     string                       `json:"status"`
	Categories map[string][]retrieval.Hit   `json:"categories"`
}

// NarrativeRequest is the body of POST /v1/narrative.
type NarrativeRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
	TopK   int    `json:"top_k,omitempty"`
}

// NarrativeResponse is returned by POST /v1/narrative.
type NarrativeResponse struct {
	Status    string `json:"status"`
	Narrative string `json:"narrative"`
}

// DirectWriteRequest is the body of POST /v1/memories/direct.
type DirectWriteRequest struct {
	UserID      string                   `json:"user_id"`
	Content     string                   `json:"content"`
	Layer       models.Layer             `json:"layer,omitempty"`
	Type        models.MemoryType        `json:"type,omitempty"`
	Importance  float64                  `json:"importance,omitempty"`
	Confidence  float64                  `json:"confidence,omitempty"`
	PersonaTags []string                 `json:"persona_tags,omitempty"`
	Timestamp   string                   `json:"timestamp,omitempty"`
	Episodic    *models.EpisodicEvent    `json:"episodic,omitempty"`
	Emotional   *models.EmotionalState   `json:"emotional,omitempty"`
	Procedural  *models.ProceduralSkill  `json:"procedural,omitempty"`
	Portfolio   *models.PortfolioEventIn `json:"portfolio,omitempty"`

	// Flattened episodic/portfolio fields, accepted directly on the
	// envelope per spec.md's scenario literals (S1/S2 put
	// event_timestamp/location/participants at the top level rather than
	// nested under "episodic").
	EventTimestamp string         `json:"event_timestamp,omitempty"`
	Location       string         `json:"location,omitempty"`
	Participants   []string       `json:"participants,omitempty"`
}

// DirectWriteResponse is returned by POST /v1/memories/direct.
type DirectWriteResponse struct {
	Status   string          `json:"status"`
	MemoryID string          `json:"memory_id"`
	Storage  map[string]bool `json:"storage"`
}

// DeleteResponse is returned by DELETE /v1/memories/{id}.
type DeleteResponse struct {
	Status  string          `json:"status"`
	Deleted bool            `json:"deleted"`
	Storage map[string]bool `json:"storage"`
}

// ForgetRequest is the body of POST /v1/forget: delete every memory
// matching the filter for user_id.
type ForgetRequest struct {
	UserID string   `json:"user_id"`
	Layer  string   `json:"layer,omitempty"`
	Type   string   `json:"type,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// ForgetResponse is returned by POST /v1/forget.
type ForgetResponse struct {
	Status       string `json:"status"`
	DeletedCount int    `json:"deleted_count"`
}

// MaintenanceRequest is the body of POST /v1/maintenance: runs compaction
// for a single user on demand.
type MaintenanceRequest struct {
	UserID string `json:"user_id"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// MaintenanceResponse is returned by POST /v1/maintenance.
type MaintenanceResponse struct {
	Status  string `json:"status"`
	Summary any    `json:"summary"`
}

// CompactAllResponse is returned by POST /v1/maintenance/compact_all.
type CompactAllResponse struct {
	Status    string `json:"status"`
	Summaries any    `json:"summaries"`
}

// OrchestratorMessageRequest is the body of POST /v1/orchestrator/message.
type OrchestratorMessageRequest struct {
	ConversationID string      `json:"conversation_id"`
	UserID         string      `json:"user_id"`
	Turn           models.Turn `json:"turn"`
}

// OrchestratorMessageResponse is returned by POST /v1/orchestrator/message.
type OrchestratorMessageResponse struct {
	Status string                 `json:"status"`
	conversation.TurnResult
}

// OrchestratorRetrieveRequest is the body of POST /v1/orchestrator/retrieve.
type OrchestratorRetrieveRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
	TopK   int    `json:"top_k,omitempty"`
}

// OrchestratorTranscriptRequest is the body of POST /v1/orchestrator/transcript.
type OrchestratorTranscriptRequest struct {
	ConversationID string        `json:"conversation_id"`
	UserID         string        `json:"user_id"`
	Transcript     []models.Turn `json:"transcript"`
}

// OrchestratorTranscriptResponse is returned by POST /v1/orchestrator/transcript.
type OrchestratorTranscriptResponse struct {
	Status  string                      `json:"status"`
	Results []conversation.TurnResult   `json:"results"`
}

// ProfileResponse wraps a profile.Snapshot with the status envelope.
type ProfileResponse struct {
	Status string `json:"status"`
	models.UserProfile
	Fields     map[models.ProfileCategory][]models.ProfileField `json:"fields,omitempty"`
	Confidence []models.ProfileConfidenceScore                  `json:"confidence,omitempty"`
}

// ProfileFieldPutRequest is the body of PUT /v1/profile/{category}/{field}.
type ProfileFieldPutRequest struct {
	UserID     string `json:"user_id"`
	FieldValue string `json:"field_value"`
	ValueType  string `json:"value_type,omitempty"`
}

// ProfileImportRequest is the body of POST /v1/profile/import.
type ProfileImportRequest struct {
	UserID  string                   `json:"user_id"`
	Updates []models.ProfileUpdate  `json:"updates"`
}

// ProfileCompletenessResponse is returned by GET /v1/profile/completeness.
type ProfileCompletenessResponse struct {
	Status          string  `json:"status"`
	CompletenessPct float64 `json:"completeness_pct"`
	TotalFields     int     `json:"total_fields"`
	PopulatedFields int     `json:"populated_fields"`
}

// AuditResponse is returned by GET /v1/profile/audit.
type AuditResponse struct {
	Status  string                  `json:"status"`
	Sources []models.ProfileSource `json:"sources"`
}

// HoldingRequest is the body of POST/PUT /v1/portfolio/holding/{ticker}.
type HoldingRequest struct {
	UserID    string  `json:"user_id"`
	Shares    float64 `json:"shares"`
	AvgPrice  float64 `json:"avg_price"`
	AssetName string  `json:"asset_name,omitempty"`
}

// HoldingResponse wraps a single holding.
type HoldingResponse struct {
	Status string `json:"status"`
	models.PortfolioHolding
}

// PortfolioSummaryResponse is returned by GET /v1/portfolio/summary.
type PortfolioSummaryResponse struct {
	Status   string                     `json:"status"`
	Holdings []models.PortfolioHolding `json:"holdings"`
}

// IntentRequest is the body of POST/PUT /v1/intents[/{id}].
type IntentRequest struct {
	UserID           string         `json:"user_id"`
	IntentName       string         `json:"intent_name"`
	TriggerType      string         `json:"trigger_type"`
	TriggerSchedule  map[string]any `json:"trigger_schedule,omitempty"`
	TriggerCondition map[string]any `json:"trigger_condition,omitempty"`
	ActionContext    string         `json:"action_context,omitempty"`
	ActionPriority   int            `json:"action_priority,omitempty"`
	ExpiresAt        string         `json:"expires_at,omitempty"`
	MaxExecutions    int            `json:"max_executions,omitempty"`
	CooldownHours    int            `json:"cooldown_hours,omitempty"`
}

// IntentResponse wraps a single scheduled intent.
type IntentResponse struct {
	Status string `json:"status"`
	models.ScheduledIntent
}

// IntentListResponse wraps a list of scheduled intents.
type IntentListResponse struct {
	Status  string                    `json:"status"`
	Intents []models.ScheduledIntent `json:"intents"`
}

// IntentHistoryResponse wraps an intent's execution history.
type IntentHistoryResponse struct {
	Status    string                    `json:"status"`
	Executions []models.IntentExecution `json:"executions"`
}

// HealthResponse is returned by GET /health and GET /health/full.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Checks  map[string]HealthCheck `json:"checks"`
}

// HealthCheck is the status of a single backend dependency.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// backendBoolMap renders an orchestrator.Result as the literal
// true/false map spec.md's scenarios (S1/S3) use, renaming the internal
// "vector" backend key to "chromadb".
func backendBoolMap(result orchestrator.Result) map[string]bool {
	out := map[string]bool{}
	for backend, err := range result {
		key := backend
		if backend == orchestrator.BackendVector {
			key = "chromadb"
		}
		out[key] = err == nil
	}
	return out
}

// storedInMap renders a Memory's stored_in_* flags plus the vector-store
// outcome, matching S1's direct-write response shape.
func storedInMap(chromaOK bool, flags models.StoredIn) map[string]bool {
	return map[string]bool{
		"chromadb":             chromaOK,
		"stored_in_episodic":   flags.Episodic,
		"stored_in_emotional":  flags.Emotional,
		"stored_in_procedural": flags.Procedural,
		"stored_in_portfolio":  flags.Portfolio,
	}
}
