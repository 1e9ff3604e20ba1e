// Package pipeline defines the contract between the agent and the
// capabilities a model may invoke, and the registry that dispatches parsed
// directives to them.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"datachat/datastore"
	"datachat/model"
)

// Name identifies a pipeline on the wire.
type Name string

// Built-in pipeline names.
const (
	FetchData     Name = "fetch_data"
	FetchMore     Name = "fetch_more"
	DescribeData  Name = "describe_data"
	TransformData Name = "transform_data"
	GenerateChart Name = "generate_chart"
)

// Input types as they appear in the tool catalog.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

type Input struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Descriptor is the static, model-facing description of a pipeline.
type Descriptor struct {
	Name        Name
	Description string
	Inputs      []Input
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Record is the outcome of one pipeline run. Its JSON form is what the model
// sees in history.
type Record struct {
	Tool    Name   `json:"tool"`
	Status  Status `json:"status"`
	Payload any    `json:"payload,omitempty"`
	Message string `json:"message,omitempty"`
}

func Success(tool Name, payload any, message string) Record {
	return Record{Tool: tool, Status: StatusSuccess, Payload: payload, Message: message}
}

func Failure(tool Name, message string) Record {
	return Record{Tool: tool, Status: StatusError, Message: message}
}

func (r Record) OK() bool { return r.Status == StatusSuccess }

// JSON returns the serialized record. A payload that cannot be encoded is
// replaced by an error record so history always gets valid JSON.
func (r Record) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		data, _ = json.Marshal(Failure(r.Tool, "result could not be encoded: "+err.Error()))
	}
	return string(data)
}

// Actions is the session surface a pipeline may touch.
type Actions interface {
	AddMessage(msg model.Message)
	// UpdateMessage merges the non-zero fields of msg into the message with
	// the same ID.
	UpdateMessage(msg model.Message)
	RemoveMessage(id string)
	NextMessageID() string

	FetchedData(id string) (datastore.Record, bool)
	SetFetchedData(rec datastore.Record) datastore.Record
	FetchedDataList() []datastore.Record
	FetchedDataListPreview(maxRows int) []datastore.Preview

	CurrentDataset() string
	SetCurrentDataset(id string)
}

type FetchDefaults struct {
	DefaultLimit int
	PageSize     int
}

// AgentConfig is the read-only configuration every pipeline run receives.
type AgentConfig struct {
	Name                  string
	SystemPrompt          string
	Model                 model.Provider
	MaxRowsExposedToModel int
	Fetch                 FetchDefaults
	IterationCeiling      int
	StreamIdleTimeout     time.Duration
	TurnTimeout           time.Duration
}

// Pipeline is one invocable capability. Run reports failure through the
// returned record's status, never by panicking.
type Pipeline interface {
	Descriptor() Descriptor
	Run(ctx context.Context, actions Actions, params Params, cfg *AgentConfig) Record
}
