package inline

import (
	"context"

	"github.com/shipsec/workflow-engine/runtime"
)

// FormComponentID is the component id for a user-input form gate: a
// suspension of kind "form" whose resolution payload must conform to the
// node's declared input schema.
const FormComponentID = "form"

// FormTitleParam, FormDescriptionParam, FormSchemaParam name the static
// parameters a form node declares.
const (
	FormTitleParam       = "title"
	FormDescriptionParam = "description"
	FormSchemaParam      = "inputSchema" // contract name resolution payloads must satisfy
)

// Form returns the Func for the form component: like ManualApproval it
// always suspends, and the engine's Resolve path validates the resolution
// payload against the schema named in FormSchemaParam before delivering it
// as this node's output.
func Form() Func {
	return func(_ context.Context, req runtime.InvocationRequest) runtime.InvocationResult {
		title := req.Params[FormTitleParam].AsText()
		description := req.Params[FormDescriptionParam].AsText()
		schema := req.Params[FormSchemaParam].AsText()
		return runtime.InvocationResult{
			Pending: &runtime.PendingResult{
				RequestID:   req.RunID + ":" + req.NodeID,
				InputType:   schema,
				Title:       title,
				Description: description,
				ContextData: req.Inputs,
			},
		}
	}
}
