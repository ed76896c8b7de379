package inline

import (
	"context"

	"github.com/shipsec/workflow-engine/runtime"
)

// ManualApprovalComponentID is the component id an authored graph
// references for a human-approval gate.
const ManualApprovalComponentID = "manual-approval"

// ManualApprovalTitleParam and ManualApprovalDescriptionParam name the
// parameters an authored node supplies to customize the suspension prompt.
const (
	ManualApprovalTitleParam       = "title"
	ManualApprovalDescriptionParam = "description"
)

// Branch output port ids for the approval gate's branching outputs.
const (
	ApprovedBranch = "approved"
	RejectedBranch = "rejected"
)

// ManualApproval returns the Func for the manual-approval component. It
// always suspends: there is no synchronous path, since the whole point of
// the component is to park the node until a human resolves it through
// engine.Resolve, which delivers the chosen branch's output directly
// without re-invoking this Func.
func ManualApproval() Func {
	return func(_ context.Context, req runtime.InvocationRequest) runtime.InvocationResult {
		title := req.Params[ManualApprovalTitleParam].AsText()
		description := req.Params[ManualApprovalDescriptionParam].AsText()
		return runtime.InvocationResult{
			Pending: &runtime.PendingResult{
				RequestID:   req.RunID + ":" + req.NodeID,
				InputType:   "approval",
				Title:       title,
				Description: description,
				ContextData: req.Inputs,
			},
		}
	}
}
