package api

import (
	"gocausal/internal/bn"
	"gocausal/internal/causal"
	"gocausal/internal/modeldef"
)

// InlineImpactRequest carries a model definition along with the query
type InlineImpactRequest struct {
	Model *modeldef.Definition `json:"model" binding:"required"`
	Query causal.Query         `json:"query"`
}

// BatchImpactRequest lists queries to run on one stored model
type BatchImpactRequest struct {
	Queries []causal.Query `json:"queries" binding:"required,min=1"`
}

// ImpactResponse is the wire form of causal.Impact
type ImpactResponse struct {
	Identified  bool        `json:"identified"`
	Explanation string      `json:"explanation"`
	Query       string      `json:"query,omitempty"`
	Formula     string      `json:"formula,omitempty"`
	Latex       string      `json:"latex,omitempty"`
	Variables   []string    `json:"variables,omitempty"`
	Cells       []bn.Cell   `json:"cells,omitempty"`
	Summary     *bn.Summary `json:"summary,omitempty"`
}

// BatchItemResponse is one entry of a batch answer, in request order
type BatchItemResponse struct {
	Query  causal.Query    `json:"query"`
	Impact *ImpactResponse `json:"impact,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func newImpactResponse(impact *causal.Impact) *ImpactResponse {
	resp := &ImpactResponse{
		Identified:  impact.Formula != nil,
		Explanation: impact.Explanation,
	}
	if impact.Formula != nil {
		resp.Query = impact.Formula.LatexQuery()
		resp.Formula = impact.Formula.String()
		resp.Latex = impact.Formula.ToLatex()
	}
	if impact.Result != nil {
		resp.Variables = impact.Result.Names()
		resp.Cells = impact.Result.Cells()
		if summary, err := impact.Result.Summary(); err == nil {
			resp.Summary = &summary
		}
	}
	return resp
}
