// Package graph builds a directed stage graph from a workflow definition and
// performs structural validation on it.
package graph

import (
	"fmt"

	"github.com/dukex/admitio/pkg/models"
)

// Report is the advisory validation result surfaced to workflow editors. Issues
// indicate structural problems; warnings indicate stages where applications can get
// stuck. Neither blocks saving a workflow.
type Report struct {
	IsValid  bool     `json:"is_valid"`
	Issues   []string `json:"issues"`
	Warnings []string `json:"warnings"`
}

// Validate analyses the workflow's stage graph: entry point existence, dead ends,
// and reachability from the initial stage.
func Validate(workflow *models.Workflow) Report {
	report := Report{
		Issues:   make([]string, 0),
		Warnings: make([]string, 0),
	}

	if len(workflow.Stages) == 0 {
		report.Issues = append(report.Issues, "workflow has no stages")

		return report
	}

	incoming := make(map[string]int, len(workflow.Stages))
	outgoing := make(map[string]int, len(workflow.Stages))

	for _, transition := range workflow.Transitions {
		incoming[transition.TargetStageID]++
		outgoing[transition.SourceStageID]++
	}

	initial := initialStages(workflow, incoming)
	if len(initial) == 0 {
		report.Issues = append(report.Issues, "workflow has no entry point: every stage has an incoming transition")
	}

	for _, stage := range workflow.Stages {
		if outgoing[stage.ID] == 0 && !stage.IsTerminal {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("stage %q has no outgoing transitions and is not marked terminal: applications can get stuck", stage.Name))
		}
	}

	if len(initial) > 0 {
		for _, stage := range workflow.Stages {
			if !reachable(workflow, initial, stage.ID) {
				report.Issues = append(report.Issues,
					fmt.Sprintf("stage %q is unreachable from the initial stage", stage.Name))
			}
		}
	}

	report.IsValid = len(report.Issues) == 0

	return report
}

// CheckStructure enforces the hard write-time constraints on a workflow definition.
// Unlike Validate, any violation here must reject the save. Returned strings
// describe each violation.
func CheckStructure(workflow *models.Workflow) []string {
	violations := make([]string, 0)
	stageIDs := make(map[string]bool, len(workflow.Stages))
	sequences := make(map[int]string, len(workflow.Stages))

	for _, stage := range workflow.Stages {
		if stage.WorkflowID != "" && stage.WorkflowID != workflow.ID {
			violations = append(violations,
				fmt.Sprintf("stage %q belongs to workflow %s, not %s", stage.Name, stage.WorkflowID, workflow.ID))
		}

		if owner, taken := sequences[stage.Sequence]; taken {
			violations = append(violations,
				fmt.Sprintf("stages %q and %q share sequence %d", owner, stage.Name, stage.Sequence))
		}

		sequences[stage.Sequence] = stage.Name
		stageIDs[stage.ID] = true
	}

	for _, transition := range workflow.Transitions {
		if !stageIDs[transition.SourceStageID] {
			violations = append(violations,
				fmt.Sprintf("transition %q references source stage %s outside this workflow", transition.Name, transition.SourceStageID))
		}

		if !stageIDs[transition.TargetStageID] {
			violations = append(violations,
				fmt.Sprintf("transition %q references target stage %s outside this workflow", transition.Name, transition.TargetStageID))
		}

		if transition.IsAutomatic && len(transition.RequiredPermissions) > 0 {
			violations = append(violations,
				fmt.Sprintf("automatic transition %q must not require permissions", transition.Name))
		}

		for _, condition := range transition.Conditions {
			if !condition.Operator.Valid() {
				violations = append(violations,
					fmt.Sprintf("transition %q uses unsupported operator %q", transition.Name, condition.Operator))
			}
		}
	}

	return violations
}

// initialStages returns the stages with no incoming transitions.
func initialStages(workflow *models.Workflow, incoming map[string]int) []string {
	initial := make([]string, 0)

	for _, stage := range workflow.Stages {
		if incoming[stage.ID] == 0 {
			initial = append(initial, stage.ID)
		}
	}

	return initial
}

// reachable reports whether the target stage can be reached from any initial stage
// by following transitions.
func reachable(workflow *models.Workflow, initial []string, target string) bool {
	visited := make(map[string]bool, len(workflow.Stages))
	queue := append([]string(nil), initial...)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == target {
			return true
		}

		if visited[current] {
			continue
		}

		visited[current] = true

		for _, transition := range workflow.Transitions {
			if transition.SourceStageID == current && !visited[transition.TargetStageID] {
				queue = append(queue, transition.TargetStageID)
			}
		}
	}

	return false
}
