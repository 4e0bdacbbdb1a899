package taskset

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/parexec/parexec/internal/scheduler"
)

// readOnlyTools is the capability set for analysis tasks that must not
// modify the tree.
var readOnlyTools = []string{"Read", "Glob", "Grep", "LS"}

// Exploration returns up to n independent codebase-analysis tasks for
// the given path. The tasks have no dependencies and fit in one batch;
// priorities only hint at dispatch order.
func Exploration(path string, n int) []*scheduler.Task {
	tasks := []*scheduler.Task{
		{
			ID:           "arch_analysis",
			Description:  "Architecture Analysis",
			Prompt:       fmt.Sprintf("Analyze the overall architecture of the codebase at %s. Focus on project structure, main modules, and design patterns.", path),
			Priority:     3,
			TurnBudget:   3,
			ToolsAllowed: readOnlyTools,
		},
		{
			ID:           "deps_analysis",
			Description:  "Dependencies Analysis",
			Prompt:       fmt.Sprintf("Analyze dependencies, imports, and external libraries used in %s. Create a dependency map.", path),
			Priority:     2,
			TurnBudget:   3,
			ToolsAllowed: readOnlyTools[:3],
		},
		{
			ID:           "quality_analysis",
			Description:  "Code Quality Analysis",
			Prompt:       fmt.Sprintf("Analyze code quality, patterns, and potential issues in %s. Look for code smells, best practices, and refactoring opportunities.", path),
			Priority:     2,
			TurnBudget:   4,
			ToolsAllowed: readOnlyTools[:3],
		},
		{
			ID:           "docs_test_analysis",
			Description:  "Documentation & Testing Analysis",
			Prompt:       fmt.Sprintf("Analyze documentation coverage and testing strategies in %s. Identify gaps and improvement opportunities.", path),
			Priority:     1,
			TurnBudget:   3,
			ToolsAllowed: readOnlyTools[:3],
		},
	}

	if n <= 0 || n > len(tasks) {
		n = len(tasks)
	}
	return tasks[:n]
}

// FeatureDevelopment returns a coordinated pipeline for one feature:
// design, then implementation, then tests and docs in parallel. Ids
// share a random prefix so repeated invocations do not collide.
func FeatureDevelopment(description string) []*scheduler.Task {
	base := uuid.NewString()[:8]

	return []*scheduler.Task{
		{
			ID:           base + "_design",
			Description:  "Feature Design",
			Prompt:       fmt.Sprintf("Design the architecture and API for this feature: %s. Create detailed specifications.", description),
			Priority:     3,
			TurnBudget:   5,
			ToolsAllowed: []string{"Read", "Write", "Glob", "Grep"},
		},
		{
			ID:           base + "_implementation",
			Description:  "Implementation",
			Prompt:       fmt.Sprintf("Implement the core functionality for: %s. Follow the design specifications.", description),
			Priority:     2,
			TurnBudget:   8,
			DependsOn:    []string{base + "_design"},
			ToolsAllowed: []string{"Read", "Write", "Edit", "Glob", "Grep"},
		},
		{
			ID:           base + "_tests",
			Description:  "Test Creation",
			Prompt:       fmt.Sprintf("Create comprehensive tests for the feature: %s", description),
			Priority:     2,
			TurnBudget:   5,
			DependsOn:    []string{base + "_implementation"},
			ToolsAllowed: []string{"Read", "Write", "Edit", "Glob", "Grep"},
		},
		{
			ID:           base + "_docs",
			Description:  "Documentation",
			Prompt:       fmt.Sprintf("Create documentation for the feature: %s", description),
			Priority:     1,
			TurnBudget:   3,
			DependsOn:    []string{base + "_implementation"},
			ToolsAllowed: []string{"Read", "Write", "Edit"},
		},
	}
}
