package lp

import (
	"strconv"
	"strings"
)

// AffinityVar accumulates the affinity score maximised by the objective.
const AffinityVar = "a"

const assignmentPrefix = "v_a"

// AssignmentVar names the 0/1 variable assigning task to agent.
func AssignmentVar(agentID, taskID int64) string {
	return assignmentPrefix + strconv.FormatInt(agentID, 10) + "_e" + strconv.FormatInt(taskID, 10)
}

// CategoryVar names the total load accumulator of a category.
func CategoryVar(categoryID int64) string {
	return "c_c" + strconv.FormatInt(categoryID, 10)
}

// CategoryAgentVar names the load accumulator of an agent in a category.
func CategoryAgentVar(categoryID, agentID int64) string {
	return CategoryVar(categoryID) + "_a" + strconv.FormatInt(agentID, 10)
}

// ParseAssignmentVar extracts the agent and task ids from an assignment
// variable name.
func ParseAssignmentVar(name string) (agentID, taskID int64, ok bool) {
	rest, found := strings.CutPrefix(name, assignmentPrefix)
	if !found {
		return 0, 0, false
	}
	a, e, found := strings.Cut(rest, "_e")
	if !found {
		return 0, 0, false
	}
	agentID, err := strconv.ParseInt(a, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	taskID, err = strconv.ParseInt(e, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return agentID, taskID, true
}

// FormatNumber renders f in the shortest form that parses back exactly.
func FormatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
