// Package scheduler turns an organization snapshot into a linear program
// assigning tasks to agents. It loads the snapshot, resolves category
// inheritance and exclusions, compiles the constraints and reports the
// balancing statistics of a solved assignment.
package scheduler
