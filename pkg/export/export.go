// Package export renders the assignment of a schedule run as JSON or CSV.
package export

import (
	"cmp"
	"encoding/csv"
	"encoding/json"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/kilianp07/planner/core/model"
)

// Entry is one task of a run with the agent it was given.
type Entry struct {
	RunID   string    `json:"run_id"`
	TaskID  int64     `json:"task_id"`
	Task    string    `json:"task"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	AgentID int64     `json:"agent_id"`
	Agent   string    `json:"agent"`
	Fixed   bool      `json:"fixed"`
}

// Entries joins the run result with the names found in snap, ordered by
// task start then task id. Tasks or agents missing from snap keep their id
// and an empty name.
func Entries(snap model.Snapshot, run model.ScheduleRun) []Entry {
	agents := make(map[int64]string, len(snap.Agents))
	for _, a := range snap.Agents {
		agents[a.ID] = a.Name
	}
	tasks := make(map[int64]model.Task, len(snap.Tasks))
	for _, t := range snap.Tasks {
		tasks[t.ID] = t
	}
	out := make([]Entry, 0, run.Result.Tasks())
	for agent, ids := range run.Result {
		for _, id := range ids {
			t := tasks[id]
			out = append(out, Entry{
				RunID:   run.ID,
				TaskID:  id,
				Task:    t.Name,
				Start:   t.Start,
				End:     t.End,
				AgentID: agent,
				Agent:   agents[agent],
				Fixed:   t.Fixed,
			})
		}
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if n := a.Start.Compare(b.Start); n != 0 {
			return n
		}
		return cmp.Compare(a.TaskID, b.TaskID)
	})
	return out
}

// WriteJSON writes the entries to w in JSON format.
func WriteJSON(w io.Writer, entries []Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// WriteCSV writes the entries to w in CSV format with a header row.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"run_id", "task_id", "task", "start", "end", "agent_id", "agent", "fixed"}); err != nil {
		return err
	}
	for _, e := range entries {
		rec := []string{
			e.RunID,
			strconv.FormatInt(e.TaskID, 10),
			e.Task,
			e.Start.Format(time.RFC3339),
			e.End.Format(time.RFC3339),
			strconv.FormatInt(e.AgentID, 10),
			e.Agent,
			strconv.FormatBool(e.Fixed),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
