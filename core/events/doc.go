// Package events defines the scheduling events emitted on the event bus.
//
// Available event types:
//   - RunEvent: a schedule run changed status
//   - ApplyEvent: a run was written back to the store
//   - BalanceEvent: per category load of a successful run
package events
