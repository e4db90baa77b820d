package store_test

import (
	"testing"

	"github.com/kilianp07/planner/core/store"
	"github.com/kilianp07/planner/core/store/storetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return store.NewMemoryStore() })
}
