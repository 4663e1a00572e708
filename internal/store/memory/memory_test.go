package memory_test

import (
	. "github.com/onsi/ginkgo/v2"

	"chatconnect.app/assistant/internal/store"
	"chatconnect.app/assistant/internal/store/memory"
	"chatconnect.app/assistant/internal/store/storetest"
)

var _ = Describe("Store", func() {
	storetest.ItBehavesLikeAStore(func() store.Store {
		return memory.New()
	})
})
