package utils_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/poucet/noema-sub001/pkg/utils"
)

var _ = Describe("KeyedMutex", func() {
	It("serializes holders of the same key", func() {
		km := utils.NewKeyedMutex()

		counter := 0
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := km.Lock("conv-1")
				defer unlock()
				counter++
			}()
		}
		wg.Wait()

		Expect(counter).To(Equal(50))
	})

	It("lets different keys proceed independently", func() {
		km := utils.NewKeyedMutex()

		unlockA := km.Lock("a")

		done := make(chan struct{})
		go func() {
			unlockB := km.Lock("b")
			unlockB()
			close(done)
		}()

		// Key "b" is not blocked by the holder of "a".
		Eventually(done).Should(BeClosed())
		unlockA()
	})

	It("allows re-acquiring a released key", func() {
		km := utils.NewKeyedMutex()

		unlock := km.Lock("doc-1")
		unlock()

		unlock = km.Lock("doc-1")
		unlock()
	})
})
