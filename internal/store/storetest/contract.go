// Package storetest holds the behaviour every store.KV backend must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/procurement-workflow/internal/store"
)

// DescribeContract registers the shared specs. newKV is called before every spec.
func DescribeContract(name string, newKV func() store.KV) bool {
	return Describe(name+" contract", func() {
		var (
			kv  store.KV
			ctx context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			kv = newKV()
		})

		It("reports missing keys as ErrNotFound", func() {
			_, err := kv.Get(ctx, "request:missing")
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("sets, overwrites and gets values", func() {
			Expect(kv.Set(ctx, "request:1", []byte(`{"id":"1"}`))).To(Succeed())
			Expect(kv.Set(ctx, "request:1", []byte(`{"id":"1","v":2}`))).To(Succeed())

			v, err := kv.Get(ctx, "request:1")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(MatchJSON(`{"id":"1","v":2}`))
		})

		It("deletes and counts", func() {
			Expect(kv.Set(ctx, "request:1", []byte(`{}`))).To(Succeed())

			n, err := kv.Del(ctx, "request:1")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			n, err = kv.Del(ctx, "request:1")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(0)))
		})

		It("lists keys by prefix only", func() {
			Expect(kv.Set(ctx, "request:a", []byte(`{}`))).To(Succeed())
			Expect(kv.Set(ctx, "request:b", []byte(`{}`))).To(Succeed())
			Expect(kv.Set(ctx, "requests_total", []byte(`{}`))).To(Succeed())
			Expect(kv.Set(ctx, "session:a", []byte(`{}`))).To(Succeed())

			keys, err := kv.Keys(ctx, "request:")
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(ConsistOf("request:a", "request:b"))
		})

		It("treats wildcard characters in the prefix literally", func() {
			Expect(kv.Set(ctx, "request:a", []byte(`{}`))).To(Succeed())

			keys, err := kv.Keys(ctx, "req%")
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(BeEmpty())

			keys, err = kv.Keys(ctx, "req*")
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(BeEmpty())
		})

		It("returns an empty list for an empty store", func() {
			keys, err := kv.Keys(ctx, "request:")
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(BeEmpty())
		})

		Describe("CompareAndSwap", func() {
			It("creates only when absent", func() {
				ok, err := kv.CompareAndSwap(ctx, "request:1", nil, []byte(`{"v":1}`))
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeTrue())

				ok, err = kv.CompareAndSwap(ctx, "request:1", nil, []byte(`{"v":9}`))
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeFalse())

				v, err := kv.Get(ctx, "request:1")
				Expect(err).NotTo(HaveOccurred())
				Expect(v).To(MatchJSON(`{"v":1}`))
			})

			It("swaps when the stored value still matches", func() {
				Expect(kv.Set(ctx, "request:1", []byte(`{"v":1}`))).To(Succeed())
				prev, err := kv.Get(ctx, "request:1")
				Expect(err).NotTo(HaveOccurred())

				ok, err := kv.CompareAndSwap(ctx, "request:1", prev, []byte(`{"v":2}`))
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeTrue())

				ok, err = kv.CompareAndSwap(ctx, "request:1", prev, []byte(`{"v":3}`))
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeFalse())

				v, err := kv.Get(ctx, "request:1")
				Expect(err).NotTo(HaveOccurred())
				Expect(v).To(MatchJSON(`{"v":2}`))
			})

			It("misses when the key was deleted", func() {
				ok, err := kv.CompareAndSwap(ctx, "request:1", []byte(`{"v":1}`), []byte(`{"v":2}`))
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeFalse())
			})

			It("lets exactly one of several racing writers win", func() {
				Expect(kv.Set(ctx, "request:1", []byte(`{"v":0}`))).To(Succeed())
				prev, err := kv.Get(ctx, "request:1")
				Expect(err).NotTo(HaveOccurred())

				var (
					wg   sync.WaitGroup
					wins int32
				)
				for i := 1; i <= 8; i++ {
					wg.Add(1)
					go func(i int) {
						defer GinkgoRecover()
						defer wg.Done()
						ok, err := kv.CompareAndSwap(ctx, "request:1", prev, []byte(fmt.Sprintf(`{"v":%d}`, i)))
						Expect(err).NotTo(HaveOccurred())
						if ok {
							atomic.AddInt32(&wins, 1)
						}
					}(i)
				}
				wg.Wait()
				Expect(atomic.LoadInt32(&wins)).To(Equal(int32(1)))
			})
		})

		Describe("DeleteIf", func() {
			It("deletes when the stored value still matches", func() {
				Expect(kv.Set(ctx, "request:1", []byte(`{"v":1}`))).To(Succeed())
				prev, err := kv.Get(ctx, "request:1")
				Expect(err).NotTo(HaveOccurred())

				ok, err := kv.DeleteIf(ctx, "request:1", prev)
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeTrue())

				_, err = kv.Get(ctx, "request:1")
				Expect(err).To(MatchError(store.ErrNotFound))
			})

			It("keeps a value written after it was read", func() {
				Expect(kv.Set(ctx, "request:1", []byte(`{"v":1}`))).To(Succeed())
				prev, err := kv.Get(ctx, "request:1")
				Expect(err).NotTo(HaveOccurred())
				Expect(kv.Set(ctx, "request:1", []byte(`{"v":2}`))).To(Succeed())

				ok, err := kv.DeleteIf(ctx, "request:1", prev)
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeFalse())

				v, err := kv.Get(ctx, "request:1")
				Expect(err).NotTo(HaveOccurred())
				Expect(v).To(MatchJSON(`{"v":2}`))
			})

			It("misses when the key is absent", func() {
				ok, err := kv.DeleteIf(ctx, "request:1", []byte(`{"v":1}`))
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeFalse())
			})
		})

		It("answers ping", func() {
			Expect(kv.Ping(ctx)).To(Succeed())
		})
	})
}
