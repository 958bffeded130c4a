package qdrant

import (
	"context"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/researcher/pkg/logger"
)

var _ = Describe("Qdrant driver", func() {
	Describe("PointID", func() {
		It("is a stable UUID per document ID", func() {
			id := PointID("doc_1_chunk_0")
			Expect(uuid.Validate(id)).To(Succeed())
			Expect(PointID("doc_1_chunk_0")).To(Equal(id))
			Expect(PointID("doc_1_chunk_1")).NotTo(Equal(id))
		})
	})

	Describe("parseTarget", func() {
		DescribeTable("targets",
			func(target, host string, port int, tls bool) {
				cfg, err := parseTarget(target)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Host).To(Equal(host))
				Expect(cfg.Port).To(Equal(port))
				Expect(cfg.UseTLS).To(Equal(tls))
			},
			Entry("empty", "", "localhost", DefaultPort, false),
			Entry("bare host", "qdrant", "qdrant", DefaultPort, false),
			Entry("host and port", "qdrant:7000", "qdrant", 7000, false),
			Entry("https URL", "https://xyz.cloud.qdrant.io:6334", "xyz.cloud.qdrant.io", 6334, true),
		)

		It("rejects a bad port", func() {
			_, err := parseTarget("qdrant:abc")
			Expect(err).To(HaveOccurred())
		})
	})

	It("reads the document ID from the payload", func() {
		payload := qc.NewValueMap(map[string]any{idPayloadKey: "doc_2_chunk_3"})
		Expect(docID(payload)).To(Equal("doc_2_chunk_3"))
		Expect(docID(nil)).To(BeEmpty())
	})

	It("requires dimensions", func() {
		_, err := NewDriver(context.Background(), Config{}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("dimensions")))
	})
})
