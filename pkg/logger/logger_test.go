package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/researcher/pkg/logger"
)

func decode(buf *bytes.Buffer) map[string]any {
	var record map[string]any
	ExpectWithOffset(1, json.Unmarshal(buf.Bytes(), &record)).To(Succeed())
	return record
}

// failingHandler accepts every record and fails to write it.
type failingHandler struct{ slog.Handler }

func (failingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("closed") }

var _ = Describe("New", func() {
	var buf *bytes.Buffer

	BeforeEach(func() {
		buf = &bytes.Buffer{}
	})

	It("logs text at info level by default", func() {
		l := logger.New(logger.WithWriter(buf))
		l.Debug("hidden")
		l.Info("indexed", "chunks", 3)
		Expect(buf.String()).NotTo(ContainSubstring("hidden"))
		Expect(buf.String()).To(ContainSubstring("indexed"))
		Expect(buf.String()).To(ContainSubstring("chunks=3"))
	})

	It("logs debug records with WithDebug", func() {
		logger.New(logger.WithWriter(buf), logger.WithDebug(true)).Debug("cache hit")
		Expect(buf.String()).To(ContainSubstring("cache hit"))
	})

	It("logs JSON", func() {
		logger.New(logger.WithWriter(buf), logger.WithJSON(true)).Info("search", "k", 20)
		record := decode(buf)
		Expect(record["msg"]).To(Equal("search"))
		Expect(record["k"]).To(BeNumerically("==", 20))
	})

	It("reports the caller with WithSource", func() {
		logger.New(logger.WithWriter(buf), logger.WithJSON(true), logger.WithSource(true)).Info("x")
		Expect(decode(buf)).To(HaveKey("source"))
	})

	It("prefixes pretty output", func() {
		l := logger.New(logger.WithWriter(buf), logger.WithPretty(true), logger.WithPrefix("index"))
		l.Info("loading")
		Expect(buf.String()).To(ContainSubstring("index"))
		Expect(buf.String()).To(ContainSubstring("loading"))
	})

	It("keeps attributes and groups of child loggers", func() {
		l := logger.New(logger.WithWriter(buf), logger.WithJSON(true))
		l.With("provider", "openai").WithGroup("usage").Info("answered", "prompt_tokens", 100)

		record := decode(buf)
		Expect(record["provider"]).To(Equal("openai"))
		Expect(record["usage"]).To(HaveKeyWithValue("prompt_tokens", BeNumerically("==", 100)))
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		h := logger.Nop().Handler()
		Expect(h.Enabled(context.Background(), slog.LevelError)).To(BeFalse())
		Expect(func() { logger.Nop().With("k", "v").WithGroup("g").Info("msg") }).NotTo(Panic())
	})
})

var _ = Describe("Multi", func() {
	It("writes each record to every logger", func() {
		var text, js bytes.Buffer
		multi := logger.Multi(
			logger.New(logger.WithWriter(&text)),
			logger.New(logger.WithWriter(&js), logger.WithJSON(true)),
		)
		multi.With("addr", ":8081").Info("listening")

		Expect(text.String()).To(ContainSubstring("listening"))
		Expect(decode(&js)).To(HaveKeyWithValue("addr", ":8081"))
	})

	It("honours each logger's level", func() {
		var quiet, verbose bytes.Buffer
		multi := logger.Multi(
			logger.New(logger.WithWriter(&quiet)),
			logger.New(logger.WithWriter(&verbose), logger.WithDebug(true)),
		)
		multi.Debug("detail")

		Expect(quiet.String()).To(BeEmpty())
		Expect(verbose.String()).To(ContainSubstring("detail"))
	})

	It("still writes to the others when one handler fails", func() {
		var buf bytes.Buffer
		multi := logger.Multi(
			slog.New(failingHandler{}),
			logger.New(logger.WithWriter(&buf), logger.WithJSON(true)),
		)
		multi.Info("after failure")
		Expect(decode(&buf)).To(HaveKeyWithValue("msg", "after failure"))

		err := multi.Handler().Handle(context.Background(), slog.NewRecord(
			time.Now(), slog.LevelInfo, "direct", 0))
		Expect(err).To(MatchError("closed"))
	})
})
