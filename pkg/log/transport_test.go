package log_test

import (
	"net/http"
	"net/http/httptest"

	"github.com/kubev2v/vmware-inventory/pkg/log"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var _ = Describe("client transport", func() {
	var (
		srv  *httptest.Server
		logs *observer.ObservedLogs
		hc   *http.Client
	)

	BeforeEach(func() {
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/missing":
				w.WriteHeader(http.StatusNotFound)
			case "/broken":
				w.WriteHeader(http.StatusBadGateway)
			}
		}))

		var core zapcore.Core
		core, logs = observer.New(zapcore.DebugLevel)
		hc = &http.Client{Transport: log.NewTransport(srv.Client().Transport, zap.New(core), "netbox")}
	})

	AfterEach(func() {
		srv.Close()
	})

	DescribeTable("logs each call at a level matching its status",
		func(path string, level zapcore.Level, label string) {
			resp, err := hc.Get(srv.URL + path)
			Expect(err).To(BeNil())
			_ = resp.Body.Close()

			Expect(logs.Len()).To(Equal(1))
			entry := logs.All()[0]
			Expect(entry.Level).To(Equal(level))
			Expect(entry.LoggerName).To(Equal("netbox"))
			Expect(entry.ContextMap()).To(HaveKeyWithValue("http_path", path))
			Expect(entry.ContextMap()).To(HaveKeyWithValue("http_status_text", label))
		},
		Entry("success", "/ok", zapcore.DebugLevel, "200 OK"),
		Entry("client error", "/missing", zapcore.WarnLevel, "404 Client Error"),
		Entry("server error", "/broken", zapcore.ErrorLevel, "502 Server Error"),
	)

	It("logs transport failures", func() {
		srv.Close()
		_, err := hc.Get(srv.URL + "/gone")
		Expect(err).NotTo(BeNil())

		Expect(logs.FilterMessage("HTTP request failed: /gone").Len()).To(Equal(1))
	})
})

var _ = Describe("levels", func() {
	It("falls back to info for unknown names", func() {
		Expect(log.ParseLevel("chatty").Level()).To(Equal(zapcore.InfoLevel))
		Expect(log.ParseLevel("debug").Level()).To(Equal(zapcore.DebugLevel))
	})

	It("builds loggers for both formats", func() {
		Expect(log.InitLog(zap.NewAtomicLevel(), log.FormatJSON)).NotTo(BeNil())
		Expect(log.InitLog(zap.NewAtomicLevel(), "")).NotTo(BeNil())
	})
})
