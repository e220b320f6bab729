package config

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/kubev2v/vmware-inventory/pkg/log"
	"go.uber.org/zap"
)

// NewHTTPClient returns the client used for the automation controller and
// asset-management APIs. Every request is logged under name.
func (c *Config) NewHTTPClient(name string) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     false,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !c.VerifySSL,
		},
	}

	return &http.Client{
		Transport: log.NewTransport(transport, zap.L(), name),
		Timeout:   c.HTTPTimeout.Duration,
	}
}
