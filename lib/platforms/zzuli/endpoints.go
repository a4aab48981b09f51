package zzuli

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultPortal   = "https://campus.zzuli.edu.cn/portal-pc"
	DefaultCAS      = "https://kys.zzuli.edu.cn/cas"
	DefaultJWGL     = "https://jwgl.zzuli.edu.cn"
	DefaultQRSocket = "wss://campus.zzuli.edu.cn/portal-pc/websocket/"
)

// Endpoints are the base urls of every system a run talks to, they are kept
// without a trailing slash (except QRSocket which is a prefix for the uuid).
type Endpoints struct {
	Portal string `json:"portal"`
	CAS    string `json:"cas"`
	JWGL   string `json:"jwgl"`
	// Service is the callback the CAS issues its service ticket for.
	Service  string `json:"service"`
	QRSocket string `json:"qr_socket"`
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Portal:   DefaultPortal,
		CAS:      DefaultCAS,
		JWGL:     DefaultJWGL,
		Service:  DefaultPortal + "/login/pcLogin",
		QRSocket: DefaultQRSocket,
	}
}

// Normalize fills in empty endpoints with their defaults (the service callback
// follows the portal) and validates every one of them.
func (e Endpoints) Normalize() (Endpoints, error) {
	defaults := DefaultEndpoints()
	if e.Portal == "" {
		e.Portal = defaults.Portal
	}
	if e.CAS == "" {
		e.CAS = defaults.CAS
	}
	if e.JWGL == "" {
		e.JWGL = defaults.JWGL
	}
	e.Portal = strings.TrimRight(e.Portal, "/")
	e.CAS = strings.TrimRight(e.CAS, "/")
	e.JWGL = strings.TrimRight(e.JWGL, "/")
	if e.Service == "" {
		e.Service = e.Portal + "/login/pcLogin"
	}
	if e.QRSocket == "" {
		e.QRSocket = defaults.QRSocket
	}
	if !strings.HasSuffix(e.QRSocket, "/") {
		e.QRSocket += "/"
	}

	for name, value := range map[string]string{
		"portal":    e.Portal,
		"cas":       e.CAS,
		"jwgl":      e.JWGL,
		"service":   e.Service,
		"qr_socket": e.QRSocket,
	} {
		parsed, err := url.Parse(value)
		if err != nil {
			return Endpoints{}, fmt.Errorf("endpoint %s: %w", name, err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return Endpoints{}, fmt.Errorf("endpoint %s: %q is not an absolute url", name, value)
		}
	}
	return e, nil
}
