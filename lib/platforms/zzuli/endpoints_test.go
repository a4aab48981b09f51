package zzuli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	e, err := Endpoints{}.Normalize()
	require.NoError(t, err)
	require.Equal(t, DefaultEndpoints(), e)

	e, err = Endpoints{
		Portal:   "http://127.0.0.1:8080/portal-pc/",
		QRSocket: "ws://127.0.0.1:8080/portal-pc/websocket",
	}.Normalize()
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8080/portal-pc", e.Portal)
	require.Equal(t, "http://127.0.0.1:8080/portal-pc/login/pcLogin", e.Service)
	require.Equal(t, "ws://127.0.0.1:8080/portal-pc/websocket/", e.QRSocket)
	require.Equal(t, DefaultCAS, e.CAS)

	_, err = Endpoints{JWGL: "jwgl.zzuli.edu.cn"}.Normalize()
	require.Error(t, err)
}
