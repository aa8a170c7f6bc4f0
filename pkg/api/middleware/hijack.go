package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

var errHijackUnsupported = errors.New("response writer does not support hijacking")

// The status-capturing wrappers must stay hijackable so the websocket
// upgrade works behind them.

func hijack(w http.ResponseWriter) (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.(http.Hijacker)
	if !ok {
		return nil, nil, errHijackUnsupported
	}
	return h.Hijack()
}

func (aw *accessWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	aw.statusCode = http.StatusSwitchingProtocols
	aw.hijacked = true
	return hijack(aw.ResponseWriter)
}

func (aw *accessWriter) Unwrap() http.ResponseWriter { return aw.ResponseWriter }

func (rw *metricsResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	rw.statusCode = http.StatusSwitchingProtocols
	return hijack(rw.ResponseWriter)
}

func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

func (rw *tracingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	rw.statusCode = http.StatusSwitchingProtocols
	return hijack(rw.ResponseWriter)
}

func (rw *tracingResponseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
