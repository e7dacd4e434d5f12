package server

import (
	"net/http"
	"net/http/httptest"
)

func httpRecorder(h http.Handler, target string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "192.0.2.10:4000"
	h.ServeHTTP(w, req)
	return w.Code
}
