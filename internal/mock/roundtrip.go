package mock

import (
	"net/http"
	"net/http/httptest"
)

// RoundTripper serves requests in-process against Handler, so the client's
// transport runs unchanged without a listening socket.
type RoundTripper struct {
	Handler http.Handler
}

func (rt RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		rt.Handler.ServeHTTP(rec, req)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}
