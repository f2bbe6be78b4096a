package httpapi

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// maxBodyBytes caps request bodies; every request here is a small JSON object.
const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body required")

// readBody reads and returns the request body, enforcing the size cap.
func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if len(data) == 0 {
		return nil, errEmptyBody
	}
	return data, nil
}

// decodeObj decodes a top-level JSON object, dispatching each key to fn.
func decodeObj(data []byte, fn func(d *jx.Decoder, key string) error) error {
	d := jx.DecodeBytes(data)
	return d.Obj(fn)
}

// writeJSON sends the encoder's buffer with the given status code.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
