package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"FriendsWebServer/internal/domain"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("multiple json values")
		}
		return err
	}
	return nil
}

// pageParams reads skip and limit from the query string. Missing values are
// zero and left for the service to default.
func pageParams(r *http.Request) (skip, limit int, err error) {
	q := r.URL.Query()
	fields := map[string]string{}
	if skip, err = queryInt(q.Get("skip")); err != nil {
		fields["skip"] = "must be an integer"
	}
	if limit, err = queryInt(q.Get("limit")); err != nil {
		fields["limit"] = "must be an integer"
	}
	if len(fields) > 0 {
		return 0, 0, domain.NewValidationError(fields)
	}
	return skip, limit, nil
}

func queryInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
