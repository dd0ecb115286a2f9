package httpx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

const dateLayout = "2006-01-02"

func pathVar(req *http.Request, name string) string {
	return mux.Vars(req)[name]
}

// listOptions reads page, limit, sortBy and sortOrder from the query string.
// Services normalise and validate the result.
func listOptions(req *http.Request) (repository.ListOptions, error) {
	q := req.URL.Query()
	verr := &domain.ValidationError{}
	opts := repository.ListOptions{
		SortBy:    q.Get("sortBy"),
		SortOrder: repository.SortOrder(q.Get("sortOrder")),
	}
	opts.Page = queryInt(q.Get("page"), "page", verr)
	opts.Limit = queryInt(q.Get("limit"), "limit", verr)
	if err := verr.Err(); err != nil {
		return repository.ListOptions{}, err
	}
	return opts, nil
}

func queryInt(raw, field string, verr *domain.ValidationError) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		verr.Add(field, "must be an integer")
		return 0
	}
	return n
}

func queryBool(raw, field string, verr *domain.ValidationError) *bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		verr.Add(field, "must be true or false")
		return nil
	}
	return &b
}

// flexTime accepts either a calendar date or an RFC 3339 timestamp.
type flexTime time.Time

func (f *flexTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		*f = flexTime(t.UTC())
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("invalid date %q", raw)
	}
	*f = flexTime(t.UTC())
	return nil
}

func (f *flexTime) ptr() *time.Time {
	if f == nil {
		return nil
	}
	t := time.Time(*f)
	return &t
}

// nullableString tells an absent field apart from an explicit null, which
// clears the value.
type nullableString struct {
	set   bool
	value string
}

func (n *nullableString) UnmarshalJSON(data []byte) error {
	n.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.value = ""
		return nil
	}
	return json.Unmarshal(data, &n.value)
}

func (n nullableString) ptr() *string {
	if !n.set {
		return nil
	}
	v := n.value
	return &v
}
