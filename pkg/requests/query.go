package requests

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/ethpandaops/angles-client-go/pkg/model"
)

// query builds URL parameters using the API's literal conventions.
type query url.Values

func newQuery() query {
	return query{}
}

func (q query) str(key, v string) query {
	url.Values(q).Set(key, v)

	return q
}

// optStr sets key only when v is non-empty.
func (q query) optStr(key, v string) query {
	if v != "" {
		q.str(key, v)
	}

	return q
}

// list sets key to the comma-joined values when there are any.
func (q query) list(key string, vs []string) query {
	if len(vs) > 0 {
		q.str(key, strings.Join(vs, ","))
	}

	return q
}

func (q query) num(key string, v int) query {
	return q.str(key, strconv.Itoa(v))
}

func (q query) flag(key string, v bool) query {
	return q.str(key, strconv.FormatBool(v))
}

// date sets key to YYYY-MM-DD when d is non-nil.
func (q query) date(key string, d *model.Date) query {
	if d != nil {
		q.str(key, d.ISO8601())
	}

	return q
}
