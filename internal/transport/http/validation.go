package httptransport

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xeipuuv/gojsonschema"

	"dispatch-service/internal/apperr"
)

const maxBodyBytes = 1 << 20

var (
	assignSchema = mustSchema(`{
		"type": "object",
		"required": ["job_id", "technician_id"],
		"properties": {
			"job_id":        {"type": "string", "format": "uuid"},
			"technician_id": {"type": "string", "format": "uuid"}
		},
		"additionalProperties": false
	}`)

	updateJobSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"status":            {"type": "string", "minLength": 1},
			"priority":          {"type": "string", "minLength": 1},
			"trade_type":        {"type": "string", "minLength": 1},
			"scheduled_start":   {"type": "string", "format": "date-time"},
			"scheduled_end":     {"type": "string", "format": "date-time"},
			"time_window_start": {"type": "string", "format": "date-time"},
			"time_window_end":   {"type": "string", "format": "date-time"}
		},
		"additionalProperties": false
	}`)

	technicianStatusSchema = mustSchema(`{
		"type": "object",
		"required": ["status"],
		"properties": {
			"status": {"type": "string", "minLength": 1}
		},
		"additionalProperties": false
	}`)

	locationSchema = mustSchema(`{
		"type": "object",
		"required": ["lat", "lng"],
		"properties": {
			"lat": {"type": "number", "minimum": -90,  "maximum": 90},
			"lng": {"type": "number", "minimum": -180, "maximum": 180}
		},
		"additionalProperties": false
	}`)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(errors.Wrap(err, "compile request schema"))
	}
	return s
}

// decode checks the request body against schema and unmarshals it into dst.
// Every failure is a validation error.
func decode(r *http.Request, schema *gojsonschema.Schema, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apperr.Validationf("read body: %v", err)
	}
	if len(body) == 0 {
		return apperr.Validationf("request body is required")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return apperr.Validationf("invalid json")
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			msgs[i] = desc.String()
		}
		return apperr.Validationf("%s", strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Validationf("invalid json: %v", err)
	}
	return nil
}
