package api

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/qri-io/jsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const maxBodySize = 64 * 1024

var (
	createAssignmentSchema = mustSchema("assignment_create.json")
	updateAssignmentSchema = mustSchema("assignment_update.json")
	evaluatorSchema        = mustSchema("evaluator.json")
	ndaSchema              = mustSchema("nda.json")
	establishmentSchema    = mustSchema("establishment.json")
)

func mustSchema(name string) *jsonschema.Schema {
	b, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("read schema %s: %v", name, err))
	}
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal(b, rs); err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return rs
}

// decodeBody reads the request body, validates it against schema and decodes
// it into v. On failure it writes a 400 and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		badRequest(w, "read body failed")
		return false
	}
	if len(body) > maxBodySize {
		badRequest(w, "request body too large")
		return false
	}
	if !json.Valid(body) {
		badRequest(w, "invalid json")
		return false
	}

	verrs, err := schema.ValidateBytes(r.Context(), body)
	if err != nil {
		badRequest(w, fmt.Sprintf("validate body: %v", err))
		return false
	}
	if len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, strings.TrimSpace(e.PropertyPath+" "+e.Message))
		}
		badRequest(w, strings.Join(msgs, "; "))
		return false
	}

	if err := json.Unmarshal(body, v); err != nil {
		badRequest(w, "invalid json")
		return false
	}
	return true
}
