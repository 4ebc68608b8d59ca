package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
	"github.com/ErikCohenDev/consensus-council-sub001/schemas"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// responseSchema is the compiled JSON Schema for auditor replies.
var responseSchema *jsonschema.Schema

func init() {
	responseSchema = mustCompileSchema(schemas.AuditorResponseSchemaJSON, "auditor_response.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// Phase names the step of reply parsing that rejected a reply.
type Phase string

const (
	PhaseExtract   Phase = "extract"
	PhaseSchema    Phase = "schema"
	PhaseDecode    Phase = "decode"
	PhaseInvariant Phase = "invariant"
)

// Error is returned when an auditor reply cannot be turned into a valid response.
type Error struct {
	Phase   Phase
	Details []string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case len(e.Details) > 0:
		return fmt.Sprintf("invalid auditor reply (%s): %s", e.Phase, strings.Join(e.Details, "; "))
	case e.Err != nil:
		return fmt.Sprintf("invalid auditor reply (%s): %v", e.Phase, e.Err)
	default:
		return fmt.Sprintf("invalid auditor reply (%s)", e.Phase)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// ValidateResponseBytes validates a JSON document against the auditor response schema.
// It returns one message per failing leaf, prefixed with the instance location.
func ValidateResponseBytes(data []byte) []string {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return []string{fmt.Sprintf("JSON parse error: %v", err)}
	}
	return validateAgainstSchema(responseSchema, doc)
}

// ParseAuditorResponse extracts, schema-validates, decodes and checks one reply.
func ParseAuditorResponse(reply string) (*models.AuditorResponse, error) {
	payload, err := ExtractJSON(reply)
	if err != nil {
		return nil, &Error{Phase: PhaseExtract, Err: err}
	}
	if errs := ValidateResponseBytes(payload); len(errs) > 0 {
		return nil, &Error{Phase: PhaseSchema, Details: errs}
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	var resp models.AuditorResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, &Error{Phase: PhaseDecode, Err: err}
	}
	if err := resp.Validate(); err != nil {
		return nil, &Error{Phase: PhaseInvariant, Err: err}
	}
	return &resp, nil
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}
