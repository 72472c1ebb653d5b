package sandbox

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/softnix/agentic-core/internal/agenterr"
)

// actionSchemas holds one compiled JSON schema per known action name,
// used to validate planner-supplied params before dispatch.
//
// Grounded on the teacher's internal/agent/tool_registry.go compileSchema
// pattern (jsonschema.NewCompiler() + AddResource), adapted from
// per-LLM-tool-call schemas to per-plan-action schemas.
var actionSchemas = map[string]*jsonschema.Schema{}

func init() {
	for name, raw := range rawActionSchemas {
		actionSchemas[name] = compileSchema(name, raw)
	}
}

func compileSchema(name, raw string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	resourceName := "mem://" + name + ".json"
	if err := c.AddResource(resourceName, mustJSON(raw)); err != nil {
		panic(fmt.Sprintf("sandbox: invalid schema for %s: %v", name, err))
	}
	schema, err := c.Compile(resourceName)
	if err != nil {
		panic(fmt.Sprintf("sandbox: compile schema for %s: %v", name, err))
	}
	return schema
}

func mustJSON(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		panic(err)
	}
	return v
}

var rawActionSchemas = map[string]string{
	"list_dir": `{"type":"object","properties":{"path":{"type":"string"}}}`,
	"read_file": `{"type":"object","required":["path"],"properties":{"path":{"type":"string"}}}`,
	"write_workspace_file": `{"type":"object","required":["path"],"properties":{
		"path":{"type":"string"},"content":{"type":"string"},
		"mode":{"type":"string","enum":["overwrite","append"]}}}`,
	"run_safe_command": `{"type":"object","required":["command"],"properties":{
		"command":{"type":"string"},"args":{"type":"array","items":{"type":"string"}},
		"stdout_path":{"type":"string"},"stderr_path":{"type":"string"},
		"redirect_output":{"type":"string"},"append":{"type":"boolean"}}}`,
	"run_python_code": `{"type":"object","properties":{
		"code":{"type":"string"},"path":{"type":"string"},"python_bin":{"type":"string"},
		"args":{"type":"array","items":{"type":"string"}},"stdout_path":{"type":"string"}}}`,
	"web_fetch": `{"type":"object","required":["url"],"properties":{
		"url":{"type":"string"},"timeout_sec":{"type":"number"},
		"max_chars":{"type":"number"},"verify_tls":{"type":"boolean"}}}`,
}

// ValidateParams checks action.Params against the schema registered for
// its (alias-normalized) name. Unknown actions are not a schema error here
// -- Execute itself reports "Action not allowed" for those.
func ValidateParams(action Action) error {
	name := normalizeActionName(action.Name)
	schema, ok := actionSchemas[name]
	if !ok {
		return nil
	}
	if err := schema.Validate(map[string]any(action.Params)); err != nil {
		return agenterr.Newf(agenterr.KindValidation, "sandbox.ValidateParams", "%s: %v", name, err)
	}
	return nil
}
