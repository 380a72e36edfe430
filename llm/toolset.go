package llm

// structuredOutputToolName is the synthetic tool name adapters bind last,
// after every domain tool, so the model is forced into a structured
// response only once its tool-calling options are already on the table.
const structuredOutputToolName = "emit_structured_output"

// BuildToolset returns the tool list an adapter should bind to the
// provider request, appending a synthetic forced tool for structured_type
// after every domain tool. Binding this tool last (rather than imposing a
// separate structured-output mode ahead of tool binding) is the ordering
// the adapter contract requires; reversing it is the documented defect
// class in spec §4.7.
func BuildToolset(tools []ToolSpec, structuredType *StructuredType) []ToolSpec {
	if structuredType == nil {
		return tools
	}
	out := make([]ToolSpec, 0, len(tools)+1)
	out = append(out, tools...)
	out = append(out, ToolSpec{
		Name:        structuredOutputToolName,
		Description: "Return the final result conforming to " + structuredType.Name + ".",
		Schema:      structuredType.Schema,
	})
	return out
}

// IsStructuredOutputCall reports whether call is the synthetic structured
// output tool call appended by BuildToolset, letting an adapter's response
// conversion route it into Result.Value instead of Result.ToolCalls.
func IsStructuredOutputCall(call ToolCall) bool {
	return call.Name == structuredOutputToolName
}
