package generation

// forbiddenKeys are removed from provider payloads before they leave the process.
var forbiddenKeys = map[string]struct{}{
	"model":         {},
	"provider":      {},
	"internal":      {},
	"system_prompt": {},
	"api_version":   {},
}

// Wrap builds the success envelope for a completed generation. The raw
// payload is sanitized so provider identity never reaches a caller.
func Wrap(output string, sources []SourceItem, raw any) *Result {
	if sources == nil {
		sources = []SourceItem{}
	}
	return &Result{
		Assistant: AssistantName,
		Output:    output,
		Sources:   sources,
		Raw:       Sanitize(raw),
		Status:    StatusOK,
	}
}

// Sanitize removes forbidden keys from the top level of raw and from any
// object directly nested under it. Deeper levels are left as they are.
// Non-object values are returned unchanged, and so is raw itself if
// sanitizing it fails for any reason. Sanitize is idempotent.
func Sanitize(raw any) (out any) {
	defer func() {
		if recover() != nil {
			out = raw
		}
	}()

	top, ok := raw.(map[string]any)
	if !ok {
		return raw
	}

	clean := make(map[string]any, len(top))
	for k, v := range top {
		if _, forbidden := forbiddenKeys[k]; forbidden {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			v = stripForbidden(nested)
		}
		clean[k] = v
	}
	return clean
}

func stripForbidden(m map[string]any) map[string]any {
	clean := make(map[string]any, len(m))
	for k, v := range m {
		if _, forbidden := forbiddenKeys[k]; forbidden {
			continue
		}
		clean[k] = v
	}
	return clean
}
