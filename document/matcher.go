package document

import (
	"fmt"
	"strings"

	"github.com/kokukuma/mdoc-wallet/mdoc"
)

// Reserved constraint paths a verifier uses to pin the document type and
// namespace of the credential it is asking for.
const (
	docTypePath     = "$.mdoc.doctype"
	namespacePath   = "$.mdoc.namespace"
	fieldPathPrefix = "$.mdoc."
)

// MatchDefinition maps a presentation definition to the elements it
// requests. Only the first input descriptor is consulted; additional
// descriptors are ignored. Returns nil when the descriptor carries no
// usable doctype or namespace constraint.
func MatchDefinition(pd PresentationDefinition) Elements {
	if len(pd.InputDescriptors) == 0 {
		return nil
	}
	fields := pd.InputDescriptors[0].Constraints.Fields

	docType, ok := literalConstraint(fields, docTypePath)
	if !ok {
		return nil
	}
	namespace, ok := literalConstraint(fields, namespacePath)
	if !ok {
		return nil
	}

	elems := []mdoc.ElementIdentifier{}
	for _, field := range fields {
		// Only constraints that carry intent_to_retain name data elements;
		// the sentinel constraints above never do.
		if field.IntentToRetain == nil {
			continue
		}
		for _, path := range field.Path {
			if path == docTypePath || path == namespacePath {
				continue
			}
			if strings.HasPrefix(path, fieldPathPrefix) {
				elems = append(elems, mdoc.ElementIdentifier(strings.TrimPrefix(path, fieldPathPrefix)))
				break
			}
		}
	}

	return Elements{
		mdoc.DocType(docType): {
			mdoc.NameSpace(namespace): elems,
		},
	}
}

func literalConstraint(fields []PathField, sentinel string) (string, bool) {
	for _, field := range fields {
		for _, path := range field.Path {
			if path != sentinel {
				continue
			}
			if field.Filter == nil || field.Filter.Const == nil {
				return "", false
			}
			// The literal is cast to a string whatever its JSON type.
			value, ok := field.Filter.Const.(string)
			if !ok {
				value = fmt.Sprintf("%v", field.Filter.Const)
			}
			if value == "" {
				return "", false
			}
			return value, true
		}
	}
	return "", false
}
