package document

// https://identity.foundation/presentation-exchange/spec/v2.0.0/

type PresentationDefinition struct {
	ID               string            `json:"id"`
	InputDescriptors []InputDescriptor `json:"input_descriptors"`
}

type InputDescriptor struct {
	Name        string      `json:"name,omitempty"`
	ID          string      `json:"id"`
	Format      Format      `json:"format,omitempty"`
	Constraints Constraints `json:"constraints"`
	Purpose     string      `json:"purpose,omitempty"`
	Group       []string    `json:"group,omitempty"`
}

type Constraints struct {
	LimitDisclosure string      `json:"limit_disclosure,omitempty"`
	Fields          []PathField `json:"fields,omitempty"`
}

type Format struct {
	MsoMdoc MsoMdoc `json:"mso_mdoc,omitempty"`
}

type MsoMdoc struct {
	Alg []string `json:"alg,omitempty"`
}

type PathField struct {
	Path []string `json:"path"`

	// IntentToRetain is a pointer so a field constraint that carries the
	// member at all can be told apart from one that omits it.
	IntentToRetain *bool   `json:"intent_to_retain,omitempty"`
	Filter         *Filter `json:"filter,omitempty"`
	ID             string  `json:"id,omitempty"`
	Purpose        string  `json:"purpose,omitempty"`
	Name           string  `json:"name,omitempty"`
	Optional       bool    `json:"optional,omitempty"`
}

type Filter struct {
	Type    string      `json:"type,omitempty"`
	Pattern string      `json:"pattern,omitempty"`
	Const   interface{} `json:"const,omitempty"`
}
