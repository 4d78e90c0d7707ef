package httpapi

import "github.com/oapi-codegen/nullable"

// ErrorResponse is the error envelope of every non-2xx JSON response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string                            `json:"code"`
	Message   string                            `json:"message"`
	Details   nullable.Nullable[map[string]any] `json:"details,omitempty"`
	RequestId nullable.Nullable[string]         `json:"requestId,omitempty"`
}

type MemberTypeChoice struct {
	Id    string `json:"id"`
	Label string `json:"label"`
}

type ListMemberTypesResponse struct {
	MemberTypes []MemberTypeChoice `json:"memberTypes"`
}

type FieldRequirementChoice struct {
	Id      string `json:"id"`
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}

type FieldRequirement struct {
	FieldId     int                      `json:"fieldId"`
	IsTypeField bool                     `json:"isTypeField"`
	Configured  bool                     `json:"configured"`
	NoTypes     bool                     `json:"noTypes"`
	Notice      *string                  `json:"notice,omitempty"`
	Choices     []FieldRequirementChoice `json:"choices"`
}

// PutFieldRequirementRequest edits one field. Omitted members are left unchanged;
// requiredTypes null clears the rule.
type PutFieldRequirementRequest struct {
	IsTypeField   nullable.Nullable[bool]     `json:"isTypeField,omitempty"`
	RequiredTypes nullable.Nullable[[]string] `json:"requiredTypes,omitempty"`
	KeepEmpty     *bool                       `json:"keepEmpty,omitempty"`
}

// SignupValidateRequest is the JSON form of a signup submission. Values are treated as
// POST values of the original form.
type SignupValidateRequest struct {
	FieldIds []int             `json:"fieldIds"`
	Values   map[string]string `json:"values"`
	Errors   map[string]string `json:"errors"`
}

type SignupValidateResponse struct {
	MemberType string            `json:"memberType"`
	Errors     map[string]string `json:"errors"`
	Cleared    []string          `json:"cleared"`
}

type RenderField struct {
	FieldId         int  `json:"fieldId"`
	DefaultRequired bool `json:"defaultRequired"`
}

// RenderRequiredRequest asks for the effective requiredness of several fields in one form render.
type RenderRequiredRequest struct {
	Fields []RenderField     `json:"fields"`
	Values map[string]string `json:"values"`
}

type RenderedField struct {
	FieldId  int  `json:"fieldId"`
	Required bool `json:"required"`
}

type RenderRequiredResponse struct {
	Fields []RenderedField `json:"fields"`
}

type FieldRequiredResponse struct {
	FieldId         int  `json:"fieldId"`
	DefaultRequired bool `json:"defaultRequired"`
	Required        bool `json:"required"`
}
