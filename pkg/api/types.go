// Package api holds the JSON wire types of the translation service.
// The same contract is spoken by the public HTTP API and between federated
// instances, so both the server and the federation client use these types.
package api

// TranslationRequest is the body of POST /translation.
// SourceLanguage is optional; when empty the language is detected.
type TranslationRequest struct {
	Texts          []string `json:"texts"`
	TargetLanguage string   `json:"targetLanguage"`
	SourceLanguage string   `json:"sourceLanguage,omitempty"`
}

// TranslationResponse is the body returned by POST /translation.
type TranslationResponse struct {
	Texts []string `json:"texts"`
}

// DetectionRequest is the body of POST /detection.
type DetectionRequest struct {
	Text string `json:"text"`
}

// DetectionResponse carries the detected language code.
type DetectionResponse struct {
	Text string `json:"text"`
}

// LanguagesRequest is the body of POST /languages.
// BaseLanguage is a pointer so a missing field can be told apart from "".
type LanguagesRequest struct {
	BaseLanguage *string `json:"baseLanguage"`
}

// LanguagesResponse lists languages mutually reachable with the base language.
type LanguagesResponse struct {
	Languages []string `json:"languages"`
}

// ModelsResponse lists the backend identifiers served by an instance.
type ModelsResponse struct {
	Models []string `json:"models"`
}

// HealthResponse is returned by GET|POST /health.
type HealthResponse struct {
	Healthy          bool `json:"healthy"`
	ServiceAvailable bool `json:"serviceAvailable"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
