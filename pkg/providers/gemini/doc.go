// Package gemini implements the Google Gemini generateContent adapter.
//
// Requests go to {base}/models/{model}:generateContent with the key in the
// x-goog-api-key header; streams use :streamGenerateContent?alt=sse.
//
// Canonical roles map to Gemini roles: "user" stays "user", everything else
// becomes "model". Content parts map as follows:
//
//   - Text: {text}
//   - ImageRef data URL: {inline_data:{mime_type, data}}
//   - ImageRef http(s) URL: {file_data:{mime_type, file_uri}}
//   - InlineBinary: {inline_data:{mime_type, data}}
//   - FileRef: {file_data:{mime_type, file_uri}}
//
// Params are sent as generationConfig. When thinking is requested,
// generationConfig.thinkingConfig.includeThoughts is set and parts flagged
// as thoughts are returned as reasoning.
package gemini
