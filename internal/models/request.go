package models

// Request represents one client-issued API call taken from a dataset
type Request struct {
	APIName  string         `json:"api_name"`
	URL      string         `json:"url"`
	Method   string         `json:"method"`
	Endpoint string         `json:"endpoint"` // path template, may contain literal {param} placeholders
	Params   map[string]any `json:"params"`
}
