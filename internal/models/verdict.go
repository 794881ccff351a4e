package models

// Verdict is the uniform result of checking a single request
type Verdict struct {
	StatusCode int `json:"status_code"`
	Data       any `json:"data"`
}

// Failed reports whether the verdict carries an error status
func (v Verdict) Failed() bool {
	return v.StatusCode >= 400
}
