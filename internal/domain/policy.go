package domain

type PolicyInput struct {
	Identity     string    `json:"identity"`
	Method       string    `json:"method"`
	KeySource    KeySource `json:"key_source"`
	KeyID        string    `json:"key_id,omitempty"`
	Algorithm    string    `json:"algorithm"`
	AllowRawKeys bool      `json:"allow_raw_keys"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleHash string       `json:"bundle_hash,omitempty"`
	Result     PolicyResult `json:"result"`
}
