package agentid

import (
	"encoding/json"
	"fmt"
)

// CanonicalJSON renders v as compact JSON with object keys sorted, the
// representation issuer signatures are computed over. Marshaling through a
// map gives sorted keys at every level.
func CanonicalJSON(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to rebuild value: %w", err)
	}

	canonical, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create canonical json: %w", err)
	}
	return canonical, nil
}

// CanonicalPayload is the canonical JSON of a credential payload with the
// signature field removed. This is the exact byte string an issuer signs.
func CanonicalPayload(p *CredentialPayload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var rawMap map[string]interface{}
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return nil, fmt.Errorf("failed to rebuild payload: %w", err)
	}
	delete(rawMap, "signature")

	canonical, err := json.Marshal(rawMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create canonical payload: %w", err)
	}
	return canonical, nil
}
