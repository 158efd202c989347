package proposal

import (
	"bytes"
	"encoding/json"
	"os"
)

// LoadFile reads a batch of ExecutionProposals from a JSON file -- the
// format an upstream optimizer is expected to emit. Unknown fields are
// rejected, matching the strict-decode convention this engine's config
// loaders use for YAML.
func LoadFile(path string) ([]ExecutionProposal, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadBytes(contents)
}

// LoadBytes reads a batch of ExecutionProposals from JSON bytes.
func LoadBytes(contents []byte) ([]ExecutionProposal, error) {
	var proposals []ExecutionProposal

	dec := json.NewDecoder(bytes.NewReader(contents))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&proposals); err != nil {
		return nil, err
	}

	return proposals, nil
}
