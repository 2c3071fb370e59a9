package storage

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed snapshot_schema.json
var snapshotSchemaJSON string

var snapshotSchema = jsonschema.MustCompileString("snapshot_schema.json", snapshotSchemaJSON)

// ValidateSnapshotJSON checks a serialized snapshot against the wire-format
// contract. Consumers of the archive files and the live feed rely on this
// shape staying stable.
func ValidateSnapshotJSON(raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("snapshot is not valid JSON: %w", err)
	}
	if err := snapshotSchema.Validate(doc); err != nil {
		return fmt.Errorf("snapshot violates contract: %w", err)
	}
	return nil
}
