package registry

import (
	"encoding/json"
	"testing"

	"github.com/angelmondragon/autoparts-backend/pkg/enums"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventInventoryImported, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded map[string]int
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"created":3}`)
	output, err := reg.Decode(enums.EventInventoryImported, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]int); !ok || outMap["created"] != 3 {
		t.Fatalf("unexpected output %+v", output)
	}

	if _, err := reg.Decode(enums.EventInventoryImported, 2, input); err == nil {
		t.Fatal("expected missing version to fail")
	}
}
