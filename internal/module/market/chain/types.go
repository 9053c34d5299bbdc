package chain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
)

// Collection is the decoded, presentation-ready view of an on-chain
// collection. Serialized as-is into the preset store.
type Collection struct {
	ID             string                 `json:"id"`
	Owner          string                 `json:"owner"` // SS58 encoded
	Mode           string                 `json:"mode"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	TokenPrefix    string                 `json:"tokenPrefix"`
	OffchainSchema string                 `json:"offchainSchema"`
	Schema         map[string]interface{} `json:"schema,omitempty"` // decoded form of OffchainSchema
	SchemaVersion  string                 `json:"schemaVersion"`
	Sponsor        string                 `json:"sponsor,omitempty"`
}

// CollectionMode mirrors the runtime enum. Only one flag is set.
type CollectionMode struct {
	IsInvalid    bool
	IsNFT        bool
	IsFungible   bool
	Decimals     types.U32
	IsReFungible bool
}

func (m *CollectionMode) Decode(decoder scale.Decoder) error {
	b, err := decoder.ReadOneByte()
	if err != nil {
		return err
	}

	switch b {
	case 0:
		m.IsInvalid = true
	case 1:
		m.IsNFT = true
	case 2:
		m.IsFungible = true
		return decoder.Decode(&m.Decimals)
	case 3:
		m.IsReFungible = true
	default:
		return fmt.Errorf("unknown collection mode variant: %d", b)
	}

	return nil
}

func (m CollectionMode) Encode(encoder scale.Encoder) error {
	switch {
	case m.IsInvalid:
		return encoder.PushByte(0)
	case m.IsNFT:
		return encoder.PushByte(1)
	case m.IsFungible:
		if err := encoder.PushByte(2); err != nil {
			return err
		}
		return encoder.Encode(m.Decimals)
	case m.IsReFungible:
		return encoder.PushByte(3)
	default:
		return fmt.Errorf("collection mode has no variant set")
	}
}

func (m CollectionMode) String() string {
	switch {
	case m.IsNFT:
		return "NFT"
	case m.IsFungible:
		return "Fungible"
	case m.IsReFungible:
		return "ReFungible"
	default:
		return "Invalid"
	}
}

// onChainCollection is the raw SCALE layout of the collection storage value.
type onChainCollection struct {
	Owner              types.AccountID
	Mode               CollectionMode
	Access             types.U8
	DecimalPoints      types.U32
	Name               []types.U16
	Description        []types.U16
	TokenPrefix        types.Bytes
	MintMode           types.Bool
	OffchainSchema     types.Bytes
	SchemaVersion      types.U8
	Sponsor            types.AccountID
	UnconfirmedSponsor types.AccountID
}

func decodeUTF16(units []types.U16) string {
	raw := make([]uint16, 0, len(units))
	for _, u := range units {
		if u == 0 {
			break
		}
		raw = append(raw, uint16(u))
	}
	return string(utf16.Decode(raw))
}

// DecodeOnChainSchema turns the hex-encoded schema blob stored on chain into
// its JSON object form.
func DecodeOnChainSchema(blob string) (map[string]interface{}, error) {
	trimmed := strings.TrimPrefix(blob, "0x")

	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		// some collections store the schema as plain JSON, not hex
		raw = []byte(blob)
	}

	var schema map[string]interface{}
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("failed to decode on-chain schema: %v", err)
	}

	return schema, nil
}
