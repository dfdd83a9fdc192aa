package kvstore

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"rsc.io/ordered"

	"github.com/mengzui/Pinq/internal/value"
)

// ErrUnsupportedValue is returned for elements outside the element model.
var ErrUnsupportedValue = errors.New("unsupported element value")

// encodeKey encodes a sequence number so byte order equals numeric order.
func encodeKey(seq uint64) []byte {
	return ordered.Encode(seq)
}

// decodeKey is the inverse of encodeKey.
func decodeKey(data []byte) (uint64, error) {
	decoded, err := ordered.DecodeAny(data)
	if err != nil {
		return 0, fmt.Errorf("decode key: %w", err)
	}
	if len(decoded) != 1 {
		return 0, fmt.Errorf("decode key: %d components", len(decoded))
	}
	seq, ok := decoded[0].(uint64)
	if !ok {
		return 0, fmt.Errorf("decode key: unexpected %T", decoded[0])
	}
	return seq, nil
}

// encodeValue normalizes v and encodes it with msgpack.
func encodeValue(v any) ([]byte, error) {
	n := value.Normalize(v)
	if err := checkEncodable(n); err != nil {
		return nil, err
	}
	return msgpack.Marshal(n)
}

// decodeValue decodes a msgpack element into the element model.
func decodeValue(data []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return value.Normalize(v), nil
}

func checkEncodable(v any) error {
	switch val := v.(type) {
	case nil, bool, int64, float64, string, []byte:
		return nil
	case []any:
		for _, elem := range val {
			if err := checkEncodable(elem); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for _, elem := range val {
			if err := checkEncodable(elem); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}
