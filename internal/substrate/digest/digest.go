// Package digest decodes the SCALE-encoded log items of a header digest.
//
// Each item is a variant byte followed by its fields. PreRuntime, Consensus
// and Seal carry a 4-byte engine id and a compact-length-prefixed payload.
// Other carries only the payload.
package digest

import (
	"chainbal/internal/fault"
	"chainbal/internal/substrate/hexutil"
	"chainbal/internal/substrate/scale"
)

type Kind string

const (
	KindOther                     Kind = "other"
	KindConsensus                 Kind = "consensus"
	KindSeal                      Kind = "seal"
	KindPreRuntime                Kind = "pre_runtime"
	KindRuntimeEnvironmentUpdated Kind = "runtime_environment_updated"
	KindUnknown                   Kind = "unknown"
)

const (
	variantOther                     = 0
	variantConsensus                 = 4
	variantSeal                      = 5
	variantPreRuntime                = 6
	variantRuntimeEnvironmentUpdated = 8

	engineIDSize = 4
)

// Item is one decoded digest log. Unknown variants keep the bytes after the
// variant byte as Payload.
type Item struct {
	Kind    Kind
	Variant byte
	Engine  string
	Payload []byte
}

// Decode parses one hex-encoded digest log.
func Decode(log string) (Item, error) {
	raw, err := hexutil.Decode(log)
	if err != nil {
		return Item{}, err
	}
	if len(raw) == 0 {
		return Item{}, fault.Decodef("digest item", "empty log")
	}

	item := Item{Variant: raw[0]}
	switch raw[0] {
	case variantPreRuntime, variantConsensus, variantSeal:
		item.Kind = engineKind(raw[0])
		if len(raw) < 1+engineIDSize {
			return Item{}, fault.Decodef("digest item", "%s log of %d bytes has no engine id", item.Kind, len(raw))
		}
		item.Engine = string(raw[1 : 1+engineIDSize])
		item.Payload, err = payload(raw, 1+engineIDSize)
	case variantOther:
		item.Kind = KindOther
		item.Payload, err = payload(raw, 1)
	case variantRuntimeEnvironmentUpdated:
		item.Kind = KindRuntimeEnvironmentUpdated
		if len(raw) != 1 {
			err = fault.Decodef("digest item", "%d trailing bytes", len(raw)-1)
		}
	default:
		item.Kind = KindUnknown
		item.Payload = raw[1:]
	}
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// DecodeAll parses logs in order and stops at the first malformed one.
func DecodeAll(logs []string) ([]Item, error) {
	items := make([]Item, 0, len(logs))
	for _, log := range logs {
		item, err := Decode(log)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func engineKind(variant byte) Kind {
	switch variant {
	case variantPreRuntime:
		return KindPreRuntime
	case variantConsensus:
		return KindConsensus
	default:
		return KindSeal
	}
}

// payload reads a compact length at offset and requires it to cover the rest
// of raw exactly.
func payload(raw []byte, offset int) ([]byte, error) {
	length, start, err := scale.DecodeCompact(raw, offset)
	if err != nil {
		return nil, err
	}
	remaining := len(raw) - start
	if !length.IsInt64() || length.Int64() != int64(remaining) {
		return nil, fault.Decodef("digest item", "payload length %s, have %d bytes", length, remaining)
	}
	return raw[start:], nil
}
