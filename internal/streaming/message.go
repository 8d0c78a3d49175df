package streaming

import (
	"encoding/json"
	"errors"
	"time"

	"chainbal/internal/domain"
)

type MessageType string

const (
	MessageTypeHead    MessageType = "head"
	MessageTypeBalance MessageType = "balance"
)

// Message is the event published for head and balance observations.
// Amounts are decimal strings in minor units.
type Message struct {
	Type            MessageType `json:"type"`
	Network         string      `json:"network"`
	TraceID         string      `json:"trace_id,omitempty"`
	BlockNumber     uint64      `json:"block_number,omitempty"`
	ParentHash      string      `json:"parent_hash,omitempty"`
	FinalizedNumber uint64      `json:"finalized_number,omitempty"`
	FinalizedHash   string      `json:"finalized_hash,omitempty"`
	Address         string      `json:"address,omitempty"`
	PublicKey       string      `json:"public_key,omitempty"`
	Free            string      `json:"free,omitempty"`
	Reserved        string      `json:"reserved,omitempty"`
	AssetID         uint32      `json:"asset_id,omitempty"`
	AssetBalance    string      `json:"asset_balance,omitempty"`
	ObservedAt      time.Time   `json:"observed_at"`
}

func HeadMessage(network string, head domain.ChainHead) Message {
	return Message{
		Type:            MessageTypeHead,
		Network:         network,
		BlockNumber:     head.BestNumber,
		ParentHash:      head.Best.ParentHash,
		FinalizedNumber: head.FinalizedNumber,
		FinalizedHash:   head.FinalizedHash,
		ObservedAt:      head.ObservedAt,
	}
}

func BalanceMessage(network string, snapshot domain.BalanceSnapshot) Message {
	return Message{
		Type:         MessageTypeBalance,
		Network:      network,
		Address:      snapshot.Address,
		PublicKey:    snapshot.PublicKey,
		Free:         amountString(snapshot.Native.Free),
		Reserved:     amountString(snapshot.Native.Reserved),
		AssetID:      snapshot.Asset.AssetID,
		AssetBalance: amountString(snapshot.Asset.Balance),
		ObservedAt:   snapshot.ObservedAt,
	}
}

func amountString(amount domain.TokenAmount) string {
	if amount.Amount == nil {
		return "0"
	}
	return amount.Amount.String()
}

func Encode(msg Message) ([]byte, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if err := validate(msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func validate(msg Message) error {
	if msg.Network == "" {
		return errors.New("network is required")
	}
	switch msg.Type {
	case MessageTypeHead:
		if msg.FinalizedHash == "" {
			return errors.New("head message requires finalized_hash")
		}
	case MessageTypeBalance:
		if msg.Address == "" {
			return errors.New("balance message requires address")
		}
	case "":
		return errors.New("message type is required")
	default:
		return errors.New("unknown message type " + string(msg.Type))
	}
	return nil
}
