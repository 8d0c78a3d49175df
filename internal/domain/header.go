package domain

import "time"

// Header is a block header as returned by chain_getHeader.
type Header struct {
	ParentHash     string `json:"parentHash"`
	Number         string `json:"number"`
	StateRoot      string `json:"stateRoot"`
	ExtrinsicsRoot string `json:"extrinsicsRoot"`
	Digest         Digest `json:"digest"`
}

type Digest struct {
	Logs []string `json:"logs"`
}

// DigestItem is one decoded log of a header digest. Payload is hex.
type DigestItem struct {
	Kind    string `json:"kind"`
	Engine  string `json:"engine,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// ChainHead is the best and finalized position of the chain at one moment.
type ChainHead struct {
	Best            Header       `json:"best"`
	BestNumber      uint64       `json:"best_number"`
	BestDigest      []DigestItem `json:"best_digest,omitempty"`
	FinalizedHash   string       `json:"finalized_hash"`
	FinalizedNumber uint64       `json:"finalized_number"`
	ObservedAt      time.Time    `json:"observed_at"`
}
