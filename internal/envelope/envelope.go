// Package envelope defines the signed wire form of aclchain transactions and
// batches. A transaction carries its payload together with a header naming
// the state addresses it may read and write; the ledger verifies the header
// signature and payload digest before any validation rule runs, and holds
// handlers to the declared write set afterwards.
package envelope

import (
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Family identifies the transaction family this ledger validates. Headers
// carrying any other family name or version are refused before validation.
const (
	FamilyName    = "aclchain"
	FamilyVersion = "1.0"
)

// TransactionHeader is signed as its canonical JSON encoding. Field order is
// fixed by the struct, so encoding the same header twice yields identical
// bytes.
type TransactionHeader struct {
	FamilyName      string   `json:"family_name"`
	FamilyVersion   string   `json:"family_version"`
	Inputs          []string `json:"inputs"`
	Outputs         []string `json:"outputs"`
	SignerPublicKey string   `json:"signer_public_key"`
	PayloadSHA512   string   `json:"payload_sha512"`
	Nonce           string   `json:"nonce"`
}

// Transaction is one signed payload. ID doubles as the receipt key.
type Transaction struct {
	ID        string            `json:"id"`
	Header    TransactionHeader `json:"header"`
	Payload   []byte            `json:"payload"`
	Signature string            `json:"signature"`
}

// Batch groups transactions that commit or fail together.
type Batch struct {
	ID              string        `json:"id"`
	Transactions    []Transaction `json:"transactions"`
	SignerPublicKey string        `json:"signer_public_key"`
	Signature       string        `json:"signature"`
}

// Signer signs transactions and batches with an ed25519 key. The hex form of
// the public key is the signer identity that validation rules see.
type Signer struct {
	priv ed25519.PrivateKey
	pub  string
}

// NewSigner generates a fresh keypair.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Signer{priv: priv, pub: hex.EncodeToString(pub)}, nil
}

// SignerFromSeed derives a deterministic keypair from a 32-byte seed. Useful
// for fixtures; production keys come from NewSigner.
func SignerFromSeed(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Signer{priv: priv, pub: hex.EncodeToString(pub)}, nil
}

// PublicKey returns the signer identity in hex.
func (s *Signer) PublicKey() string { return s.pub }

// Build assembles and signs a transaction over payload with the given
// declared address sets.
func (s *Signer) Build(payload []byte, inputs, outputs []string) (Transaction, error) {
	digest := sha512.Sum512(payload)
	header := TransactionHeader{
		FamilyName:      FamilyName,
		FamilyVersion:   FamilyVersion,
		Inputs:          inputs,
		Outputs:         outputs,
		SignerPublicKey: s.pub,
		PayloadSHA512:   hex.EncodeToString(digest[:]),
		Nonce:           uuid.NewString(),
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return Transaction{}, fmt.Errorf("encode header: %w", err)
	}
	sig := ed25519.Sign(s.priv, headerBytes)
	return Transaction{
		ID:        hex.EncodeToString(sig[:32]),
		Header:    header,
		Payload:   payload,
		Signature: hex.EncodeToString(sig),
	}, nil
}

// Bundle wraps transactions into a batch signed over their ids.
func (s *Signer) Bundle(txs ...Transaction) (Batch, error) {
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}
	idBytes, err := json.Marshal(ids)
	if err != nil {
		return Batch{}, fmt.Errorf("encode transaction ids: %w", err)
	}
	sig := ed25519.Sign(s.priv, idBytes)
	return Batch{
		ID:              hex.EncodeToString(sig[:32]),
		Transactions:    txs,
		SignerPublicKey: s.pub,
		Signature:       hex.EncodeToString(sig),
	}, nil
}

// Verify checks the transaction's family, payload digest, and header
// signature. It does not touch state.
func Verify(tx Transaction) error {
	if tx.Header.FamilyName != FamilyName || tx.Header.FamilyVersion != FamilyVersion {
		return fmt.Errorf("unsupported family %s/%s", tx.Header.FamilyName, tx.Header.FamilyVersion)
	}
	digest := sha512.Sum512(tx.Payload)
	if hex.EncodeToString(digest[:]) != tx.Header.PayloadSHA512 {
		return fmt.Errorf("payload digest mismatch for transaction %s", tx.ID)
	}
	pub, err := hex.DecodeString(tx.Header.SignerPublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("malformed signer public key on transaction %s", tx.ID)
	}
	sig, err := hex.DecodeString(tx.Signature)
	if err != nil {
		return fmt.Errorf("malformed signature on transaction %s", tx.ID)
	}
	headerBytes, err := json.Marshal(tx.Header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), headerBytes, sig) {
		return fmt.Errorf("invalid signature on transaction %s", tx.ID)
	}
	return nil
}

// VerifyBatch checks the batch signature and every contained transaction.
func VerifyBatch(batch Batch) error {
	pub, err := hex.DecodeString(batch.SignerPublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("malformed signer public key on batch %s", batch.ID)
	}
	sig, err := hex.DecodeString(batch.Signature)
	if err != nil {
		return fmt.Errorf("malformed signature on batch %s", batch.ID)
	}
	ids := make([]string, len(batch.Transactions))
	for i, tx := range batch.Transactions {
		ids[i] = tx.ID
	}
	idBytes, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode transaction ids: %w", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), idBytes, sig) {
		return fmt.Errorf("invalid signature on batch %s", batch.ID)
	}
	for _, tx := range batch.Transactions {
		if err := Verify(tx); err != nil {
			return err
		}
	}
	return nil
}
