package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"aclchain/internal/envelope"
	"aclchain/internal/handler"
	"aclchain/pkg/domain"
)

// Client assembles signed transactions for one key and submits them. The
// signer's public key hex is the identity every validation rule sees.
type Client struct {
	signer *envelope.Signer
	ledger *Ledger
}

// NewClient binds a signer to a ledger.
func NewClient(l *Ledger, signer *envelope.Signer) *Client {
	return &Client{signer: signer, ledger: l}
}

// ID returns the client's signer identity.
func (c *Client) ID() string { return c.signer.PublicKey() }

// Build marshals msg under typ, declares its address sets, and signs the
// resulting transaction without submitting it.
func (c *Client) Build(typ domain.MessageType, msg any) (envelope.Transaction, error) {
	content, err := json.Marshal(msg)
	if err != nil {
		return envelope.Transaction{}, fmt.Errorf("encode %s content: %w", typ, err)
	}
	decoded := domain.Payload{Type: typ, Content: content}
	inputs, outputs, err := handler.Declare(c.signer.PublicKey(), decoded)
	if err != nil {
		return envelope.Transaction{}, err
	}
	payload, err := json.Marshal(decoded)
	if err != nil {
		return envelope.Transaction{}, fmt.Errorf("encode payload: %w", err)
	}
	return c.signer.Build(payload, inputs, outputs)
}

// Submit builds and applies one transaction.
func (c *Client) Submit(ctx context.Context, typ domain.MessageType, msg any) (Receipt, error) {
	tx, err := c.Build(typ, msg)
	if err != nil {
		return Receipt{}, err
	}
	return c.ledger.Submit(ctx, tx)
}

// SubmitBatch builds one transaction per message and applies them
// atomically.
func (c *Client) SubmitBatch(ctx context.Context, msgs ...Message) ([]Receipt, error) {
	txs := make([]envelope.Transaction, len(msgs))
	for i, m := range msgs {
		tx, err := c.Build(m.Type, m.Content)
		if err != nil {
			return nil, err
		}
		txs[i] = tx
	}
	batch, err := c.signer.Bundle(txs...)
	if err != nil {
		return nil, err
	}
	return c.ledger.SubmitBatch(ctx, batch)
}

// Message pairs a message type with its content for batch submission.
type Message struct {
	Type    domain.MessageType
	Content any
}
