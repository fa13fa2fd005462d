package envelope

import (
	"bytes"
	"strings"
	"testing"
)

var testSeed = bytes.Repeat([]byte{7}, 32)

func testSigner(t *testing.T) *Signer {
	t.Helper()
	signer, err := SignerFromSeed(testSeed)
	if err != nil {
		t.Fatalf("signer from seed: %v", err)
	}
	return signer
}

func TestBuildAndVerify(t *testing.T) {
	signer := testSigner(t)
	tx, err := signer.Build([]byte(`{"message_type":"CREATE_USER"}`), []string{"aa"}, []string{"aa"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if tx.Header.SignerPublicKey != signer.PublicKey() {
		t.Fatalf("header signer = %s", tx.Header.SignerPublicKey)
	}
	if tx.ID == "" || tx.Header.Nonce == "" {
		t.Fatal("transaction id and nonce must be set")
	}
	if err := Verify(tx); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	signer := testSigner(t)
	base, err := signer.Build([]byte(`{"a":1}`), nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(tx *Transaction)
		want   string
	}{
		{
			name:   "payload swapped",
			mutate: func(tx *Transaction) { tx.Payload = []byte(`{"a":2}`) },
			want:   "digest mismatch",
		},
		{
			name:   "outputs widened",
			mutate: func(tx *Transaction) { tx.Header.Outputs = []string{"ff"} },
			want:   "invalid signature",
		},
		{
			name:   "wrong family",
			mutate: func(tx *Transaction) { tx.Header.FamilyName = "intkey" },
			want:   "unsupported family",
		},
		{
			name:   "garbage signature",
			mutate: func(tx *Transaction) { tx.Signature = "zz" },
			want:   "malformed signature",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tx := base
			tc.mutate(&tx)
			err := Verify(tx)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestNoncesDiffer(t *testing.T) {
	signer := testSigner(t)
	a, _ := signer.Build([]byte(`{}`), nil, nil)
	b, _ := signer.Build([]byte(`{}`), nil, nil)
	if a.Header.Nonce == b.Header.Nonce {
		t.Fatal("two builds reused a nonce")
	}
	if a.ID == b.ID {
		t.Fatal("two builds reused a transaction id")
	}
}

func TestBatchVerify(t *testing.T) {
	signer := testSigner(t)
	tx1, _ := signer.Build([]byte(`{"a":1}`), nil, nil)
	tx2, _ := signer.Build([]byte(`{"a":2}`), nil, nil)
	batch, err := signer.Bundle(tx1, tx2)
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	if err := VerifyBatch(batch); err != nil {
		t.Fatalf("verify batch: %v", err)
	}

	// Reordering the transactions breaks the batch signature.
	batch.Transactions[0], batch.Transactions[1] = batch.Transactions[1], batch.Transactions[0]
	if err := VerifyBatch(batch); err == nil {
		t.Fatal("reordered batch must not verify")
	}

	// A tampered member transaction fails even with an intact batch signature.
	batch.Transactions[0], batch.Transactions[1] = batch.Transactions[1], batch.Transactions[0]
	batch.Transactions[1].Payload = []byte(`{"a":3}`)
	if err := VerifyBatch(batch); err == nil {
		t.Fatal("tampered member transaction must not verify")
	}
}
