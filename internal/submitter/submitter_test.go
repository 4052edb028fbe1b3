package submitter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/gardensync/internal/coreiface"
	"github.com/bobmcallan/gardensync/internal/errs"
)

type fakeChainRPC struct {
	simulateErr error
	txID        string
	sendErr     error
	receipt     *coreiface.TxReceipt
	receiptErr  error
}

func (f *fakeChainRPC) Simulate(ctx context.Context, encodedPayload []byte, recipient string) error {
	return f.simulateErr
}
func (f *fakeChainRPC) SendTransaction(ctx context.Context, encodedPayload []byte, recipient string) (string, error) {
	return f.txID, f.sendErr
}
func (f *fakeChainRPC) WaitForReceipt(ctx context.Context, txID string, deadline time.Duration) (*coreiface.TxReceipt, error) {
	return f.receipt, f.receiptErr
}

type fakeSigner struct {
	addr    string
	txID    string
	sendErr error
}

func (s *fakeSigner) Address() string { return s.addr }
func (s *fakeSigner) ChainID() int64  { return 1 }
func (s *fakeSigner) SendTransaction(ctx context.Context, encodedPayload []byte, recipient string) (string, error) {
	return s.txID, s.sendErr
}

type fakeSmartAccountClient struct {
	addr    string
	txID    string
	sendErr error
}

func (c *fakeSmartAccountClient) Address() string { return c.addr }
func (c *fakeSmartAccountClient) ChainID() int64   { return 1 }
func (c *fakeSmartAccountClient) SendUserOperation(ctx context.Context, encodedPayload []byte, recipient string) (string, error) {
	return c.txID, c.sendErr
}

func TestDirectSubmitter_SubmitUsesSigner(t *testing.T) {
	chain := &fakeChainRPC{receipt: &coreiface.TxReceipt{TxID: "0xabc"}}
	signer := &fakeSigner{addr: "0xuser", txID: "0xabc"}
	s := NewDirectSubmitter(chain, signer)

	txID, err := s.Submit(context.Background(), []byte("payload"), "0xcontract")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", txID)
}

func TestDirectSubmitter_SimulateDelegatesToChain(t *testing.T) {
	chain := &fakeChainRPC{simulateErr: errs.Permanentf("reverted")}
	s := NewDirectSubmitter(chain, &fakeSigner{})

	err := s.Simulate(context.Background(), []byte("payload"), "0xcontract")
	require.Error(t, err)
	assert.Equal(t, errs.Permanent, errs.KindOf(err))
}

func TestSponsoredSubmitter_SubmitUsesSmartAccountClient(t *testing.T) {
	chain := &fakeChainRPC{}
	client := &fakeSmartAccountClient{addr: "0xuser", txID: "0xuop"}
	s := NewSponsoredSubmitter(chain, client)

	txID, err := s.Submit(context.Background(), []byte("payload"), "0xcontract")
	require.NoError(t, err)
	assert.Equal(t, "0xuop", txID)
}

func TestClassifyReceipt_RevertedIsUnknownRevert(t *testing.T) {
	err := ClassifyReceipt(&coreiface.TxReceipt{TxID: "0xabc", Reverted: true})
	require.Error(t, err)
	assert.Equal(t, errs.UnknownRevert, errs.KindOf(err))
}

func TestClassifyReceipt_NilReceiptIsTransient(t *testing.T) {
	err := ClassifyReceipt(nil)
	require.Error(t, err)
	assert.Equal(t, errs.Transient, errs.KindOf(err))
}

func TestClassifyReceipt_CleanReceiptIsNil(t *testing.T) {
	assert.NoError(t, ClassifyReceipt(&coreiface.TxReceipt{TxID: "0xabc", Reverted: false}))
}

func TestDirectSubmitter_AwaitConfirmationPropagatesChainError(t *testing.T) {
	chain := &fakeChainRPC{receiptErr: errs.Transientf("rpc timeout")}
	s := NewDirectSubmitter(chain, &fakeSigner{})

	_, err := s.AwaitConfirmation(context.Background(), "0xabc")
	require.Error(t, err)
	assert.Equal(t, errs.Transient, errs.KindOf(err))
}
