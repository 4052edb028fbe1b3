// Package submitter implements the two submission paths of spec.md §4.4
// behind one contract: DirectSubmitter sends a transaction through the
// signer supplied by the auth layer; SponsoredSubmitter constructs a
// user-operation through a smart-account client. QueueController picks the
// implementation from the request's auth mode and hands it to JobRunner.
package submitter

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/gardensync/internal/coreiface"
	"github.com/bobmcallan/gardensync/internal/errs"
)

const DefaultConfirmationDeadline = 60 * time.Second

// Submitter is the contract implemented by both DirectSubmitter and
// SponsoredSubmitter.
type Submitter interface {
	Simulate(ctx context.Context, encodedPayload []byte, recipient string) error
	Submit(ctx context.Context, encodedPayload []byte, recipient string) (txID string, err error)
	AwaitConfirmation(ctx context.Context, txID string) (*coreiface.TxReceipt, error)
}

// DirectSubmitter uses a wallet signer plus the chain RPC endpoint for
// simulation and confirmation.
type DirectSubmitter struct {
	chain  coreiface.ChainRPC
	signer coreiface.Signer
}

// NewDirectSubmitter builds a DirectSubmitter for one job's execution.
func NewDirectSubmitter(chain coreiface.ChainRPC, signer coreiface.Signer) *DirectSubmitter {
	return &DirectSubmitter{chain: chain, signer: signer}
}

func (s *DirectSubmitter) Simulate(ctx context.Context, encodedPayload []byte, recipient string) error {
	return s.chain.Simulate(ctx, encodedPayload, recipient)
}

func (s *DirectSubmitter) Submit(ctx context.Context, encodedPayload []byte, recipient string) (string, error) {
	return s.signer.SendTransaction(ctx, encodedPayload, recipient)
}

func (s *DirectSubmitter) AwaitConfirmation(ctx context.Context, txID string) (*coreiface.TxReceipt, error) {
	receipt, err := s.chain.WaitForReceipt(ctx, txID, DefaultConfirmationDeadline)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// SponsoredSubmitter uses a smart-account client that constructs a
// user-operation and submits it through a bundler; simulation and
// confirmation policies are otherwise identical to DirectSubmitter.
type SponsoredSubmitter struct {
	chain  coreiface.ChainRPC
	client coreiface.SmartAccountClient
}

// NewSponsoredSubmitter builds a SponsoredSubmitter for one job's execution.
func NewSponsoredSubmitter(chain coreiface.ChainRPC, client coreiface.SmartAccountClient) *SponsoredSubmitter {
	return &SponsoredSubmitter{chain: chain, client: client}
}

func (s *SponsoredSubmitter) Simulate(ctx context.Context, encodedPayload []byte, recipient string) error {
	return s.chain.Simulate(ctx, encodedPayload, recipient)
}

func (s *SponsoredSubmitter) Submit(ctx context.Context, encodedPayload []byte, recipient string) (string, error) {
	return s.client.SendUserOperation(ctx, encodedPayload, recipient)
}

func (s *SponsoredSubmitter) AwaitConfirmation(ctx context.Context, txID string) (*coreiface.TxReceipt, error) {
	receipt, err := s.chain.WaitForReceipt(ctx, txID, DefaultConfirmationDeadline)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// classifyReceipt turns a confirmed-but-reverted receipt into an
// UnknownRevert CoreError, leaving a clean confirmed receipt untouched.
func classifyReceipt(receipt *coreiface.TxReceipt) error {
	if receipt == nil {
		return errs.Transientf("await confirmation: nil receipt")
	}
	if receipt.Reverted {
		return errs.New(errs.UnknownRevert, fmt.Errorf("transaction reverted"))
	}
	return nil
}

// ClassifyReceipt is exported for JobRunner's await-confirmation step.
func ClassifyReceipt(receipt *coreiface.TxReceipt) error {
	return classifyReceipt(receipt)
}
