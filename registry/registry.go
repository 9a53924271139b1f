package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// SequencerName is the registry name of the batch submitter
const SequencerName = "OVM_Sequencer"

var (
	ErrUnknownName        = errors.New("unknown name")
	ErrUnsupportedRequest = errors.New("unsupported request")
	ErrUnexpectedResponse = errors.New("unexpected response")
	ErrInvalidGasPolicy   = errors.New("invalid gas policy")
)

// RequestKind tags the question asked to a Registry
type RequestKind uint8

const (
	// KindResolveAddress asks for the address registered under a name
	KindResolveAddress RequestKind = iota + 1
	// KindGasPolicy asks for the current gas constants
	KindGasPolicy
)

func (k RequestKind) String() string {
	switch k {
	case KindResolveAddress:
		return "ResolveAddress"
	case KindGasPolicy:
		return "GasPolicy"
	default:
		return fmt.Sprintf("RequestKind(%d)", uint8(k))
	}
}

// Request is sent to a Registry. Name is only meaningful for KindResolveAddress.
type Request struct {
	Kind RequestKind
	Name string
}

// Response answers a Request. Only the field matching Kind is set.
type Response struct {
	Kind      RequestKind
	Address   common.Address
	GasPolicy GasPolicy
}

// GasPolicy holds the constants that rule queue admission
type GasPolicy struct {
	MinRollupTxGas       uint64
	MaxRollupTxSize      uint64
	L2GasDiscountDivisor uint64
}

// Validate checks the policy can be used to price transactions
func (g GasPolicy) Validate() error {
	if g.L2GasDiscountDivisor == 0 {
		return fmt.Errorf("%w: L2GasDiscountDivisor must be greater than zero", ErrInvalidGasPolicy)
	}
	return nil
}

// GasToBurn returns the gas a caller must provide to enqueue a transaction with gasLimit
func (g GasPolicy) GasToBurn(gasLimit uint64) uint64 {
	if g.L2GasDiscountDivisor == 0 {
		return gasLimit
	}
	return gasLimit / g.L2GasDiscountDivisor
}

// Registry answers address and gas-policy lookups
type Registry interface {
	Handle(ctx context.Context, req Request) (Response, error)
}

// ResolveAddress asks r for the address registered under name
func ResolveAddress(ctx context.Context, r Registry, name string) (common.Address, error) {
	resp, err := r.Handle(ctx, Request{Kind: KindResolveAddress, Name: name})
	if err != nil {
		return common.Address{}, err
	}
	if resp.Kind != KindResolveAddress {
		return common.Address{}, fmt.Errorf("%w: asked %s, got %s", ErrUnexpectedResponse, KindResolveAddress, resp.Kind)
	}
	return resp.Address, nil
}

// GetGasPolicy asks r for the current gas policy
func GetGasPolicy(ctx context.Context, r Registry) (GasPolicy, error) {
	resp, err := r.Handle(ctx, Request{Kind: KindGasPolicy})
	if err != nil {
		return GasPolicy{}, err
	}
	if resp.Kind != KindGasPolicy {
		return GasPolicy{}, fmt.Errorf("%w: asked %s, got %s", ErrUnexpectedResponse, KindGasPolicy, resp.Kind)
	}
	if err := resp.GasPolicy.Validate(); err != nil {
		return GasPolicy{}, err
	}
	return resp.GasPolicy, nil
}

var _ Registry = (*Static)(nil)

// Static is an in-memory Registry built from Config
type Static struct {
	mu        sync.RWMutex
	addresses map[string]common.Address
	gasPolicy GasPolicy
}

// NewStatic creates a Static registry from cfg
func NewStatic(cfg Config) (*Static, error) {
	policy := GasPolicy{
		MinRollupTxGas:       cfg.MinRollupTxGas,
		MaxRollupTxSize:      cfg.MaxRollupTxSize,
		L2GasDiscountDivisor: cfg.L2GasDiscountDivisor,
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	addresses := make(map[string]common.Address, len(cfg.Addresses)+1)
	for name, addr := range cfg.Addresses {
		addresses[name] = addr
	}
	addresses[SequencerName] = cfg.Sequencer
	return &Static{
		addresses: addresses,
		gasPolicy: policy,
	}, nil
}

func (s *Static) Handle(_ context.Context, req Request) (Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch req.Kind {
	case KindResolveAddress:
		addr, ok := s.addresses[req.Name]
		if !ok {
			return Response{}, fmt.Errorf("%w: %s", ErrUnknownName, req.Name)
		}
		return Response{Kind: KindResolveAddress, Address: addr}, nil
	case KindGasPolicy:
		return Response{Kind: KindGasPolicy, GasPolicy: s.gasPolicy}, nil
	default:
		return Response{}, fmt.Errorf("%w: %s", ErrUnsupportedRequest, req.Kind)
	}
}

// SetAddress registers addr under name, replacing any previous value
func (s *Static) SetAddress(name string, addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[name] = addr
}

// SetGasPolicy replaces the gas policy
func (s *Static) SetGasPolicy(policy GasPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gasPolicy = policy
	return nil
}
