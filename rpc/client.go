package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/0xPolygon/cdk-rpc/rpc"
	chaintypes "github.com/0xPolygon/ctc/chain/types"
	"github.com/0xPolygon/ctc/queue"
	"github.com/0xPolygon/ctc/rpc/types"
)

var jSONRPCCall = rpc.JSONRPCCall

// ClientInterface is the interface that defines the implementation of all the endpoints
type ClientInterface interface {
	GetTotalElements() (uint64, error)
	GetTotalBatches() (uint64, error)
	GetQueueLength() (uint64, error)
	GetQueueElement(index uint64) (*queue.Element, error)
	GetBatchHeader(index uint64) (*chaintypes.BatchHeader, error)
	GetInclusionProof(index uint64) (*chaintypes.ElementProof, error)
	VerifyTransaction(req types.VerifyTransactionRequest) (bool, error)
}

var _ ClientInterface = (*Client)(nil)

// Client wraps all the available endpoints of the ctc node server
type Client struct {
	url string
}

// NewClient returns a client ready to be used
func NewClient(url string) *Client {
	return &Client{
		url: url,
	}
}

func call[T any](url, method string, params ...interface{}) (T, error) {
	var result T
	response, err := jSONRPCCall(url, method, params...)
	if err != nil {
		return result, err
	}
	if response.Error != nil {
		return result, fmt.Errorf("error in the response calling %s: %v %v", method, response.Error.Code, response.Error.Message)
	}
	return result, json.Unmarshal(response.Result, &result)
}

func (c *Client) GetTotalElements() (uint64, error) {
	return call[uint64](c.url, "ctc_getTotalElements")
}

func (c *Client) GetTotalBatches() (uint64, error) {
	return call[uint64](c.url, "ctc_getTotalBatches")
}

func (c *Client) GetQueueLength() (uint64, error) {
	return call[uint64](c.url, "ctc_getQueueLength")
}

func (c *Client) GetQueueElement(index uint64) (*queue.Element, error) {
	result, err := call[queue.Element](c.url, "ctc_getQueueElement", index)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetBatchHeader(index uint64) (*chaintypes.BatchHeader, error) {
	result, err := call[chaintypes.BatchHeader](c.url, "ctc_getBatchHeader", index)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetInclusionProof(index uint64) (*chaintypes.ElementProof, error) {
	result, err := call[chaintypes.ElementProof](c.url, "ctc_getInclusionProof", index)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) VerifyTransaction(req types.VerifyTransactionRequest) (bool, error) {
	return call[bool](c.url, "ctc_verifyTransaction", req)
}
