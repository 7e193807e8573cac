package ethereum

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/internal/web3"
)

// Config describes how to construct an EVM compatible client.
type Config struct {
	Name   string
	RPCURL string
	Notes  string
}

// Client implements web3.Client for EVM compatible chains.
type Client struct {
	name      string
	notes     string
	rpcClient *gethrpc.Client
	eth       *ethclient.Client
	mu        sync.Mutex
}

// NewClient dials the configured RPC endpoint.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未配置以太坊 RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "连接以太坊节点失败", xerrors.WithMetadata("chain", cfg.Name))
	}
	return NewClientFromRPC(cfg.Name, cfg.Notes, rpcClient), nil
}

// NewClientFromRPC wraps an already dialled RPC client.
func NewClientFromRPC(name, notes string, rpcClient *gethrpc.Client) *Client {
	return &Client{
		name:      name,
		notes:     notes,
		rpcClient: rpcClient,
		eth:       ethclient.NewClient(rpcClient),
	}
}

// Name returns the configured chain name.
func (c *Client) Name() string {
	return c.name
}

// LatestHeight returns the number of the chain head.
func (c *Client) LatestHeight(ctx context.Context) (uint64, error) {
	eth, err := c.ethClient()
	if err != nil {
		return 0, err
	}
	height, err := eth.BlockNumber(ctx)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeChainFailure, err, "获取最新区块高度失败", xerrors.WithMetadata("chain", c.name))
	}
	return height, nil
}

// FetchChainSnapshot gathers lightweight metadata from the chain.
func (c *Client) FetchChainSnapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	eth, err := c.ethClient()
	if err != nil {
		return web3.ChainSnapshot{}, err
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, xerrors.Wrap(xerrors.CodeChainFailure, err, "获取链 ID 失败", xerrors.WithMetadata("chain", c.name))
	}
	height, err := c.LatestHeight(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, err
	}
	return web3.ChainSnapshot{
		Name:        c.name,
		ChainID:     toHexBig(chainID),
		BlockNumber: height,
		Notes:       c.notes,
	}, nil
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	c.rpcClient = nil
}

func (c *Client) ethClient() (*ethclient.Client, error) {
	if c == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未初始化的以太坊客户端")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth == nil {
		return nil, xerrors.New(xerrors.CodeChainFailure, "以太坊客户端已关闭", xerrors.WithRetryable(false))
	}
	return c.eth, nil
}

func toHexBig(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return "0x" + n.Text(16)
}

var _ web3.Client = (*Client)(nil)
