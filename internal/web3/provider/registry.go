package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"ProjectAnchor/internal/config"
	"ProjectAnchor/internal/web3"
	"ProjectAnchor/internal/web3/ethereum"
)

// Registry manages a set of chain clients keyed by human readable names.
type Registry struct {
	defaultChain string
	clients      map[string]web3.Client
	anchors      map[string]string
}

// NewRegistry loads chain definitions and instantiates concrete clients.
func NewRegistry(ctx context.Context, cfg config.Web3Config) (*Registry, error) {
	defs, err := web3.LoadChainDefinitions(cfg.ChainConfig)
	if err != nil {
		return nil, err
	}

	clients := make(map[string]web3.Client)
	anchors := make(map[string]string)
	for name, chain := range defs.Chains {
		switch chain.Type {
		case "evm":
			client, err := ethereum.NewClient(ctx, ethereum.Config{
				Name:   name,
				RPCURL: chain.RPCURL,
				Notes:  chain.Description,
			})
			if err != nil {
				closeAll(clients)
				return nil, fmt.Errorf("init chain %s: %w", name, err)
			}
			clients[name] = client
			if chain.AnchorContract != "" {
				anchors[name] = chain.AnchorContract
			}
		default:
			closeAll(clients)
			return nil, fmt.Errorf("chain %s uses unsupported type %s", name, chain.Type)
		}
	}

	defaultChain := cfg.DefaultChain
	if len(clients) == 0 && strings.TrimSpace(cfg.RPCURL) != "" {
		client, err := ethereum.NewClient(ctx, ethereum.Config{Name: "default", RPCURL: cfg.RPCURL})
		if err != nil {
			return nil, err
		}
		clients["default"] = client
		if defaultChain == "" {
			defaultChain = "default"
		}
	}

	return newRegistry(defaultChain, clients, anchors)
}

// NewStaticRegistry wraps already constructed clients. Used by tests and by
// callers that dial their own transports.
func NewStaticRegistry(defaultChain string, clients map[string]web3.Client) (*Registry, error) {
	copied := make(map[string]web3.Client, len(clients))
	for name, client := range clients {
		copied[name] = client
	}
	return newRegistry(defaultChain, copied, map[string]string{})
}

func newRegistry(defaultChain string, clients map[string]web3.Client, anchors map[string]string) (*Registry, error) {
	if len(clients) == 0 {
		return nil, errors.New("no chain RPC endpoint configured")
	}
	if defaultChain == "" {
		names := sortedNames(clients)
		defaultChain = names[0]
	}
	if _, ok := clients[defaultChain]; !ok {
		closeAll(clients)
		return nil, fmt.Errorf("default chain %s not configured", defaultChain)
	}
	return &Registry{defaultChain: defaultChain, clients: clients, anchors: anchors}, nil
}

// DefaultClient returns the client configured as default chain.
func (r *Registry) DefaultClient() (web3.Client, error) {
	if r == nil {
		return nil, errors.New("chain registry not initialised")
	}
	client, ok := r.clients[r.defaultChain]
	if !ok {
		return nil, fmt.Errorf("default chain %s missing from registry", r.defaultChain)
	}
	return client, nil
}

// Client returns the chain client identified by name. An empty name selects
// the default chain.
func (r *Registry) Client(name string) (web3.Client, bool) {
	if r == nil {
		return nil, false
	}
	if name == "" {
		name = r.defaultChain
	}
	client, ok := r.clients[name]
	return client, ok
}

// AnchorContract returns the registry contract address declared for a chain.
func (r *Registry) AnchorContract(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	if name == "" {
		name = r.defaultChain
	}
	addr, ok := r.anchors[name]
	return addr, ok
}

// Close releases all clients managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	closeAll(r.clients)
}

// Chains returns the list of registered chain names.
func (r *Registry) Chains() []string {
	if r == nil {
		return nil
	}
	return sortedNames(r.clients)
}

func sortedNames(clients map[string]web3.Client) []string {
	names := make([]string, 0, len(clients))
	for name := range clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func closeAll(clients map[string]web3.Client) {
	for name, client := range clients {
		if client != nil {
			client.Close()
		}
		delete(clients, name)
	}
}
