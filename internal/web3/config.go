package web3

import (
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	xerrors "ProjectAnchor/internal/errors"
)

// ChainDefinitions models the structure of configs/chain.yaml.
type ChainDefinitions struct {
	Chains map[string]ChainDefinition `yaml:"chains"`
}

// ChainDefinition describes a single chain endpoint definition.
type ChainDefinition struct {
	Type        string `yaml:"type"`
	RPCURL      string `yaml:"rpc_url"`
	Description string `yaml:"description"`
	// AnchorContract is the address of an EVM anchor registry, if deployed.
	AnchorContract string `yaml:"anchor_contract"`
}

// LoadChainDefinitions parses the YAML file containing chain metadata.
func LoadChainDefinitions(path string) (ChainDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return ChainDefinitions{Chains: map[string]ChainDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ChainDefinitions{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "读取链配置失败", xerrors.WithMetadata("path", path))
	}
	return ParseChainDefinitions(content)
}

// ParseChainDefinitions decodes chain definitions from YAML bytes.
func ParseChainDefinitions(content []byte) (ChainDefinitions, error) {
	var defs ChainDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ChainDefinitions{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析链配置失败")
	}
	if defs.Chains == nil {
		defs.Chains = map[string]ChainDefinition{}
	}
	for name, def := range defs.Chains {
		if strings.TrimSpace(def.Type) == "" {
			def.Type = "evm"
		}
		def.Type = strings.ToLower(strings.TrimSpace(def.Type))
		def.AnchorContract = strings.TrimSpace(def.AnchorContract)
		if def.AnchorContract != "" && !common.IsHexAddress(def.AnchorContract) {
			return ChainDefinitions{}, xerrors.New(xerrors.CodeInvalidArgument, "anchor_contract 不是合法的 EVM 地址",
				xerrors.WithMetadata("chain", name),
				xerrors.WithMetadata("anchor_contract", def.AnchorContract))
		}
		defs.Chains[name] = def
	}
	return defs, nil
}
