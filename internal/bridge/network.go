package bridge

import (
	"net/url"
	"sort"
	"strings"

	xerrors "ProjectAnchor/internal/errors"
)

// LocalEndpoint 是本机 anchord 的默认地址。
const LocalEndpoint = "http://127.0.0.1:8080"

// Networks 将网络名解析为 anchord 端点。testnet 与 mainnet 没有内置地址，需在配置中提供。
type Networks struct {
	table map[string]string
}

// NewNetworks 以内置表为基础合并配置覆盖项。
func NewNetworks(overrides map[string]string) Networks {
	table := map[string]string{
		"local":   LocalEndpoint,
		"testnet": "",
		"mainnet": "",
	}
	for name, endpoint := range overrides {
		table[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(endpoint)
	}
	return Networks{table: table}
}

// Names 返回已知网络名。
func (n Networks) Names() []string {
	names := make([]string, 0, len(n.table))
	for name := range n.table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve 返回网络对应的端点。不在表中的取值按完整 URL 处理。
func (n Networks) Resolve(name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if endpoint, ok := n.table[key]; ok {
		if endpoint == "" {
			return "", xerrors.New(CodeUnknownNetwork, "网络未配置端点", xerrors.WithMetadata("network", key))
		}
		return endpoint, nil
	}
	parsed, err := url.Parse(strings.TrimSpace(name))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", xerrors.New(CodeUnknownNetwork, "", xerrors.WithMetadata("network", name))
	}
	return parsed.String(), nil
}
