package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ProjectAnchor/internal/bridge"
	"ProjectAnchor/pkg/anchorclient"
)

// globalOptions 保存所有子命令共享的参数。
type globalOptions struct {
	server  string
	network string
	token   string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "anchorctl",
		Short: "Build payloads and talk to an anchord registry",
		Long: `anchorctl builds canonical payloads, computes digests and drives a
remote anchord instance over its REST API.

Payload and digest commands run locally. register, verify, config,
instantiate and anchor need a reachable anchord.`,
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.server, "server", os.Getenv("ANCHOR_SERVER"), "anchord base URL (overrides --network)")
	flags.StringVar(&opts.network, "network", "local", "named network: local, testnet or mainnet")
	flags.StringVar(&opts.token, "token", os.Getenv("ANCHOR_TOKEN"), "bearer token for anchord")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "HTTP timeout")

	root.AddCommand(
		newDigestCmd(),
		newPayloadCmd(),
		newRegisterCmd(opts),
		newVerifyCmd(opts),
		newConfigCmd(opts),
		newInstantiateCmd(opts),
		newAnchorCmd(opts),
		newHealthCmd(opts),
	)
	return root
}

// client 依据 --server 或 --network 构造 anchord 客户端。
func (o *globalOptions) client() (*anchorclient.Client, error) {
	endpoint := o.server
	if endpoint == "" {
		resolved, err := bridge.NewNetworks(nil).Resolve(o.network)
		if err != nil {
			return nil, err
		}
		endpoint = resolved
	}
	client, err := anchorclient.NewClient(endpoint, &http.Client{Timeout: o.timeout})
	if err != nil {
		return nil, err
	}
	client.SetAccessToken(o.token)
	return client, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
