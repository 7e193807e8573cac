package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ProjectAnchor/internal/anchor"
	"ProjectAnchor/internal/digest"
	"ProjectAnchor/pkg/anchorclient"
)

func parseTarget(rawType, rawHash string) (anchor.Type, digest.Digest, error) {
	typ, err := anchor.ParseType(rawType)
	if err != nil {
		return 0, digest.Digest{}, err
	}
	hash, err := digest.ParseHex(strings.TrimPrefix(strings.TrimSpace(rawHash), "0x"))
	if err != nil {
		return 0, digest.Digest{}, err
	}
	return typ, hash, nil
}

func newRegisterCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "register <root|claim_score|equation_proof> <hash_hex>",
		Short: "Register a 32-byte digest in a namespace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, hash, err := parseTarget(args[0], args[1])
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := client.Register(cmd.Context(), typ.String(), hash.Bytes())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newVerifyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <root|claim_score|equation_proof> <hash_hex>",
		Short: "Look a digest up in a namespace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, hash, err := parseTarget(args[0], args[1])
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := client.Verify(cmd.Context(), typ.String(), hash.Bytes())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newConfigCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the registry admin and anchor counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := client.Config(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newInstantiateCmd(opts *globalOptions) *cobra.Command {
	var admin string
	cmd := &cobra.Command{
		Use:   "instantiate",
		Short: "Initialise the remote registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := client.Instantiate(cmd.Context(), admin)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&admin, "admin", "", "admin identity, defaults to the caller")
	return cmd
}

// anchorResult 汇总一次同步锚定的结果。
type anchorResult struct {
	Payload   sealedOutput           `json:"payload"`
	Duplicate bool                   `json:"duplicate"`
	Response  *anchorclient.Response `json:"response,omitempty"`
}

func newAnchorCmd(opts *globalOptions) *cobra.Command {
	var fields string
	cmd := &cobra.Command{
		Use:   "anchor <kind>",
		Short: "Seal a payload locally and register its hash",
		Long: `anchor builds the canonical payload for kind, then registers the payload
hash in the matching namespace. A hash that is already registered is
reported as a duplicate rather than an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sealed, err := sealFromArgs(cmd, args[0], fields)
			if err != nil {
				return err
			}
			hash, err := sealed.HashBytes()
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			result := anchorResult{Payload: sealedView(sealed)}
			resp, err := client.Register(cmd.Context(), sealed.AnchorType().String(), hash.Bytes())
			switch {
			case anchorclient.ErrorCode(err) == "ALREADY_ANCHORED":
				result.Duplicate = true
			case err != nil:
				return fmt.Errorf("register %s: %w", sealed.Hash(), err)
			default:
				result.Response = &resp
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&fields, "fields", "", "payload fields as JSON, read from stdin when empty")
	return cmd
}

func newHealthCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that anchord answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			if err := client.Health(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ok\n", client.BaseURL())
			return nil
		},
	}
}
