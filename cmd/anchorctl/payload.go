package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ProjectAnchor/internal/digest"
	"ProjectAnchor/internal/payload"
)

type sealedOutput struct {
	Kind        payload.Kind `json:"kind"`
	AnchorType  string       `json:"anchor_type"`
	Canonical   string       `json:"canonical"`
	PayloadHash string       `json:"payload_hash"`
	Fields      payload.Body `json:"fields"`
}

func sealedView(p payload.Sealed) sealedOutput {
	return sealedOutput{
		Kind:        p.Kind(),
		AnchorType:  p.AnchorType().String(),
		Canonical:   p.Canonical(),
		PayloadHash: p.Hash(),
		Fields:      p.Fields(),
	}
}

func newDigestCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "digest [text]",
		Short: "Print the SHA-256 digest of text, a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			switch {
			case file != "":
				raw, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				data = raw
			case len(args) == 1:
				data = []byte(args[0])
			default:
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				data = raw
			}
			fmt.Fprintln(cmd.OutOrStdout(), digest.Sum(data).Hex())
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "hash the contents of this file")
	return cmd
}

func newPayloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payload",
		Short: "Build and verify canonical payloads locally",
	}
	cmd.AddCommand(newPayloadBuildCmd(), newPayloadVerifyCmd(), newPayloadKindsCmd())
	return cmd
}

func newPayloadBuildCmd() *cobra.Command {
	var fields string
	cmd := &cobra.Command{
		Use:   "build <kind>",
		Short: "Seal a payload from JSON fields",
		Example: `  anchorctl payload build merkle_root --fields '{"root_hash":"ab12","leaf_count":4}'
  echo '{"claim_id":1,"composite_score":0.5}' | anchorctl payload build claim_score`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sealed, err := sealFromArgs(cmd, args[0], fields)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sealedView(sealed))
		},
	}
	cmd.Flags().StringVar(&fields, "fields", "", "payload fields as JSON, read from stdin when empty")
	return cmd
}

func newPayloadVerifyCmd() *cobra.Command {
	var fields, hash string
	cmd := &cobra.Command{
		Use:   "verify <kind>",
		Short: "Check a payload hash against its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := payload.ParseKind(args[0])
			if err != nil {
				return err
			}
			raw, err := readFields(cmd, fields)
			if err != nil {
				return err
			}
			ok, err := payload.VerifyJSON(kind, raw, hash)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("payload hash %s does not match fields", hash)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&fields, "fields", "", "payload fields as JSON, read from stdin when empty")
	cmd.Flags().StringVar(&hash, "hash", "", "payload hash to check")
	_ = cmd.MarkFlagRequired("hash")
	return cmd
}

func newPayloadKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List payload kinds and their canonical field order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, kind := range payload.Kinds() {
				layout, _ := payload.LayoutOf(kind)
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: %s\n", kind, layout.AnchorType, strings.Join(layout.Fields, ", "))
			}
			return nil
		},
	}
}

func sealFromArgs(cmd *cobra.Command, rawKind, fields string) (payload.Sealed, error) {
	kind, err := payload.ParseKind(rawKind)
	if err != nil {
		return nil, err
	}
	raw, err := readFields(cmd, fields)
	if err != nil {
		return nil, err
	}
	return payload.Build(kind, raw)
}

func readFields(cmd *cobra.Command, fields string) (json.RawMessage, error) {
	if strings.TrimSpace(fields) != "" {
		return json.RawMessage(fields), nil
	}
	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}
