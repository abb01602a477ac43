package main

import (
	"crypto/rand"
	"fmt"
	"os"

	"keyward/internal/domain"
	"keyward/internal/infra/crypto"
	"keyward/pkg/hexcodec"

	"github.com/spf13/cobra"
)

const (
	flagKey = "key"
	flagPEM = "pem"
	flagIn  = "in"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a private key and print it with its public key and address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := crypto.NewService()
			material, err := svc.GenerateKeyMaterial(rand.Reader)
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			pub, err := svc.DerivePublicKey(material)
			if err != nil {
				return err
			}
			address, err := svc.Address(pub)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "private_key: %s\n", material.Hex())
			fmt.Fprintf(out, "public_key:  %s\n", hexcodec.Encode(pub))
			fmt.Fprintf(out, "address:     %s\n", address)
			return nil
		},
	}
}

func newPubkeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pubkey",
		Short: "Derive the public key of a private key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keyHex, _ := cmd.Flags().GetString(flagKey)
			asPEM, _ := cmd.Flags().GetBool(flagPEM)
			material, err := domain.NewKeyMaterialFromHex(keyHex)
			if err != nil {
				return err
			}
			pub, err := crypto.NewService().DerivePublicKey(material)
			if err != nil {
				return err
			}
			if asPEM {
				block, err := crypto.EncodePublicKeyPEM(pub)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), block)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), hexcodec.Encode(pub))
			return nil
		},
	}
	cmd.Flags().String(flagKey, "", "private key hex (32 bytes)")
	cmd.Flags().Bool(flagPEM, false, "print a PUBLIC KEY PEM block instead of hex")
	_ = cmd.MarkFlagRequired(flagKey)
	return cmd
}

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract the raw public key from a PEM or base64 SubjectPublicKeyInfo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString(flagIn)
			payload, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			pub, err := crypto.ExtractPublicKey(string(payload))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hexcodec.Encode(pub))
			return nil
		},
	}
	cmd.Flags().String(flagIn, "", "file holding a PEM block or base64 DER")
	_ = cmd.MarkFlagRequired(flagIn)
	return cmd
}
