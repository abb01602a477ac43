package main

import (
	"fmt"

	"keyward/internal/domain"
	"keyward/internal/infra/crypto"
	"keyward/pkg/hexcodec"

	"github.com/spf13/cobra"
)

const (
	flagAlg        = "alg"
	flagMessageHex = "message-hex"
	flagText       = "text"
	flagDigest     = "digest"
	flagSig        = "sig"
	flagPubkey     = "pubkey"
)

func newHashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Hash a message into a 32-byte digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			alg, err := algorithmFlag(cmd)
			if err != nil {
				return err
			}
			messageHex, _ := cmd.Flags().GetString(flagMessageHex)
			text, _ := cmd.Flags().GetString(flagText)
			message := []byte(text)
			if cmd.Flags().Changed(flagMessageHex) {
				message, err = hexcodec.Decode(messageHex)
				if err != nil {
					return fmt.Errorf("%w: message", domain.ErrHexDecode)
				}
			}
			digest, err := crypto.NewService().HashMessage(message, alg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hexcodec.Encode(digest))
			return nil
		},
	}
	cmd.Flags().String(flagAlg, string(domain.DefaultHashAlgorithm), "hash algorithm (keccak256, sha3-256)")
	cmd.Flags().String(flagMessageHex, "", "message bytes as hex")
	cmd.Flags().String(flagText, "", "message as UTF-8 text")
	cmd.MarkFlagsMutuallyExclusive(flagMessageHex, flagText)
	cmd.MarkFlagsOneRequired(flagMessageHex, flagText)
	return cmd
}

func newSignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a 32-byte digest and print the r||s||v signature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			alg, err := algorithmFlag(cmd)
			if err != nil {
				return err
			}
			keyHex, _ := cmd.Flags().GetString(flagKey)
			digestHex, _ := cmd.Flags().GetString(flagDigest)
			material, err := domain.NewKeyMaterialFromHex(keyHex)
			if err != nil {
				return err
			}
			digest, err := decodeDigest(digestHex)
			if err != nil {
				return err
			}
			svc := crypto.NewService()
			sig, err := svc.Sign(material, digest, alg)
			if err != nil {
				return err
			}
			pub, err := svc.DerivePublicKey(material)
			if err != nil {
				return err
			}
			ok, err := svc.Verify(digest, sig, pub, alg)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrSignatureVerificationFailed
			}
			fmt.Fprintln(cmd.OutOrStdout(), hexcodec.Encode(sig))
			return nil
		},
	}
	cmd.Flags().String(flagKey, "", "private key hex (32 bytes)")
	cmd.Flags().String(flagDigest, "", "digest hex (32 bytes)")
	cmd.Flags().String(flagAlg, string(domain.DefaultHashAlgorithm), "algorithm tag recorded with the digest")
	_ = cmd.MarkFlagRequired(flagKey)
	_ = cmd.MarkFlagRequired(flagDigest)
	return cmd
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a signature over a digest; exits non-zero when invalid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			digestHex, _ := cmd.Flags().GetString(flagDigest)
			sigHex, _ := cmd.Flags().GetString(flagSig)
			pubHex, _ := cmd.Flags().GetString(flagPubkey)
			digest, err := decodeDigest(digestHex)
			if err != nil {
				return err
			}
			sig, err := hexcodec.Decode(sigHex)
			if err != nil {
				return fmt.Errorf("%w: signature", domain.ErrHexDecode)
			}
			pub, err := hexcodec.Decode(pubHex)
			if err != nil {
				return fmt.Errorf("%w: public key", domain.ErrHexDecode)
			}
			ok, err := crypto.NewService().Verify(digest, sig, pub, domain.DefaultHashAlgorithm)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrSignatureVerificationFailed
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
	cmd.Flags().String(flagDigest, "", "digest hex (32 bytes)")
	cmd.Flags().String(flagSig, "", "signature hex (64 or 65 bytes)")
	cmd.Flags().String(flagPubkey, "", "public key hex (x||y, or SEC1)")
	_ = cmd.MarkFlagRequired(flagDigest)
	_ = cmd.MarkFlagRequired(flagSig)
	_ = cmd.MarkFlagRequired(flagPubkey)
	return cmd
}

func algorithmFlag(cmd *cobra.Command) (domain.HashAlgorithm, error) {
	raw, _ := cmd.Flags().GetString(flagAlg)
	return domain.ParseHashAlgorithm(raw)
}

func decodeDigest(s string) ([]byte, error) {
	digest, err := hexcodec.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: digest", domain.ErrHexDecode)
	}
	if len(digest) != domain.DigestSize {
		return nil, fmt.Errorf("%w: got %d bytes", domain.ErrInvalidDigestLength, len(digest))
	}
	return digest, nil
}
