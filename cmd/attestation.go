package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// attestationCmd represents the command to wait for a Circle attestation
var attestationCmd = &cobra.Command{
	Use:   "attestation",
	Short: "Wait for Circle to attest a burn message",
	Long: `Polls the Circle attestation service for the keccak256 hash of a
MessageSent payload until the attestation is complete, then prints it.

Polling only stops on success or interruption.`,
	RunE: runAttestation,
}

func init() {
	rootCmd.AddCommand(attestationCmd)

	attestationCmd.Flags().String(
		"hash",
		"",
		"Message hash, 0x-prefixed (required)")

	attestationCmd.MarkFlagRequired("hash")
}

func runAttestation(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)

	hashRaw, _ := cmd.Flags().GetString("hash")
	hashBytes, err := hexutil.Decode(hashRaw)
	if err != nil || len(hashBytes) != common.HashLength {
		return fmt.Errorf("invalid message hash %q", hashRaw)
	}
	hash := common.BytesToHash(hashBytes)

	logger.Info("Waiting for Circle attestation", zap.String("messageHash", hash.Hex()))
	attestation, err := newCirclePoller(logger).Poll(cmd.Context(), hash)
	if err != nil {
		return err
	}

	fmt.Println(hexutil.Encode(attestation))
	return nil
}
