// Command pouwchaind runs one node of the permissionless proof-carrying
// blockchain: the listener, the gossip and sync tasks, and the optional
// JSON-RPC façade, until it receives SIGINT or SIGTERM. It has no
// interactive operator shell.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pouwchain/pouwchain/internal/circuits"
	"github.com/pouwchain/pouwchain/internal/config"
	"github.com/pouwchain/pouwchain/internal/crypto"
	"github.com/pouwchain/pouwchain/internal/node"
	"github.com/pouwchain/pouwchain/internal/nodelog"
	"github.com/pouwchain/pouwchain/internal/prover"
	"github.com/pouwchain/pouwchain/internal/rpc"
)

var log = nodelog.For("main")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pouwchaind",
		Short: "Run a proof-carrying-transaction blockchain node",
	}
	root.PersistentFlags().Bool("verbose", false, "enable debug-level logging")
	root.AddCommand(newRunCmd())
	root.AddCommand(newKeygenCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var configPath, circuitDir, proverBinary, rpcAddr, keyPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the node: listener, sync tasks, and optional RPC façade",
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			nodelog.SetVerbose(verbose)
			return runNode(configPath, circuitDir, proverBinary, rpcAddr, keyPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.json", "path to the node configuration file")
	cmd.Flags().StringVar(&circuitDir, "circuits", "", "path to the circuit directory root (overrides the config file's circuit_directory)")
	cmd.Flags().StringVar(&proverBinary, "prover", "zokrates", "name or path of the circuit toolchain binary")
	cmd.Flags().StringVar(&rpcAddr, "rpc-addr", "", "address to serve the optional JSON-RPC façade on (empty disables it)")
	cmd.Flags().StringVar(&keyPath, "key", "node.key", "path to this node's secp256k1 signing key (hex-encoded, created if absent)")
	return cmd
}

func newKeygenCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new signing key and print its address",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(outPath)
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "node.key", "file to write the new hex-encoded private key to")
	return cmd
}

func runNode(configPath, circuitDir, proverBinary, rpcAddr, keyPath string) error {
	log.Info("loading configuration")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.WithField("genesis_height", cfg.GenesisBlock.Header.SerialID).Info("configuration loaded")

	if circuitDir == "" {
		circuitDir = cfg.CircuitDirectory
	}
	if circuitDir == "" {
		circuitDir = "circuit"
	}
	log.WithField("dir", circuitDir).Info("discovering circuits")
	reg, err := circuits.Discover(circuitDir)
	if err != nil {
		return fmt.Errorf("discovering circuits: %w", err)
	}
	log.WithField("count", len(reg.Hashes())).Info("circuits discovered")

	minerKey, err := loadOrCreateKey(keyPath)
	if err != nil {
		return fmt.Errorf("loading signing key: %w", err)
	}
	addr := crypto.Address(minerKey)
	log.WithField("address", fmt.Sprintf("%x", addr)).Info("signing key ready")

	n := node.New(node.Options{
		Config:   cfg,
		MinerKey: minerKey,
		Circuits: reg,
		Prover:   prover.NewShellProver(proverBinary),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("starting node: %w", err)
	}
	log.Info("node started")

	if rpcAddr == "" {
		rpcAddr = cfg.RPCAddress
	}
	if rpcAddr != "" {
		server := &rpc.Server{Chain: n.Chain, CoinPool: n.CoinPool, ProofPool: n.ProofPool, Circuits: n.Circuits}
		go func() {
			log.WithField("addr", rpcAddr).Info("serving JSON-RPC")
			if err := serveRPC(rpcAddr, server); err != nil {
				log.WithError(err).Error("RPC server stopped")
			}
		}()
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	log.WithField("signal", sig.String()).Info("shutting down")

	cancel()
	n.Stop()
	log.Info("node stopped")
	return nil
}

func runKeygen(outPath string) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	if err := writeKey(outPath, key); err != nil {
		return err
	}
	addr := crypto.Address(key)
	fmt.Printf("wrote key to %s, address %x\n", outPath, addr)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Fatal("pouwchaind exited with error")
	}
}
