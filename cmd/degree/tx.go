// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"log/slog"

	"github.com/blinklabs-io/degree/database"
	"github.com/blinklabs-io/degree/internal/config"
	"github.com/blinklabs-io/degree/internal/node"
	"github.com/blinklabs-io/degree/keystore"
	"github.com/blinklabs-io/degree/registry"
	"github.com/spf13/cobra"
)

type txFlags struct {
	keyFile  string
	signOnly bool
}

func (f *txFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.keyFile, "signing-key-file", "", "authority signing key, defaults to authorityKeyFile from the config")
	cmd.Flags().BoolVar(&f.signOnly, "sign-only", false, "print the signed transaction for POST /v1/transactions instead of executing it")
}

func loadSigner(cfg *config.Config, flags *txFlags, logger *slog.Logger) registry.Signer {
	keyFile := flags.keyFile
	if keyFile == "" {
		keyFile = cfg.AuthorityKeyFile
	}
	ks := keystore.NewKeyStore(keystore.KeyStoreConfig{
		SigningKeyPath: keyFile,
		Logger:         logger,
	})
	if err := ks.Load(); err != nil {
		fatal("failed to load authority key", err)
	}
	signer, err := ks.Signer()
	if err != nil {
		fatal("failed to load authority key", err)
	}
	return signer
}

// openLocal opens the program on the local database. Unless recovery is
// allowed, an out of step metadata index is fatal
func openLocal(cfg *config.Config, logger *slog.Logger, allowRecovery bool) *node.Local {
	local, err := node.Load(cfg, logger)
	if err != nil {
		var tsErr database.CommitTimestampError
		if !errors.As(err, &tsErr) {
			fatal("failed to open database", err)
		}
		if !allowRecovery {
			local.Close()
			fatal("metadata index is out of step, run 'degree reindex'", err)
		}
	}
	return local
}

func runInstruction(
	cmd *cobra.Command,
	flags *txFlags,
	instr registry.Instruction,
) {
	logger := commonRun()
	cfg := mustConfig(cmd)
	signer := loadSigner(cfg, flags, logger)
	if flags.signOnly {
		programID, err := cfg.ProgramID()
		if err != nil {
			fatal("invalid program", err)
		}
		tx, err := registry.Sign(programID, instr, signer)
		if err != nil {
			fatal("failed to sign transaction", err)
		}
		printJSON(tx)
		return
	}
	local := openLocal(cfg, logger, false)
	defer local.Close()
	tx, err := registry.Sign(local.Program.ProgramID(), instr, signer)
	if err != nil {
		fatal("failed to sign transaction", err)
	}
	receipt, err := local.Program.Execute(cmd.Context(), tx)
	if err != nil {
		local.Close()
		fatal(instr.Tag.String()+" failed", err)
	}
	printJSON(receipt)
}

func initCommand() *cobra.Command {
	flags := &txFlags{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the registry with the signing key as its authority",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runInstruction(cmd, flags, registry.NewInitialize())
		},
	}
	flags.register(cmd)
	return cmd
}

func addCommand() *cobra.Command {
	flags := &txFlags{}
	var contentRef string
	cmd := &cobra.Command{
		Use:   "add <diploma-id>",
		Short: "Issue a diploma",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var ref *string
			// An explicitly empty --content-ref is passed through and rejected
			if cmd.Flags().Changed("content-ref") {
				ref = &contentRef
			}
			runInstruction(cmd, flags, registry.NewAddDiploma(args[0], ref))
		},
	}
	cmd.Flags().StringVar(&contentRef, "content-ref", "", "reference to the diploma document")
	flags.register(cmd)
	return cmd
}

func revokeCommand() *cobra.Command {
	flags := &txFlags{}
	cmd := &cobra.Command{
		Use:   "revoke <diploma-id>",
		Short: "Revoke a diploma",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runInstruction(cmd, flags, registry.NewRevokeDiploma(args[0]))
		},
	}
	flags.register(cmd)
	return cmd
}
