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

	"github.com/blinklabs-io/degree/keystore"
	"github.com/spf13/cobra"
)

func keygenCommand() *cobra.Command {
	var skeyPath, vkeyPath string
	var encrypt bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an authority key pair",
		Long: "Generate an ed25519 authority key pair. With --encrypt the signing key " +
			"is sealed with SOPS using the DEGREE_SOPS_AGE_RECIPIENTS, " +
			"DEGREE_AWS_KMS_KEY_ARNS or DEGREE_GCP_KMS_RESOURCE_ID master keys",
		Run: func(cmd *cobra.Command, args []string) {
			commonRun()
			if skeyPath == "" {
				fatal("keygen failed", errors.New("--signing-key-file is required"))
			}
			signer, err := keystore.Generate(skeyPath, vkeyPath, encrypt)
			if err != nil {
				fatal("keygen failed", err)
			}
			printJSON(map[string]string{
				"identity":              signer.Identity().String(),
				"signing_key_file":      skeyPath,
				"verification_key_file": vkeyPath,
			})
		},
	}
	cmd.Flags().StringVar(&skeyPath, "signing-key-file", "authority.skey", "output path for the signing key")
	cmd.Flags().StringVar(&vkeyPath, "verification-key-file", "authority.vkey", "output path for the verification key, empty to skip")
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "seal the signing key with SOPS")
	return cmd
}
