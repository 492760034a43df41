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

	"github.com/blinklabs-io/degree/database/models"
	"github.com/blinklabs-io/degree/registry"
	"github.com/spf13/cobra"
)

func showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [diploma-id]",
		Short: "Show a diploma, or the registry when no id is given",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			logger := commonRun()
			local := openLocal(mustConfig(cmd), logger, false)
			defer local.Close()
			var ret any
			var err error
			if len(args) == 0 {
				ret, err = local.Program.GetRegistry(cmd.Context())
			} else {
				var diploma *registry.Diploma
				diploma, err = local.Program.GetDiploma(cmd.Context(), args[0])
				if err == nil {
					ret = struct {
						*registry.Diploma
						Status string `json:"status"`
					}{diploma, diploma.Status()}
				}
			}
			if err != nil {
				local.Close()
				fatal("show failed", err)
			}
			printJSON(ret)
		},
	}
}

func listCommand() *cobra.Command {
	var status, authority string
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List diplomas in issue order",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			logger := commonRun()
			opts := registry.ListOptions{
				Offset: offset,
				Limit:  limit,
			}
			switch status {
			case "":
			case models.DiplomaStatusActive, models.DiplomaStatusRevoked:
				verified := status == models.DiplomaStatusActive
				opts.Verified = &verified
			default:
				fatal("list failed", errors.New("status must be active or revoked"))
			}
			if authority != "" {
				identity, err := registry.ParseIdentity(authority)
				if err != nil {
					fatal("list failed", err)
				}
				opts.Authority = &identity
			}
			local := openLocal(mustConfig(cmd), logger, false)
			defer local.Close()
			page, err := local.Program.ListDiplomas(cmd.Context(), opts)
			if err != nil {
				local.Close()
				fatal("list failed", err)
			}
			printJSON(page)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only list active or revoked diplomas")
	cmd.Flags().StringVar(&authority, "authority", "", "only list diplomas issued by this identity")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of diplomas to skip")
	cmd.Flags().IntVar(&limit, "limit", registry.DefaultListLimit, "maximum number of diplomas to list")
	return cmd
}

func historyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <diploma-id>",
		Short: "Show the committed instructions for a diploma",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			logger := commonRun()
			local := openLocal(mustConfig(cmd), logger, false)
			defer local.Close()
			entries, err := local.Program.DiplomaHistory(cmd.Context(), args[0])
			if err != nil {
				local.Close()
				fatal("history failed", err)
			}
			printJSON(entries)
		},
	}
}

func reindexCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the metadata index from the account store",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			logger := commonRun()
			local := openLocal(mustConfig(cmd), logger, true)
			defer local.Close()
			count, err := local.Program.Reindex(cmd.Context())
			if err != nil {
				local.Close()
				fatal("reindex failed", err)
			}
			printJSON(map[string]int{"diplomas": count})
		},
	}
}
