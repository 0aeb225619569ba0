// Copyright 2025 vulndeck
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

// Package cliutil holds the config-and-store plumbing shared by commands.
package cliutil

import (
	"github.com/spf13/cobra"
	"github.com/vulndeck/vulndeck/pkg/config"
	"github.com/vulndeck/vulndeck/pkg/store/postgres"
)

// AddConfigFlag registers the shared --config-file flag.
func AddConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config-file", "", "Path to vulndeck.yaml file")
}

// OpenStore loads the configuration named by the command's --config-file
// flag and connects to the database. The caller owns closing the DB.
func OpenStore(cmd *cobra.Command) (*postgres.DB, *config.Config, error) {
	configPath, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := postgres.Open(cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}
