/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/payrecon"
	"github.com/blnkfinance/payrecon/database"
)

func migrateCommands(p *payreconInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply or roll back the run ledger schema",
	}

	cmd.AddCommand(migrateUpCommands(p))
	cmd.AddCommand(migrateDownCommands(p))

	return cmd
}

func migrationSource() migrate.MigrationSource {
	return migrate.EmbedFileSystemMigrationSource{
		FileSystem: payrecon.SQLFiles,
		Root:       "sql",
	}
}

func migrateUpCommands(p *payreconInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use: "up",
		Run: func(cmd *cobra.Command, args []string) {
			db, err := database.ConnectDB(p.cnf.DataSource.Dns)
			if err != nil {
				log.Printf("Error connecting to database: %v", err)
				return
			}
			defer db.Close()

			n, err := migrate.Exec(db, "postgres", migrationSource(), migrate.Up)
			if err != nil {
				log.Printf("Error migrating up: %v", err)
			} else {
				fmt.Printf("Applied %d migrations!\n", n)
			}
		},
	}

	return cmd
}

func migrateDownCommands(p *payreconInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use: "down",
		Run: func(cmd *cobra.Command, args []string) {
			db, err := database.ConnectDB(p.cnf.DataSource.Dns)
			if err != nil {
				log.Printf("Error connecting to database: %v", err)
				return
			}
			defer db.Close()

			n, err := migrate.Exec(db, "postgres", migrationSource(), migrate.Down)
			if err != nil {
				log.Printf("Error migrating down: %v", err)
			} else {
				fmt.Printf("Rolled back %d migrations!\n", n)
			}
		},
	}

	return cmd
}
