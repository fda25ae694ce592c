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
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/payrecon"
	"github.com/blnkfinance/payrecon/config"
	"github.com/blnkfinance/payrecon/database"
	"github.com/blnkfinance/payrecon/internal/notification"
)

// Payrecon represents the CLI application, encapsulating the root Cobra command.
type Payrecon struct {
	cmd *cobra.Command
}

// payreconInstance holds the runtime instance and its configuration for the subcommands.
type payreconInstance struct {
	payrecon *payrecon.Payrecon
	cnf      *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the Payrecon instance before any
// subcommand runs.
func preRun(app *payreconInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newPayrecon, err := setupPayrecon(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.payrecon = newPayrecon
		app.cnf = cnf

		return nil
	}
}

func setupPayrecon(cfg *config.Configuration) (*payrecon.Payrecon, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newPayrecon, err := payrecon.NewPayrecon(db)
	if err != nil {
		return nil, fmt.Errorf("error creating payrecon: %v", err)
	}
	return newPayrecon, nil
}

func NewCLI() *Payrecon {
	var configFile string
	p := &payreconInstance{}

	var rootCmd = &cobra.Command{
		Use:   "payrecon",
		Short: "Payment gateway reconciliation",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./payrecon.json", "Configuration file for payrecon")
	rootCmd.PersistentPreRunE = preRun(p, &configFile)
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if p.payrecon != nil {
			if err := p.payrecon.Close(); err != nil {
				logrus.WithError(err).Warn("error closing payrecon")
			}
		}
	}

	rootCmd.AddCommand(serverCommands(p))
	rootCmd.AddCommand(workerCommands(p))
	rootCmd.AddCommand(migrateCommands(p))
	rootCmd.AddCommand(historyCommands(p))
	rootCmd.AddCommand(configCommands(p))

	return &Payrecon{cmd: rootCmd}
}

func (p Payrecon) executeCLI() {
	if err := p.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
