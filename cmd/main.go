/*
Copyright 2025 Tradielink Authors.

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

	"github.com/tradielink/tradielink"
	"github.com/tradielink/tradielink/config"
	"github.com/tradielink/tradielink/database"
	"github.com/tradielink/tradielink/internal/notification"
)

// Tradielink is the CLI application wrapping the root Cobra command.
type Tradielink struct {
	cmd *cobra.Command
}

// tradielinkInstance holds the service instance and configuration shared
// by the CLI subcommands.
type tradielinkInstance struct {
	service *tradielink.Tradielink
	cnf     *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads configuration and initializes the service before any
// subcommand executes.
func preRun(app *tradielinkInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("tradielink.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		svc, err := setupService(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.service = svc
		app.cnf = cnf

		return nil
	}
}

func setupService(cfg *config.Configuration) (*tradielink.Tradielink, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	svc, err := tradielink.NewTradielink(db)
	if err != nil {
		return nil, fmt.Errorf("error creating tradielink: %v", err)
	}
	return svc, nil
}

// NewCLI builds the command tree: server, workers and migrations.
func NewCLI() *Tradielink {
	var configFile string
	b := &tradielinkInstance{}

	var rootCmd = &cobra.Command{
		Use:   "tradielink",
		Short: "Home services marketplace with escrow settlement",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./tradielink.json", "Configuration file for tradielink")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))

	return &Tradielink{cmd: rootCmd}
}

func (w Tradielink) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
