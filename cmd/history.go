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
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	model2 "github.com/blnkfinance/payrecon/api/model"
)

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		log.Fatalf("Error printing result: %v\n", err)
	}
	fmt.Println(string(data))
}

// historyCommands lists recorded full-sweep runs and inspects a single run.
func historyCommands(p *payreconInstance) *cobra.Command {
	var query model2.HistoryQuery

	cmd := &cobra.Command{
		Use:   "history",
		Short: "list reconciliation runs dated between --from and --to",
		Run: func(cmd *cobra.Command, args []string) {
			if err := query.ValidateHistoryQuery(); err != nil {
				log.Fatal(err)
			}
			from, to, err := query.Range(time.Now(), p.cnf.Location())
			if err != nil {
				log.Fatal(err)
			}

			runs, err := p.payrecon.ListRuns(context.Background(), from, to, query.Limit, query.Offset)
			if err != nil {
				log.Fatal(err)
			}
			printJSON(runs)
		},
	}
	cmd.Flags().StringVar(&query.From, "from", "", "first run date, YYYY-MM-DD (default: a week before --to)")
	cmd.Flags().StringVar(&query.To, "to", "", "last run date, YYYY-MM-DD (default: today)")
	cmd.Flags().IntVar(&query.Limit, "limit", 0, "maximum number of runs to list")
	cmd.Flags().IntVar(&query.Offset, "offset", 0, "number of runs to skip")

	cmd.AddCommand(&cobra.Command{
		Use:   "show [run_id]",
		Short: "print the details recorded for a run",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			details, err := p.payrecon.GetRunDetails(context.Background(), args[0])
			if err != nil {
				log.Fatal(err)
			}
			printJSON(details)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "audit [run_id]",
		Short: "check a run's counts against its recorded details",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			audit, err := p.payrecon.AuditRun(context.Background(), args[0])
			if err != nil {
				log.Fatal(err)
			}
			printJSON(audit)
		},
	})

	return cmd
}
