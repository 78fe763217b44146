// Copyright 2025 Poiesic Systems
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
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "articlevec",
		Usage: "Semantic article search and recommendation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				Value:   "config.yaml",
				EnvVars: []string{"ARTICLEVEC_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides log.level",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format (text, json); overrides log.format",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address; overrides server.addr",
					},
					&cli.BoolFlag{
						Name:  "no-scheduler",
						Usage: "Do not run the scheduled sweep even when vectorize.sweep_schedule is set",
					},
					&cli.DurationFlag{
						Name:  "init-retry",
						Usage: "Delay between model initialization attempts",
						Value: defaultInitRetry,
					},
				},
			},
			{
				Name:      "vectorize",
				Usage:     "Vectorize the given articles",
				ArgsUsage: "ARTICLE_ID...",
				Action:    vectorizeCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-embed articles whose stored vector is current",
					},
				},
			},
			{
				Name:   "sweep",
				Usage:  "Vectorize articles that have no vector yet, newest first",
				Action: sweepCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of articles; defaults to vectorize.sweep_limit",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Consider every article, not only those without a vector",
					},
				},
			},
			{
				Name:   "migrate",
				Usage:  "Re-vectorize rows left by another model version or in a legacy shape",
				Action: migrateCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of rows; defaults to vectorize.sweep_limit",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search articles by semantic similarity",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Usage: "Zero-based page index"},
					&cli.IntFlag{Name: "size", Usage: "Page size", Value: 10},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum similarity; defaults to search.threshold",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print each search stage to stderr",
					},
				},
			},
			{
				Name:   "feed",
				Usage:  "Show the recommended feed of a user",
				Action: feedCommand,
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "user", Aliases: []string{"u"}, Usage: "User id", Required: true},
					&cli.IntFlag{Name: "page", Usage: "Zero-based page index"},
					&cli.IntFlag{Name: "size", Usage: "Page size", Value: 10},
				},
			},
			{
				Name:   "fit-tfidf",
				Usage:  "Fit the TF-IDF keyword model on every article summary",
				Action: fitTFIDFCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output path; defaults to keywords.tfidf_model_path",
					},
				},
			},
			{
				Name:   "import-articles",
				Usage:  "Load articles from a YAML file into the configured store",
				Action: importArticlesCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "YAML file holding a list of articles",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of articles saved per write",
						Value: 500,
					},
				},
			},
		},
	}
}
