package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"signalis/internal/config"
	"signalis/internal/db"
	"signalis/internal/domain"
	"signalis/internal/engine"
	"signalis/internal/migrate"
	"signalis/internal/repo"
	"signalis/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "signalis",
	Short: "Signalis CLI",
	Long: `Signalis routes property anomaly reports from collectivities to tax authorities.
Core concepts:
- Report (signalement): a property anomaly filed by a collectivity, optionally through a publisher.
- Transmission: a mutable pool of completed reports, opened per collectivity.
- Package: the immutable shipment produced when a transmission is completed; one per covering
  authority, carrying a sequential YYYY-MM-NNNN reference. Reports get sibling references.
- Authority / office: the receiving DDFIP and the desk inside it, routed by commune.
- Sandbox: transmissions flagged sandbox are packaged and referenced but never delivered.
- Event log: diary of changes, view with 'signalis log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SIGNALIS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(collectivityCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(transmissionCmd())
	rootCmd.AddCommand(packageCmd())
	rootCmd.AddCommand(territoryCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage platform config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default signalis.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	})
	return cfg
}

func collectivityCmd() *cobra.Command {
	col := &cobra.Command{Use: "collectivity", Short: "Manage collectivities"}
	col.AddCommand(collectivityCreateCmd())
	col.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List collectivities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListCollectivities(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})
	return col
}

func collectivityCreateCmd() *cobra.Command {
	var id, name, siren string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a collectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateCollectivity(ctx, id, name, siren, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "collectivity id (optional)")
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&siren, "siren", "", "SIREN number")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func reportCmd() *cobra.Command {
	report := &cobra.Command{
		Use:   "report",
		Short: "Manage reports",
		Long:  "Reports are property anomaly signalements. A report must be completed before it can join a transmission; once packaged it carries an immutable reference and flows through the authority's decision states.",
	}
	report.AddCommand(reportCreateCmd())
	report.AddCommand(reportListCmd())
	report.AddCommand(reportShowCmd())
	report.AddCommand(reportActionCmd("complete", "Mark a report completed", func(e engine.Engine, ctx context.Context, id, actor string) (domain.Report, error) {
		return e.CompleteReport(ctx, id, actor)
	}))
	report.AddCommand(reportActionCmd("approve", "Approve a report", func(e engine.Engine, ctx context.Context, id, actor string) (domain.Report, error) {
		return e.ApproveReport(ctx, id, actor)
	}))
	report.AddCommand(reportActionCmd("reject", "Reject a report", func(e engine.Engine, ctx context.Context, id, actor string) (domain.Report, error) {
		return e.RejectReport(ctx, id, actor)
	}))
	report.AddCommand(reportActionCmd("debate", "Put a report under debate", func(e engine.Engine, ctx context.Context, id, actor string) (domain.Report, error) {
		return e.DebateReport(ctx, id, actor)
	}))
	return report
}

func reportCreateCmd() *cobra.Command {
	var opts engine.ReportCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "File a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rp, err := e.CreateReport(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(rp)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "report id (optional)")
	cmd.Flags().StringVar(&opts.CollectivityID, "collectivity", "", "collectivity id")
	cmd.Flags().StringVar(&opts.PublisherID, "publisher", "", "publisher id (omit for web origin)")
	cmd.Flags().StringVar(&opts.CommuneCode, "commune", "", "INSEE commune code")
	cmd.Flags().StringVar(&opts.Anomaly, "anomaly", "", "anomaly description")
	cmd.Flags().BoolVar(&opts.Completed, "completed", false, "file as already completed")
	_ = cmd.MarkFlagRequired("collectivity")
	_ = cmd.MarkFlagRequired("commune")
	return cmd
}

func reportListCmd() *cobra.Command {
	var filters repo.ReportFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListReports(ctx, filters)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Commune", "Completed", "Transmission", "Reference"})
				for _, rp := range items {
					tw.AppendRow(table.Row{rp.ID, rp.CommuneCode, rp.Completed, deref(rp.TransmissionID), deref(rp.Reference)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filters.CollectivityID, "collectivity", "", "collectivity id")
	cmd.Flags().StringVar(&filters.TransmissionID, "transmission", "", "transmission id")
	cmd.Flags().StringVar(&filters.PackageID, "package", "", "package id")
	cmd.Flags().IntVar(&filters.Limit, "limit", 0, "max rows")
	return cmd
}

func reportShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rp, err := e.Repo.GetReport(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(rp)
			})
		},
	}
	return cmd
}

func reportActionCmd(use, short string, fn func(engine.Engine, context.Context, string, string) (domain.Report, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rp, err := fn(e, ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(rp)
			})
		},
	}
}

func transmissionCmd() *cobra.Command {
	tr := &cobra.Command{
		Use:   "transmission",
		Short: "Manage transmissions",
		Long:  "Transmissions pool completed reports. 'add' and 'remove' mutate the pool with exact accounting; 'complete' finalizes the pool into authority-addressed packages and is terminal.",
	}
	tr.AddCommand(transmissionCreateCmd())
	tr.AddCommand(transmissionListCmd())
	tr.AddCommand(transmissionShowCmd())
	tr.AddCommand(transmissionPoolCmd("add", "Add reports to the pool"))
	tr.AddCommand(transmissionPoolCmd("remove", "Remove reports from the pool"))
	tr.AddCommand(transmissionCompleteCmd())
	return tr
}

func transmissionCreateCmd() *cobra.Command {
	var collectivityID, publisherID string
	var sandbox bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a transmission",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sb *bool
			if cmd.Flags().Changed("sandbox") {
				sb = &sandbox
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTransmission(ctx, collectivityID, publisherID, viper.GetString("actor-id"), sb)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&collectivityID, "collectivity", "", "collectivity id")
	cmd.Flags().StringVar(&publisherID, "publisher", "", "publisher id")
	cmd.Flags().BoolVar(&sandbox, "sandbox", false, "sandbox run (overrides config default)")
	_ = cmd.MarkFlagRequired("collectivity")
	return cmd
}

func transmissionListCmd() *cobra.Command {
	var collectivityID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transmissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListTransmissions(ctx, collectivityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Collectivity", "Sandbox", "Completed"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.CollectivityID, t.Sandbox, deref(t.CompletedAt)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&collectivityID, "collectivity", "", "collectivity id")
	return cmd
}

func transmissionShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a transmission and its pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTransmission(ctx, args[0])
				if err != nil {
					return err
				}
				pool, err := e.Repo.ListReports(ctx, repo.ReportFilters{TransmissionID: t.ID})
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"transmission": t, "pool": pool})
			})
		},
	}
	return cmd
}

func transmissionPoolCmd(verb, short string) *cobra.Command {
	var ids []string
	cmd := &cobra.Command{
		Use:   verb + " <transmission-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(ids) == 0 {
				return fmt.Errorf("--report required at least once")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor := viper.GetString("actor-id")
				var res engine.PoolChangeResult
				var err error
				if verb == "add" {
					res, err = e.AddToTransmission(ctx, args[0], ids, actor)
				} else {
					res, err = e.RemoveFromTransmission(ctx, args[0], ids, actor)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringArrayVar(&ids, "report", []string{}, "report id (repeatable)")
	return cmd
}

func transmissionCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Finalize a transmission into packages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CompleteTransmission(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if !res.OK {
					if jsonErr := printJSONOrTable(res); jsonErr != nil {
						return jsonErr
					}
					return fmt.Errorf("validation failed: %s", strings.Join(res.Errors, "; "))
				}
				return printJSONOrTable(res)
			})
		},
	}
	return cmd
}

func packageCmd() *cobra.Command {
	pkg := &cobra.Command{Use: "package", Short: "Manage packages"}
	pkg.AddCommand(packageListCmd())
	pkg.AddCommand(packageShowCmd())
	pkg.AddCommand(packageActionCmd("assign", "Assign a package to its authority", true))
	pkg.AddCommand(packageActionCmd("return", "Return a package to the collectivity", false))
	return pkg
}

func packageListCmd() *cobra.Command {
	var filters repo.PackageFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListPackages(ctx, filters)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Reference", "Authority", "Sandbox", "Assigned", "Returned"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.Reference, p.AuthorityID, p.Sandbox, deref(p.AssignedAt), deref(p.ReturnedAt)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filters.CollectivityID, "collectivity", "", "collectivity id")
	cmd.Flags().StringVar(&filters.TransmissionID, "transmission", "", "transmission id")
	cmd.Flags().StringVar(&filters.AuthorityID, "authority", "", "authority id")
	return cmd
}

func packageShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a package and its reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetPackage(ctx, args[0])
				if err != nil {
					return err
				}
				reports, err := e.Repo.ListReports(ctx, repo.ReportFilters{PackageID: p.ID})
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"package": p, "reports": reports})
			})
		},
	}
	return cmd
}

func packageActionCmd(use, short string, assign bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor := viper.GetString("actor-id")
				var p domain.Package
				var err error
				if assign {
					p, err = e.AssignPackage(ctx, args[0], actor)
				} else {
					p, err = e.ReturnPackage(ctx, args[0], actor)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

// Seed file format for territory reference data.
type territorySeed struct {
	Communes []struct {
		CodeINSEE       string  `yaml:"code_insee"`
		Name            string  `yaml:"name"`
		DepartementCode string  `yaml:"departement_code"`
		EPCICode        *string `yaml:"epci_code"`
	} `yaml:"communes"`
	Authorities []struct {
		ID         string   `yaml:"id"`
		Name       string   `yaml:"name"`
		AutoAssign *bool    `yaml:"auto_assign"`
		Districts  []string `yaml:"districts"`
		Offices    []struct {
			ID       string   `yaml:"id"`
			Name     string   `yaml:"name"`
			Communes []string `yaml:"communes"`
		} `yaml:"offices"`
	} `yaml:"authorities"`
}

func territoryCmd() *cobra.Command {
	ter := &cobra.Command{Use: "territory", Short: "Manage territorial reference data"}
	ter.AddCommand(territorySeedCmd())
	ter.AddCommand(&cobra.Command{
		Use:   "authorities",
		Short: "List authorities with coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAuthoritiesWithCoverage(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})
	return ter
}

func territorySeedCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load communes, authorities and offices from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			var seed territorySeed
			if err := yaml.Unmarshal(data, &seed); err != nil {
				return fmt.Errorf("invalid seed yaml: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				now := time.Now().UTC().Format(time.RFC3339)
				for _, c := range seed.Communes {
					commune := domain.Commune{
						CodeINSEE:       c.CodeINSEE,
						Name:            c.Name,
						DepartementCode: c.DepartementCode,
						EPCICode:        c.EPCICode,
					}
					if err := e.Repo.InsertCommune(ctx, commune); err != nil {
						return fmt.Errorf("commune %s: %w", c.CodeINSEE, err)
					}
				}
				for _, a := range seed.Authorities {
					autoAssign := e.Config.Assignment.AutoAssignDefault
					if a.AutoAssign != nil {
						autoAssign = *a.AutoAssign
					}
					authority := domain.Authority{
						ID:         a.ID,
						Name:       a.Name,
						AutoAssign: autoAssign,
						Districts:  a.Districts,
						CreatedAt:  now,
					}
					if authority.ID == "" {
						authority.ID = uuid.New().String()
					}
					if err := e.Repo.InsertAuthority(ctx, authority); err != nil {
						return fmt.Errorf("authority %s: %w", authority.ID, err)
					}
					for _, o := range a.Offices {
						office := domain.Office{
							ID:          o.ID,
							AuthorityID: authority.ID,
							Name:        o.Name,
							Communes:    o.Communes,
							CreatedAt:   now,
						}
						if office.ID == "" {
							office.ID = uuid.New().String()
						}
						if err := e.Repo.InsertOffice(ctx, office); err != nil {
							return fmt.Errorf("office %s: %w", office.ID, err)
						}
					}
				}
				fmt.Printf("Seeded %d communes, %d authorities\n", len(seed.Communes), len(seed.Authorities))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML seed file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Logger: &logger})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Signalis API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
