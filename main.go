package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nstehr/vimy/vimy-faction/agent"
	"github.com/nstehr/vimy/vimy-faction/ipc"
	"github.com/nstehr/vimy/vimy-faction/journal"
	"github.com/nstehr/vimy/vimy-faction/profile"
	"github.com/nstehr/vimy/vimy-faction/sample"
)

const banner = `
██╗   ██╗██╗███╗   ███╗██╗   ██╗
██║   ██║██║████╗ ████║╚██╗ ██╔╝
██║   ██║██║██╔████╔██║ ╚████╔╝
╚██╗ ██╔╝██║██║╚██╔╝██║  ╚██╔╝
 ╚████╔╝ ██║██║ ╚═╝ ██║   ██║
  ╚═══╝  ╚═╝╚═╝     ╚═╝   ╚═╝

Autonomous Faction Controller`

func main() {
	rootCmd := &cobra.Command{
		Use:   "vimy-faction",
		Short: "Autonomous RTS faction controller",
		Long: `Runs one AI per game connection. Each AI keeps its faction's units and
buildings at the targets of its profile, gathers resources, expands and
launches attack campaigns.`,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(serveCmd(), profileCmd(), journalCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var (
		socketPath  string
		profilePath string
		defaultName string
		journalPath string
		debug       bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Listen for game connections on a unix socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
			fmt.Println(banner)

			profiles, err := profile.Load(profilePath)
			if err != nil {
				return err
			}
			if _, err := profiles.Get(defaultName); err != nil {
				return err
			}
			opts := agent.Options{Profiles: profiles, DefaultProfile: defaultName}
			if journalPath != "" {
				store, err := journal.Open(journalPath)
				if err != nil {
					return err
				}
				defer store.Close()
				opts.Journal = store
			}
			return serve(cmd.Context(), socketPath, opts)
		},
	}
	cmd.Flags().StringVarP(&socketPath, "socket", "s", "/tmp/vimy-faction.sock", "Unix socket to listen on")
	cmd.Flags().StringVarP(&profilePath, "profile", "p", "", "YAML file with extra or replacement profiles")
	cmd.Flags().StringVarP(&defaultName, "default", "d", "balanced", "Profile used when hello names none")
	cmd.Flags().StringVarP(&journalPath, "journal", "j", "", "SQLite decision journal (empty disables)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log every planner decision")
	return cmd
}

func serve(parent context.Context, socketPath string, opts agent.Options) error {
	slog.Info("starting vimy-faction", "profiles", opts.Profiles.Names(), "default", opts.DefaultProfile, "journal", opts.Journal != nil)

	// Unix sockets leave behind a file on unclean shutdown; remove it so we can rebind.
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("clean up socket %s: %w", socketPath, err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	slog.Info("listening on domain socket", "path", socketPath)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					slog.Error("failed to accept connection", "error", err)
					continue
				}
			}
			slog.Info("new connection accepted")
			go handleConn(conn, opts)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

func handleConn(conn net.Conn, opts agent.Options) {
	c := ipc.NewConnection(conn, nil)
	a := agent.New(c, opts)
	defer a.Close()
	c.RegisterHandler(ipc.TypeHello, func(env ipc.Envelope) (*ipc.Envelope, error) {
		resp, err := a.HandleHello(env)
		c.Player = a.Player
		return resp, err
	})
	c.RegisterHandler(ipc.TypeGameState, a.HandleGameState)
	c.RegisterHandler(ipc.TypeGoodbye, a.HandleGoodbye)
	if err := c.ReadLoop(); err != nil {
		slog.Error("connection failed", "player", c.Player, "error", err)
	}
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect AI profiles",
	}

	var profilePath string
	check := &cobra.Command{
		Use:   "check [name]",
		Short: "Validate profiles and print their regulator targets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failColor := color.New(color.FgRed, color.Bold)
			profiles, err := profile.Load(profilePath)
			if err != nil {
				failColor.Println("✗ profiles invalid")
				return err
			}
			names := profiles.Names()
			if len(args) == 1 {
				names = args
			}
			for _, name := range names {
				p, err := profiles.Get(name)
				if err != nil {
					failColor.Printf("✗ %s\n", name)
					return err
				}
				printProfile(os.Stdout, p)
			}
			return nil
		},
	}
	check.Flags().StringVarP(&profilePath, "profile", "p", "", "YAML file with extra or replacement profiles")
	cmd.AddCommand(check)
	return cmd
}

func printProfile(w io.Writer, p *profile.Profile) {
	titleColor := color.New(color.FgCyan, color.Bold)
	successColor := color.New(color.FgGreen, color.Bold)

	titleColor.Fprintf(w, "\n%s (seed %d)\n", p.Name, p.Seed)
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Code", "Kind", "Category", "Min", "Max", "Ratio", "Pending", "Cooldown", "Auto", "Placement"}),
	)
	rows := func(kind profile.EntityKind, list []profile.RegulatorConfig) {
		for _, cfg := range list {
			category := ""
			if ent, ok := p.Entity(cfg.Code); ok {
				category = ent.Category
			}
			ratio, placement := "", ""
			if kind == profile.KindUnit {
				ratio = formatRange(cfg.Ratio)
			} else {
				placement = cfg.Placement.Strategy
				if cfg.Placement.Target != "" {
					placement += ":" + cfg.Placement.Target
				}
			}
			table.Append([]string{
				cfg.Code,
				string(kind),
				category,
				formatIntRange(cfg.Min),
				formatIntRange(cfg.Max),
				ratio,
				fmt.Sprintf("%d", cfg.MaxPending),
				formatRange(cfg.Cooldown),
				fmt.Sprintf("%v", cfg.AutoCreate),
				placement,
			})
		}
	}
	rows(profile.KindUnit, p.Units)
	rows(profile.KindBuilding, p.Buildings)
	table.Render()

	successColor.Fprintf(w, "✓ %s: %d catalog entries, %d groups, attack %v, territory %v\n",
		p.Name, len(p.Catalog), len(p.Groups), p.Attack.Enabled, p.Territory.Enabled)
}

func formatRange(r sample.Range) string {
	if r.Min == r.Max {
		return fmt.Sprintf("%g", r.Min)
	}
	return fmt.Sprintf("%g-%g", r.Min, r.Max)
}

func formatIntRange(r sample.IntRange) string {
	if r.Min == r.Max {
		return fmt.Sprintf("%d", r.Min)
	}
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

func journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Read the decision journal",
	}

	var dbPath string
	cmd.PersistentFlags().StringVar(&dbPath, "db", "vimy-faction.db", "SQLite decision journal")

	var (
		outPath string
		filter  journal.Filter
	)
	export := &cobra.Command{
		Use:   "export",
		Short: "Write journal entries as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := journal.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			entries, err := store.Entries(filter)
			if err != nil {
				return err
			}

			var out io.Writer = os.Stdout
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer f.Close()
				out = f
			}
			if err := journal.ExportCSV(out, entries); err != nil {
				return err
			}
			if out != os.Stdout {
				color.New(color.FgGreen, color.Bold).Printf("✓ %d entries written to %s\n", len(entries), outPath)
			}
			return nil
		},
	}
	export.Flags().StringVarP(&outPath, "out", "o", "-", "CSV file, - for stdout")
	export.Flags().StringVar(&filter.Match, "match", "", "Only this match")
	export.Flags().StringVar(&filter.Faction, "faction", "", "Only this faction")
	export.Flags().StringVar(&filter.Kind, "kind", "", "Only this decision kind")

	matches := &cobra.Command{
		Use:   "matches",
		Short: "List the matches in the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := journal.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			ids, err := store.Matches()
			if err != nil {
				return err
			}
			table := tablewriter.NewTable(os.Stdout, tablewriter.WithHeader([]string{"Match", "Decisions"}))
			for _, id := range ids {
				entries, err := store.Entries(journal.Filter{Match: id})
				if err != nil {
					return err
				}
				table.Append([]string{id, fmt.Sprintf("%d", len(entries))})
			}
			table.Render()
			return nil
		},
	}

	cmd.AddCommand(export, matches)
	return cmd
}
