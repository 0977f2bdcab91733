package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"voidorchestra/internal/activelearning"
	"voidorchestra/internal/config"
	"voidorchestra/internal/logging"
	"voidorchestra/internal/panoptes"
	"voidorchestra/internal/server"
	"voidorchestra/internal/watch"
	"voidorchestra/internal/zooniverse"
)

// NewRootCmd creates the root Cobra command
func NewRootCmd(root *Root) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "voidorchestra",
		Short: "Voidorchestra manages active-learning subject sets on Zooniverse",
		Long: `Voidorchestra mirrors a Zooniverse sonification project locally and keeps
its workflow's priority subject sets balanced against machine classifier
confidence, so volunteers spend their time where the model is least sure.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if root.debug {
				root.log = logging.New("debug", root.cfg.Logging.Format)
			} else if root.verbose {
				root.log = logging.New("info", root.cfg.Logging.Format)
			}
			if root.commitEvery < 1 {
				root.commitEvery = 1
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&root.verbose, "verbose", "v", false, "enable informational logging")
	rootCmd.PersistentFlags().BoolVar(&root.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&root.commitEvery, "commit-every", root.cfg.Sync.CommitEvery, "commit mirror changes every N subjects")

	rootCmd.AddCommand(newInitCmd(root))
	rootCmd.AddCommand(newSyncCmd(root))
	rootCmd.AddCommand(newWeightsCmd(root))
	rootCmd.AddCommand(newCheckCmd(root))
	rootCmd.AddCommand(newWatchCmd(root))
	rootCmd.AddCommand(newServeCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

func newInitCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the local mirror database",
		RunE: func(cmd *cobra.Command, args []string) error {
			// storage.New already ran the schema migration when the root
			// wiring opened the store.
			root.log.Info("mirror database ready", "path", root.cfg.Paths.Database)
			fmt.Fprintf(cmd.OutOrStdout(), "Database initialised at %s\n", root.cfg.Paths.Database)
			return nil
		},
	}
}

func newSyncCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror remote platform state into the local database",
	}

	var (
		projectID    int64
		workflowID   int64
		subjectSetID int64
	)

	subjectSetsCmd := &cobra.Command{
		Use:   "subject-sets",
		Short: "Mirror subject sets for the configured project",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer := zooniverse.NewSyncer(root.store, root.client, root.log, root.hub)
			filter := panoptes.ListFilter{
				ProjectID: root.sourceID(projectID, root.cfg.Zooniverse.ProjectID),
			}
			n, err := syncer.SyncSubjectSets(signalContext(), filter)
			if err != nil {
				return err
			}
			root.log.Info("subject set sync complete", "synced", n)
			return nil
		},
	}

	subjectsCmd := &cobra.Command{
		Use:   "subjects",
		Short: "Mirror subjects and their retirement state",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer := zooniverse.NewSyncer(root.store, root.client, root.log, root.hub)
			wf := root.sourceID(workflowID, root.cfg.Zooniverse.WorkflowID)
			filter := panoptes.ListFilter{
				ProjectID:    root.sourceID(projectID, root.cfg.Zooniverse.ProjectID),
				SubjectSetID: subjectSetID,
			}
			n, err := syncer.SyncSubjects(signalContext(), filter, wf, root.commitEvery)
			if err != nil {
				return err
			}
			root.log.Info("subject sync complete", "synced", n)
			return nil
		},
	}

	classificationsCmd := &cobra.Command{
		Use:   "classifications",
		Short: "Mirror consensus reductions for the configured workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer := zooniverse.NewSyncer(root.store, root.client, root.log, root.hub)
			wf := root.sourceID(workflowID, root.cfg.Zooniverse.WorkflowID)
			n, err := syncer.SyncClassifications(signalContext(), wf, root.commitEvery)
			if err != nil {
				return err
			}
			root.log.Info("classification sync complete", "synced", n)
			return nil
		},
	}

	cmd.PersistentFlags().Int64Var(&projectID, "project", 0, "project id (defaults to configured project)")
	cmd.PersistentFlags().Int64Var(&workflowID, "workflow", 0, "workflow id (defaults to configured workflow)")
	subjectsCmd.Flags().Int64Var(&subjectSetID, "subject-set", 0, "restrict to one subject set")

	cmd.AddCommand(subjectSetsCmd, subjectsCmd, classificationsCmd)
	return cmd
}

func newWeightsCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Manage the weighted sampling scheme",
	}

	var (
		projectID  int64
		workflowID int64
		weighting  string
	)

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Rebalance priority subject sets from classifier confidence",
		Long: `Reconcile the workflow's priority subject sets, move every active subject
into the set matching its classifier confidence, and write the selection
weighting into the workflow configuration. Safe to re-run; an interrupted
update resumes from the last committed batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			literal := weighting
			if literal == "" {
				literal = root.cfg.ActiveLearning.SelectionWeighting
			}
			weights, err := config.ParseSelectionWeighting(literal)
			if err != nil {
				return err
			}

			engine := activelearning.New(root.store, root.client, root.log, root.hub)
			return engine.UpdateWeightedSamplingScheme(signalContext(), activelearning.SchemeParams{
				ProjectID:       root.sourceID(projectID, root.cfg.Zooniverse.ProjectID),
				WorkflowID:      root.sourceID(workflowID, root.cfg.Zooniverse.WorkflowID),
				NumPrioritySets: root.cfg.ActiveLearning.NumPrioritySets,
				Weights:         weights,
				CommitEvery:     root.commitEvery,
			})
		},
	}

	updateCmd.Flags().Int64Var(&projectID, "project", 0, "project id (defaults to configured project)")
	updateCmd.Flags().Int64Var(&workflowID, "workflow", 0, "workflow id (defaults to configured workflow)")
	updateCmd.Flags().StringVar(&weighting, "weighting", "", "comma separated selection weights (defaults to configured weighting)")

	cmd.AddCommand(updateCmd)
	return cmd
}

func newCheckCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify remote resources are reachable",
	}

	var workflowID int64

	workflowCmd := &cobra.Command{
		Use:   "workflow",
		Short: "Fetch the configured workflow and report its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := signalContext()
			wf := root.sourceID(workflowID, root.cfg.Zooniverse.WorkflowID)

			workflow, err := root.client.FindWorkflow(ctx, wf)
			if err != nil {
				return fmt.Errorf("workflow %d lookup failed: %w", wf, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Workflow %d: %s\n", workflow.ID, workflow.DisplayName)
			fmt.Fprintf(out, "Linked subject sets: %d\n", len(workflow.SubjectSetIDs))
			if raw, ok := workflow.Configuration["subject_set_weights"]; ok {
				fmt.Fprintf(out, "Selection weighting: %v\n", raw)
			} else {
				fmt.Fprintln(out, "Selection weighting: not configured")
			}
			return nil
		},
	}

	workflowCmd.Flags().Int64Var(&workflowID, "workflow", 0, "workflow id (defaults to configured workflow)")

	cmd.AddCommand(workflowCmd)
	return cmd
}

func newWatchCmd(root *Root) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the incoming directory and register new lightcurves",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = root.cfg.Paths.IncomingDir
			}

			watcher, err := watch.New(dir, root.store, root.log)
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			if err := watcher.Start(); err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}

			ctx := signalContext()
			<-ctx.Done()
			return watcher.Stop()
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory to watch (defaults to configured incoming dir)")
	return cmd
}

func newServeCmd(root *Root) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only status server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = root.cfg.Server.Addr
			}
			srv := server.New(addr, root.store, root.hub, root.log)
			return srv.Start(signalContext())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to configured address)")
	return cmd
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration:\n\n")
			fmt.Fprintf(out, "Endpoint:            %s\n", root.cfg.Zooniverse.Endpoint)
			fmt.Fprintf(out, "Project ID:          %d\n", root.cfg.Zooniverse.ProjectID)
			fmt.Fprintf(out, "Workflow ID:         %d\n", root.cfg.Zooniverse.WorkflowID)
			fmt.Fprintf(out, "Priority Sets:       %d\n", root.cfg.ActiveLearning.NumPrioritySets)
			fmt.Fprintf(out, "Selection Weighting: %s\n", root.cfg.ActiveLearning.SelectionWeighting)
			fmt.Fprintf(out, "Commit Every:        %d\n", root.cfg.Sync.CommitEvery)
			fmt.Fprintf(out, "Database:            %s\n", root.cfg.Paths.Database)
			fmt.Fprintf(out, "Incoming Dir:        %s\n", root.cfg.Paths.IncomingDir)
			fmt.Fprintf(out, "Server Addr:         %s\n", root.cfg.Server.Addr)
			fmt.Fprintf(out, "Log Level:           %s\n", root.cfg.Logging.Level)
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			weights, err := config.ParseSelectionWeighting(root.cfg.ActiveLearning.SelectionWeighting)
			if err != nil {
				return err
			}
			if len(weights) != root.cfg.ActiveLearning.NumPrioritySets {
				return fmt.Errorf("selection_weighting has %d entries but num_priority_sets is %d",
					len(weights), root.cfg.ActiveLearning.NumPrioritySets)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	}

	cmd.AddCommand(showCmd, validateCmd)
	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("voidorchestra v%s\n", strings.TrimPrefix(Version, "v"))
		},
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}
