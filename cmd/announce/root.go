package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shineum/release-announcer/internal/pipeline"
)

// Build information, set with -ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// streams are the terminal handles used by the commands.
type streams struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func defaultStreams() streams {
	return streams{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
}

// flags holds the persistent command line options. Only flags the user set
// override the configuration file.
type flags struct {
	configPath string
	mailto     []string
	subject    string
	file       string
	parts      []string
	force      bool
	trial      bool
	noenv      bool
	provider   string
	logLevel   string
	logFormat  string
	noDotenv   bool
}

func newRootCommand(st streams) *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "announce",
		Short:         "Announce a release by email",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Path to YAML configuration file (default announce.yaml if present)")
	pf.StringArrayVar(&f.mailto, "mailto", nil, "Recipient address (repeatable)")
	pf.StringVar(&f.subject, "subject", "", "Subject line (default \"[ANN] <title> v<version> released\")")
	pf.StringVar(&f.file, "file", "", "Message file glob; the first match is used as the body")
	pf.StringSliceVar(&f.parts, "parts", nil, "Parts assembled when no message file is found")
	pf.BoolVar(&f.force, "force", false, "Send without asking for confirmation")
	pf.BoolVar(&f.trial, "trial", false, "Report what would be sent instead of sending")
	pf.BoolVar(&f.noenv, "noenv", false, "Ignore EMAIL_* environment variables")
	pf.StringVar(&f.provider, "provider", "", "Delivery provider: smtp, ses, graph or stdout")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
	pf.BoolVar(&f.noDotenv, "no-dotenv", false, "Do not load variables from .env")

	root.AddCommand(
		newRunCommand(f, st),
		newPrepareCommand(f, st),
		newPreviewCommand(f, st),
		newVersionCommand(st),
	)
	return root
}

func newRunCommand(f *flags, st streams) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the prepare and promote stations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			destination, err := pipeline.ParseStation(to)
			if err != nil {
				return err
			}

			a, err := newApp(cmd, f, st)
			if err != nil {
				return err
			}

			outcome, err := pipeline.Run(cmd.Context(), a.composer, destination)
			a.logger.Debug("pipeline finished", "destination", destination, "outcome", outcome.String())
			return err
		},
	}

	cmd.Flags().StringVar(&to, "to", string(pipeline.StationPromote), "Last station to run: prepare or promote")
	return cmd
}

func newPrepareCommand(f *flags, st streams) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Ask for confirmation without sending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, f, st)
			if err != nil {
				return err
			}

			// Confirm as if headed for promote; nothing is sent.
			outcome, err := a.composer.Prepare(cmd.Context(), pipeline.StationPromote)
			if err != nil {
				return err
			}
			a.logger.Debug("prepare finished", "outcome", outcome.String())
			if outcome.Halts() {
				return fmt.Errorf("%s: %w", pipeline.StationPrepare, pipeline.ErrHalted)
			}
			return nil
		},
	}
}

func newPreviewCommand(f *flags, st streams) *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Print the announcement without sending it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, f, st)
			if err != nil {
				return err
			}
			return a.composer.Preview(st.out)
		},
	}
}

func newVersionCommand(st streams) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(st.out, "announce %s (commit: %s, built: %s)\n", version, gitCommit, buildDate)
			return err
		},
	}
}
