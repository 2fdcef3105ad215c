package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"codeberg.org/snonux/bn2en/internal/cli"
	"codeberg.org/snonux/bn2en/internal/processor"
)

func main() {
	// Create flags instance
	flags := cli.NewFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create root command
	rootCmd := cli.CreateRootCommand(flags, &runner{ctx: ctx, flags: flags})

	// Set up command initialization
	cobra.OnInitialize(func() {
		cli.InitConfig(flags.CfgFile)
	})
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cli.ApplyConfig(flags)
		// Arguments are valid by now, runtime errors need no usage text
		cmd.SilenceUsage = true
	}

	// Execute command
	if err := rootCmd.Execute(); err != nil {
		stop()
		os.Exit(1)
	}
}

// runner creates a processor for each command
type runner struct {
	ctx   context.Context
	flags *cli.Flags
}

func (r *runner) with(cmd *cobra.Command, f func(p *processor.Processor) error) error {
	p, err := processor.NewProcessor(r.ctx, r.flags, processor.WithOutput(cmd.OutOrStdout()), processor.WithInput(cmd.InOrStdin()))
	if err != nil {
		return err
	}
	defer p.Close()
	return f(p)
}

func (r *runner) Interactive(cmd *cobra.Command) error {
	return r.with(cmd, func(p *processor.Processor) error {
		return p.RunInteractive(r.ctx)
	})
}

func (r *runner) Translate(cmd *cobra.Command, text string) error {
	return r.with(cmd, func(p *processor.Processor) error {
		return p.TranslateText(r.ctx, text)
	})
}

func (r *runner) Download(cmd *cobra.Command) error {
	return r.with(cmd, func(p *processor.Processor) error {
		return p.Download(r.ctx)
	})
}

func (r *runner) Batch(cmd *cobra.Command) error {
	return r.with(cmd, func(p *processor.Processor) error {
		return p.ProcessBatch(r.ctx)
	})
}

func (r *runner) Models(cmd *cobra.Command, repoID string) error {
	return r.with(cmd, func(p *processor.Processor) error {
		return p.ListModels(r.ctx, repoID)
	})
}

func (r *runner) History(cmd *cobra.Command) error {
	return r.with(cmd, func(p *processor.Processor) error {
		return p.ShowHistory(r.ctx)
	})
}

func (r *runner) Export(cmd *cobra.Command) error {
	return r.with(cmd, func(p *processor.Processor) error {
		return p.Export(r.ctx)
	})
}
