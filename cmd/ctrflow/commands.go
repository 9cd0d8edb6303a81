package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/ctrflow/internal/agents"
	"github.com/ajitpratap0/ctrflow/pkg/config"
	"github.com/ajitpratap0/ctrflow/pkg/dataset"
	"github.com/ajitpratap0/ctrflow/pkg/errors"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ctrflow v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "Agents: %s\n", strings.Join(agents.Kinds(), ", "))
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "ctrflow.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Newf(errors.ErrorTypeConfig, "%s already exists, use --force to overwrite", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}

func newImportTSVCmd(a *app) *cobra.Command {
	var input, output, head string
	var types []string

	cmd := &cobra.Command{
		Use:   "import-tsv",
		Short: "Convert a headered TSV export into a raw dataset",
		Long: `Convert a headered, tab-separated export into the raw record format.
The head column (label or sample id) becomes the first pair of every record.

Example:
  ctrflow import-tsv --input train.tsv --output data/train.raw.jsonl.gz \
    --head is_click --type price=float --type ad_params=json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := dataset.TSVSpec{Head: head, Types: make(map[string]string, len(types))}
			for _, t := range types {
				name, kind, ok := strings.Cut(t, "=")
				if !ok {
					return errors.Newf(errors.ErrorTypeValidation, "--type expects column=kind, got %q", t)
				}
				spec.Types[name] = kind
			}
			if output == "" {
				output = a.cfg.Data.RawTrain
			}
			n, err := a.importTSV(a.runContext(cmd), input, output, spec)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records into %s\n", n, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "TSV export to read (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Raw dataset to write (defaults to data.raw_train)")
	cmd.Flags().StringVar(&head, "head", "is_click", "Label or sample id column")
	cmd.Flags().StringArrayVar(&types, "type", nil, "Column kind as column=kind (int, float, string, json, auto)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newFitPipelineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fit-pipeline",
		Short: "Fit the feature pipeline on the raw training set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.step("fit-pipeline", func() error { return a.fitPipeline(a.runContext(cmd)) })
		},
	}
}

func newTransformCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "transform",
		Short: "Encode the raw train and test sets with the fitted pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.step("transform", func() error { return a.transform(a.runContext(cmd)) })
		},
	}
}

func newFitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fit",
		Short: "Train the online model on the encoded training set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.step("fit", func() error { return a.fit(a.runContext(cmd), cmd.OutOrStdout()) })
		},
	}
}

func newCVCmd(a *app) *cobra.Command {
	var folds int
	cmd := &cobra.Command{
		Use:   "cv",
		Short: "Cross-validate the online model",
		RunE: func(cmd *cobra.Command, args []string) error {
			if folds > 0 {
				a.cfg.Evaluation.Folds = folds
			}
			return a.step("cv", func() error { return a.crossValidate(a.runContext(cmd), cmd.OutOrStdout()) })
		},
	}
	cmd.Flags().IntVarP(&folds, "folds", "k", 0, "Number of folds (defaults to evaluation.folds)")
	return cmd
}

func newCurveCmd(a *app) *cobra.Command {
	var sizes []int
	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Print the learning curve of the online model",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(sizes) > 0 {
				a.cfg.Evaluation.CurveSizes = sizes
			}
			return a.step("curve", func() error { return a.curve(a.runContext(cmd), cmd.OutOrStdout()) })
		},
	}
	cmd.Flags().IntSliceVar(&sizes, "sizes", nil, "Training sizes (defaults to evaluation.curve_sizes)")
	return cmd
}

func newSubmitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Predict the encoded test set and write the submission CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.step("submit", func() error {
				n, err := a.submit(a.runContext(cmd))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d predictions to %s\n", n, a.cfg.Data.Submission)
				return nil
			})
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	var noPipeline, noTransform, noFit, noCV bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fit the pipeline, encode, train and cross-validate",
		Long: `Run every step in order: fit-pipeline, transform, fit and cv.
Each step can be skipped when its output already exists.

Example:
  ctrflow run --config ctrflow.yaml --no-pipeline`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.runContext(cmd)
			out := cmd.OutOrStdout()

			if !noPipeline {
				if err := a.step("fit-pipeline", func() error { return a.fitPipeline(ctx) }); err != nil {
					return err
				}
			}
			if !noTransform {
				if err := a.step("transform", func() error { return a.transform(ctx) }); err != nil {
					return err
				}
			}
			if !noFit {
				if err := a.step("fit", func() error { return a.fit(ctx, out) }); err != nil {
					return err
				}
			}
			if !noCV {
				if err := a.step("cv", func() error { return a.crossValidate(ctx, out) }); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noPipeline, "no-pipeline", false, "Reuse the saved pipeline")
	cmd.Flags().BoolVar(&noTransform, "no-transform", false, "Reuse the encoded datasets")
	cmd.Flags().BoolVar(&noFit, "no-fit", false, "Skip training the final model")
	cmd.Flags().BoolVar(&noCV, "no-cv", false, "Skip cross-validation")
	return cmd
}
