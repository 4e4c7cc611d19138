package main

import (
	"fmt"
	"io"
	"strings"

	"qp-spc/internal/evaluator"
	"qp-spc/internal/models"

	"github.com/spf13/cobra"
)

type checkOptions struct {
	size      int
	lsl       float64
	usl       float64
	lcl       float64
	ucl       float64
	susl      float64
	defects   int
	attribute bool
}

func checkCmd() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check [raw input...]",
		Short: "Evaluate one sample offline and print its statistics",
		Example: `  qp-spc check --size 5 --lsl 9 --usl 11 --ucl 10.5 "10,1 10,0 9,9 10 10,2"
  qp-spc check --attribute --size 20 --defects 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			limits := models.Limits{}
			flags := cmd.Flags()
			if flags.Changed("lsl") {
				limits.LSL = &opts.lsl
			}
			if flags.Changed("usl") {
				limits.USL = &opts.usl
			}
			if flags.Changed("lcl") {
				limits.LCL = &opts.lcl
			}
			if flags.Changed("ucl") {
				limits.UCL = &opts.ucl
			}
			if flags.Changed("susl") {
				limits.SUSL = &opts.susl
			}
			return runCheck(cmd.OutOrStdout(), opts, limits, strings.Join(args, " "))
		},
	}

	cmd.Flags().IntVar(&opts.size, "size", 0, "required sample size (0: any)")
	cmd.Flags().Float64Var(&opts.lsl, "lsl", 0, "lower specification limit")
	cmd.Flags().Float64Var(&opts.usl, "usl", 0, "upper specification limit")
	cmd.Flags().Float64Var(&opts.lcl, "lcl", 0, "lower control limit")
	cmd.Flags().Float64Var(&opts.ucl, "ucl", 0, "upper control limit")
	cmd.Flags().Float64Var(&opts.susl, "susl", 0, "upper limit for the sample standard deviation")
	cmd.Flags().IntVar(&opts.defects, "defects", 0, "defect count (attribute characteristics)")
	cmd.Flags().BoolVar(&opts.attribute, "attribute", false, "evaluate as an attribute characteristic")
	return cmd
}

func runCheck(out io.Writer, opts checkOptions, limits models.Limits, raw string) error {
	var eval evaluator.Evaluation
	var err error

	if opts.attribute {
		if opts.size <= 0 {
			return fmt.Errorf("--size is required for attribute characteristics")
		}
		if opts.defects < 0 || opts.defects > opts.size {
			return fmt.Errorf("--defects must be between 0 and %d", opts.size)
		}
		eval, err = evaluator.EvaluateAttribute(opts.defects, opts.size)
		if err != nil {
			return err
		}
	} else {
		values := evaluator.ParseSampleInput(raw)
		if err := evaluator.ValidateSampleSize(values, opts.size); err != nil {
			return err
		}
		eval, err = evaluator.EvaluateVariable(values, limits)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "values:   %v\n", values)
	}

	fmt.Fprintf(out, "mean:     %.6g\n", eval.Mean)
	fmt.Fprintf(out, "stddev:   %.6g\n", eval.StdDev)
	fmt.Fprintf(out, "status:   %s\n", eval.Status())
	fmt.Fprintf(out, "severity: %s\n", eval.Severity())
	if eval.Exception != nil {
		fmt.Fprintf(out, "message:  %s\n", eval.Exception.Message)
	}
	return nil
}
