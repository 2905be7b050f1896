package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gocausal/internal/causal"
	"gocausal/internal/dsep"
	"gocausal/internal/graph"
	"gocausal/internal/modeldef"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var keepArcs bool

	rootCmd := &cobra.Command{
		Use:           "gocausal-cli",
		Short:         "Causal identification on model definition files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&keepArcs, "keep-arcs", false,
		"Keep observational arcs between variables sharing a latent (unless the file sets keep_arcs)")

	load := func(path string) (*causal.CausalModel, error) {
		def, err := modeldef.ParseFile(path)
		if err != nil {
			return nil, err
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
		return def.Build(keepArcs)
	}

	rootCmd.AddCommand(
		newImpactCmd(load),
		newIdentifyCmd(load),
		newDSepCmd(load),
		newDoorCmd(load, "backdoor"),
		newDoorCmd(load, "frontdoor"),
		newDotCmd(load),
	)
	return rootCmd
}

type loader func(path string) (*causal.CausalModel, error)

func newImpactCmd(load loader) *cobra.Command {
	var q causal.Query
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "impact [model-file]",
		Short: "Identify and compute P(on | do(doing), knowing)",
		Long: `Identify a causal effect and evaluate it on the model's observational network.

Example: gocausal-cli impact smoking.yaml --on cancer --doing smoking --value smoking=yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := load(args[0])
			if err != nil {
				return err
			}
			impact, err := causal.CausalImpact(m, q)
			if err != nil {
				return err
			}
			if asJSON {
				return writeImpactJSON(cmd.OutOrStdout(), impact)
			}
			return writeImpact(cmd.OutOrStdout(), impact)
		},
	}

	cmd.Flags().StringSliceVar(&q.On, "on", nil, "Outcome variables")
	cmd.Flags().StringSliceVar(&q.Doing, "doing", nil, "Intervention variables")
	cmd.Flags().StringSliceVar(&q.Knowing, "knowing", nil, "Observed variables")
	cmd.Flags().StringToStringVar(&q.Values, "value", nil, "Fix labels in the result, e.g. --value cancer=yes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("on")
	_ = cmd.MarkFlagRequired("doing")
	return cmd
}

func newIdentifyCmd(load loader) *cobra.Command {
	var on, doing, knowing []string
	var tree bool

	cmd := &cobra.Command{
		Use:   "identify [model-file]",
		Short: "Run the do-calculus and print the identifying formula",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := load(args[0])
			if err != nil {
				return err
			}
			formula, err := causal.DoCalculusWithObservation(m, on, doing, knowing)
			var hedge *causal.HedgeError
			if stderrors.As(err, &hedge) {
				fmt.Fprintf(cmd.OutOrStdout(), "not identifiable: %v\n", hedge)
				return nil
			}
			if err != nil {
				return err
			}
			if tree {
				fmt.Fprint(cmd.OutOrStdout(), formula.Root().Dump(""))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), formula.ToLatex())
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&on, "on", nil, "Outcome variables")
	cmd.Flags().StringSliceVar(&doing, "doing", nil, "Intervention variables")
	cmd.Flags().StringSliceVar(&knowing, "knowing", nil, "Observed variables")
	cmd.Flags().BoolVar(&tree, "tree", false, "Print the formula tree instead of LaTeX")
	_ = cmd.MarkFlagRequired("on")
	_ = cmd.MarkFlagRequired("doing")
	return cmd
}

func newDSepCmd(load loader) *cobra.Command {
	var x, y, z []string
	var observational bool

	cmd := &cobra.Command{
		Use:   "dsep [model-file]",
		Short: "Test whether X and Y are d-separated given Z",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := load(args[0])
			if err != nil {
				return err
			}
			var g graph.Directed = m
			if observational {
				g = m.ObservationalView()
			}
			sets := make([]graph.NodeSet, 3)
			for i, names := range [][]string{x, y, z} {
				if sets[i], err = m.NodeSet(names); err != nil {
					return err
				}
			}
			verdict := "not d-separated"
			if dsep.IsDSep(g, sets[0], sets[1], sets[2]) {
				verdict = "d-separated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "{%s} and {%s} are %s given {%s}\n",
				strings.Join(x, ","), strings.Join(y, ","), verdict, strings.Join(z, ","))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&x, "x", "x", nil, "First set")
	cmd.Flags().StringSliceVarP(&y, "y", "y", nil, "Second set")
	cmd.Flags().StringSliceVarP(&z, "z", "z", nil, "Conditioning set")
	cmd.Flags().BoolVar(&observational, "observational", false, "Use the observational graph instead of the causal graph")
	_ = cmd.MarkFlagRequired("x")
	_ = cmd.MarkFlagRequired("y")
	return cmd
}

func newDoorCmd(load loader, kind string) *cobra.Command {
	return &cobra.Command{
		Use:   kind + " [model-file] [cause] [effect]",
		Short: "Find the first " + kind + " adjustment set from cause to effect",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := load(args[0])
			if err != nil {
				return err
			}
			find := m.BackDoor
			if kind == "frontdoor" {
				find = m.FrontDoor
			}
			z, found, err := find(args[1], args[2])
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintf(cmd.OutOrStdout(), "no %s set from %s to %s\n", kind, args[1], args[2])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s {%s}\n", kind, strings.Join(z, ","))
			return nil
		},
	}
}

func newDotCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "dot [model-file]",
		Short: "Print the causal graph in Graphviz dot syntax",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), m.Dot())
			return nil
		},
	}
}

func writeImpact(w io.Writer, impact *causal.Impact) error {
	fmt.Fprintln(w, impact.Explanation)
	if impact.Formula == nil {
		return nil
	}
	fmt.Fprintln(w, impact.Formula.ToLatex())
	fmt.Fprint(w, impact.Result.String())
	return nil
}

func writeImpactJSON(w io.Writer, impact *causal.Impact) error {
	out := struct {
		Explanation string    `json:"explanation"`
		Latex       string    `json:"latex,omitempty"`
		Variables   []string  `json:"variables,omitempty"`
		Values      []float64 `json:"values,omitempty"`
	}{Explanation: impact.Explanation}
	if impact.Formula != nil {
		out.Latex = impact.Formula.ToLatex()
		out.Variables = impact.Result.Names()
		out.Values = impact.Result.Values()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
