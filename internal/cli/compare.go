package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ABNmmd/PFE-FSA/internal/app"
	"github.com/ABNmmd/PFE-FSA/internal/compare"
	"github.com/ABNmmd/PFE-FSA/internal/document"
	"github.com/ABNmmd/PFE-FSA/internal/extract"
	"github.com/ABNmmd/PFE-FSA/internal/similarity"
)

func newCompareCmd(o *options) *cobra.Command {
	var (
		method    string
		threshold float64
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "compare <file1> <file2>",
		Short: "Compare two documents",
		Long: `Compare two documents chunk by chunk and list the passages whose
similarity reaches the threshold.

Examples:
  plagctl compare thesis.docx source.txt
  plagctl compare a.md b.md --method embeddings --threshold 0.8
  plagctl compare a.txt b.txt --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			texts := make([]string, 2)
			for i, path := range args {
				_, content, err := readDocument(path)
				if err != nil {
					return err
				}
				text, err := extract.Extract(content, document.TypeFromName(path))
				if err != nil {
					printf(cmd.ErrOrStderr(), "warning: %s: %v\n", filepath.Base(path), err)
				}
				texts[i] = text
			}

			cmp, closeFn, err := comparator(ctx, o, method)
			if err != nil {
				return err
			}
			defer closeFn()

			var th *float64
			if cmd.Flags().Changed("threshold") {
				th = compare.Float(threshold)
			}
			res := cmp.Compare(ctx, texts[0], texts[1], th)
			if o.jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printComparison(cmd, res, limit)
			return nil
		},
	}
	cmd.Flags().StringVarP(&method, "method", "m", "", "similarity method: tfidf or embeddings (default from config)")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "match threshold in (0,1]")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "max matches to print")
	return cmd
}

// comparator builds the comparator for method. Lexical comparisons need no
// external services; embeddings go through the configured provider and cache.
func comparator(ctx context.Context, o *options, method string) (*compare.Comparator, func() error, error) {
	if method == "" {
		method = o.cfg.Detection.Method
	}
	switch method {
	case similarity.MethodTFIDF:
		cmp, err := compare.NewFromConfig(o.cfg, method, nil, nil)
		return cmp, func() error { return nil }, err
	case similarity.MethodEmbeddings:
		deps, err := app.Open(ctx, o.cfg, nil, true)
		if err != nil {
			return nil, nil, err
		}
		cmp, err := compare.NewFromConfig(o.cfg, method, deps.Encoder, nil)
		if err != nil {
			deps.Close()
			return nil, nil, err
		}
		return cmp, deps.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown method %q: use tfidf or embeddings", method)
	}
}

func printComparison(cmd *cobra.Command, res compare.Result, limit int) {
	w := cmd.OutOrStdout()
	printf(w, "Similarity: %.1f%%  (doc1 %.3f, doc2 %.3f, method %s)\n",
		res.Scores.Percentage, res.Scores.Doc1Score, res.Scores.Doc2Score, res.Stats.Method)
	printf(w, "Chunks: %d vs %d, threshold %.2f\n", res.Stats.Doc1Chunks, res.Stats.Doc2Chunks, res.Stats.Threshold)
	if len(res.Matches) == 0 {
		printf(w, "No matching passages.\n")
		return
	}
	printf(w, "\n%d matching passages:\n", len(res.Matches))
	for i, m := range res.Matches {
		if i == limit {
			printf(w, "... %d more\n", len(res.Matches)-limit)
			break
		}
		printf(w, "\n%d. %.0f%%  [#%d ↔ #%d]\n", i+1, m.Similarity*100, m.Position1, m.Position2)
		printf(w, "   < %s\n", truncate(m.Text1, 160))
		printf(w, "   > %s\n", truncate(m.Text2, 160))
	}
}
