package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ABNmmd/PFE-FSA/internal/app"
	"github.com/ABNmmd/PFE-FSA/internal/checker"
	"github.com/ABNmmd/PFE-FSA/internal/compare"
	"github.com/ABNmmd/PFE-FSA/internal/document"
	"github.com/ABNmmd/PFE-FSA/internal/report"
	"github.com/ABNmmd/PFE-FSA/internal/sources"
)

// cliUser owns every document loaded by the check command.
const cliUser = "plagctl"

func newCheckCmd(o *options) *cobra.Command {
	var (
		against     []string
		srcs        []string
		sensitivity string
		method      string
	)
	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Run a multi-source plagiarism check",
		Long: `Check a document against local files (the user_documents source) and,
when enabled in the config, web search and academic papers.

--against accepts files and directories; directories are read one level deep.

Examples:
  plagctl check thesis.docx --against ./submissions
  plagctl check essay.txt --sources user_documents,academic --sensitivity high`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := app.Open(ctx, o.cfg, nil, true)
			if err != nil {
				return err
			}
			defer deps.Close()

			target, err := loadInto(cmd, deps.Docs, args[0])
			if err != nil {
				return err
			}
			for _, p := range against {
				if err := loadTree(cmd, deps.Docs, p); err != nil {
					return err
				}
			}

			chk, err := deps.NewChecker(ctx)
			if err != nil {
				return err
			}
			opts := report.CheckOptions{Sources: srcs, Sensitivity: sensitivity}
			if sensitivity != "" {
				opts.Threshold = compare.SensitivityThreshold(sensitivity)
			}
			rep := report.NewCheck(cliUser, target.Ref(), chk.Comparator(method).Method(), opts)
			if err := deps.Reports.Create(ctx, rep); err != nil {
				return err
			}
			runErr := chk.Run(ctx, checker.Job{
				Kind:       checker.KindCheck,
				ReportID:   rep.ID,
				UserID:     cliUser,
				DocumentID: target.ID,
				Method:     method,
				Threshold:  opts.Threshold,
				Sources:    rep.CheckOptions.Sources,
			})

			final, err := deps.Reports.Get(ctx, rep.ID)
			if err != nil {
				return err
			}
			if o.jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(final); err != nil {
					return err
				}
			} else {
				printReport(cmd, final)
			}
			return runErr
		},
	}
	cmd.Flags().StringSliceVarP(&against, "against", "a", nil, "files or directories to check against")
	cmd.Flags().StringSliceVarP(&srcs, "sources", "s", nil, "sources: user_documents, web, academic (default user_documents,web)")
	cmd.Flags().StringVar(&sensitivity, "sensitivity", "", "low, medium or high")
	cmd.Flags().StringVarP(&method, "method", "m", "", "similarity method: tfidf or embeddings")
	return cmd
}

func loadInto(cmd *cobra.Command, docs document.Store, path string) (*document.Document, error) {
	name, content, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	doc := document.New(cliUser, filepath.Base(name), content)
	if err := docs.Create(cmd.Context(), doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func loadTree(cmd *cobra.Command, docs document.Store, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if !info.IsDir() {
		_, err := loadInto(cmd, docs, path)
		return err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := loadInto(cmd, docs, filepath.Join(path, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func printReport(cmd *cobra.Command, r *report.Report) {
	w := cmd.OutOrStdout()
	printf(w, "Report %s: %s\n", r.ID, r.Status)
	if r.Error != "" {
		printf(w, "Error: %s\n", r.Error)
		return
	}
	printf(w, "Overall similarity: %.1f%%\n", r.SimilarityScore)

	names := make([]string, 0, len(r.SourceResults))
	for name := range r.SourceResults {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return sourceRank(names[i]) < sourceRank(names[j]) })
	for _, name := range names {
		res := r.SourceResults[name]
		printf(w, "\n[%s] %.1f%%, %d candidates\n", name, res.SimilarityScore*100, res.MatchesFound)
		for _, c := range res.Matches {
			label := c.Title
			if c.URL != "" {
				label += " <" + c.URL + ">"
			}
			printf(w, "  %.1f%%  %s (%d passages)\n", c.Similarity*100, label, len(c.Matches))
		}
	}
}

func sourceRank(name string) int {
	for i, n := range sources.Order {
		if n == name {
			return i
		}
	}
	return len(sources.Order)
}
