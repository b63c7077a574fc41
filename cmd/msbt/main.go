package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/msbuild-community/msbuild-dev-tools/internal/config"
	"github.com/msbuild-community/msbuild-dev-tools/internal/evaluator"
	"github.com/msbuild-community/msbuild-dev-tools/internal/formatter"
	"github.com/msbuild-community/msbuild-dev-tools/internal/logger"
	"github.com/msbuild-community/msbuild-dev-tools/internal/lsp"
	"github.com/msbuild-community/msbuild-dev-tools/internal/model"
	"github.com/msbuild-community/msbuild-dev-tools/internal/parser"
	"github.com/msbuild-community/msbuild-dev-tools/internal/preprocess"
	"github.com/msbuild-community/msbuild-dev-tools/internal/schema"
	"github.com/msbuild-community/msbuild-dev-tools/internal/validator"
	"github.com/msbuild-community/msbuild-dev-tools/internal/xml"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "msbt",
		Short:         "Editor tooling for MSBuild project files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var logLevel string
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if logLevel != "" {
			logger.SetLevel(logLevel)
		}
	}

	root.AddCommand(lspCmd(), checkCmd(), exprCmd(), fmtCmd(), ppCmd(), initCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func lspCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Run the language server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return lsp.NewServer(os.Stdin, os.Stdout).Run()
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <files...>",
		Short: "Validate project files and print diagnostics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, _ := os.Getwd()
			cfg, err := config.Load(cwd)
			if err != nil {
				return err
			}
			sch := schema.LoadFullSchema(cwd)

			errors := 0
			total := 0
			for _, file := range args {
				diags, err := checkFile(file, cfg, sch)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", file, err)
					errors++
					continue
				}
				content, _ := os.ReadFile(file)
				doc := xml.Parse(string(content))
				for _, d := range diags {
					pos := doc.PositionAt(d.Range.Start)
					fmt.Printf("%s:%d:%d: %s: %s\n",
						file, pos.Line+1, pos.Character+1, levelName(d.Level), d.Message)
					total++
					if d.Level == validator.LevelError {
						errors++
					}
				}
			}

			if total > 0 {
				fmt.Printf("\nFound %d issue(s).\n", total)
			} else {
				fmt.Println("No issues found.")
			}
			if errors > 0 {
				os.Exit(1)
			}
			return nil
		},
	}
}

func checkFile(path string, cfg *config.Config, sch *schema.Schema) ([]validator.Diagnostic, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := xml.Parse(string(content))
	local := &evaluator.Local{BaseDir: filepath.Dir(path)}
	eval, err := local.Evaluate(context.Background(), doc)
	if err != nil {
		eval = nil
	}
	snap := model.Build(eval, doc)
	v := validator.NewValidator(snap, sch).Disable(cfg.Validator.Disable)
	return v.ValidateDocument(context.Background()), nil
}

func levelName(l validator.DiagnosticLevel) string {
	switch l {
	case validator.LevelError:
		return "error"
	case validator.LevelWarning:
		return "warning"
	}
	return "info"
}

func exprCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expr <expression>",
		Short: "Parse an expression and print its syntax tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			root, err := parser.Parse(input)
			if err != nil {
				return err
			}
			if root.Child == nil {
				fmt.Println("(empty)")
				return nil
			}
			dumpNode(input, root.Child, 0)
			return nil
		},
	}
}

func dumpNode(input string, n parser.Node, depth int) {
	span := n.Span()
	label := strings.TrimPrefix(fmt.Sprintf("%T", n), "*parser.")
	fmt.Printf("%s%s [%d:%d) %q\n",
		strings.Repeat("  ", depth), label, span.Start, span.End(), span.Text(input))
	for _, c := range n.Children() {
		dumpNode(input, c, depth+1)
	}
}

func fmtCmd() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "fmt <files...>",
		Short: "Normalize the indentation of project files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, file := range args {
				content, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				formatted := formatter.Format(string(content))
				if !write {
					fmt.Print(formatted)
					continue
				}
				if formatted == string(content) {
					continue
				}
				if err := os.WriteFile(file, []byte(formatted), 0o644); err != nil {
					return err
				}
				fmt.Printf("Formatted %s\n", file)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "rewrite files in place")
	return cmd
}

func ppCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pp <project>",
		Short: "Print the project with all resolvable imports inlined",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return preprocess.New().Run(args[0], os.Stdout)
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write starter settings and schema sidecar files",
		RunE: func(cmd *cobra.Command, args []string) error {
			files := map[string]string{
				config.FileName: `log_level = "info"

[index]
cache_path = ".msbt/index.db"

[validator]
disable = []
`,
				schema.CueSidecarName: `// Project-specific property constraints checked by msbt.
#Properties: {
	// Configuration: "Debug" | "Release"
}
`,
			}
			for path, content := range files {
				if _, err := os.Stat(path); err == nil {
					logger.Warnf("%s already exists, skipping", path)
					continue
				}
				if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
					return err
				}
				fmt.Printf("Created %s\n", path)
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("msbt %s\n", version)
		},
	}
}
