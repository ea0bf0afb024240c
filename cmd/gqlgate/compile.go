package main

import (
	"fmt"
	"os"

	"github.com/hanpama/gqlgate/internal/language"
	"github.com/hanpama/gqlgate/internal/site"
	"github.com/spf13/cobra"
)

func newCompileSDLCmd() *cobra.Command {
	var schemaFile, outFile string
	cmd := &cobra.Command{
		Use:   "compile-sdl",
		Short: "Validate GraphQL SDL and print it in normalized form",
		Long: `Validates the served schema (or the file given with --schema) and prints
it normalized. Exits non-zero on validation errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, sdl := "site.graphql", site.SDL
			if schemaFile != "" {
				data, err := os.ReadFile(schemaFile)
				if err != nil {
					return fmt.Errorf("read schema: %w", err)
				}
				name, sdl = schemaFile, string(data)
			}
			s, err := language.LoadSchema(name, sdl)
			if err != nil {
				return fmt.Errorf("load schema: %w", err)
			}
			out := language.FormatSchema(s)
			if outFile == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), out)
				return err
			}
			return os.WriteFile(outFile, []byte(out), 0644)
		},
	}
	cmd.Flags().StringVar(&schemaFile, "schema", "", "SDL file to compile (default: the served schema)")
	cmd.Flags().StringVar(&outFile, "out", "", "write compiled SDL to file (default: stdout)")
	return cmd
}
