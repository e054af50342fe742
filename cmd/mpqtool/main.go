// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

// mpqtool inspects and extracts MPQ archives.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suprsokr/mopaq"
)

var useMmap bool

func main() {
	root := &cobra.Command{
		Use:           "mpqtool",
		Short:         "inspect and extract MPQ archives",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&useMmap, "mmap", false, "memory-map the archive instead of using file reads")

	root.AddCommand(listCmd(), extractCmd(), infoCmd(), verifyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mpqtool:", err)
		os.Exit(1)
	}
}

func openArchive(path string) (*mopaq.Archive, error) {
	if useMmap {
		return mopaq.OpenMmap(path)
	}
	return mopaq.Open(path)
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <archive>",
		Short: "print the names recorded in the archive's listfile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openArchive(args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			names, err := a.ListFiles()
			if err != nil {
				return fmt.Errorf("list %s: %w", args[0], err)
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func extractCmd() *cobra.Command {
	var (
		outDir string
		locale uint16
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "extract <archive> [file...]",
		Short: "extract files to a directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openArchive(args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			names := args[1:]
			if all {
				if names, err = a.ListFiles(); err != nil {
					return fmt.Errorf("extract --all needs a listfile: %w", err)
				}
			}
			if len(names) == 0 {
				return fmt.Errorf("no files named; use --all to extract everything in the listfile")
			}

			for _, name := range names {
				if err := extractOne(a, name, locale, outDir); err != nil {
					if all {
						fmt.Fprintf(os.Stderr, "skipping %s: %v\n", name, err)
						continue
					}
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().Uint16Var(&locale, "locale", 0, "locale id to prefer (0 is neutral)")
	cmd.Flags().BoolVar(&all, "all", false, "extract every file in the listfile")
	return cmd
}

func extractOne(a *mopaq.Archive, name string, locale uint16, outDir string) error {
	f, err := a.OpenFileLocale(name, locale)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	data := make([]byte, f.Size())
	if _, err := f.Read(data); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	// archive paths use backslashes; lay them out as directories
	rel := filepath.FromSlash(strings.ReplaceAll(name, "\\", "/"))
	dest := filepath.Join(outDir, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("%s -> %s\n", name, dest)
	return nil
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <archive>",
		Short: "print archive header details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openArchive(args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Printf("format version: %d\n", a.Version())
			fmt.Printf("sector size:    %d\n", a.SectorSize())
			fmt.Printf("blocks:         %d\n", a.BlockCount())

			if names, err := a.ListFiles(); err == nil {
				fmt.Printf("listfile:       %d names\n", len(names))
			} else {
				fmt.Printf("listfile:       none\n")
			}
			if sig, err := a.ReadSignature(); err == nil && sig != nil {
				fmt.Printf("signature:      %d bytes (unverified)\n", len(sig.Signature))
			}
			return nil
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <archive> [file...]",
		Short: "check file checksums against the (attributes) records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openArchive(args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			names := args[1:]
			if len(names) == 0 {
				if names, err = a.ListFiles(); err != nil {
					return fmt.Errorf("verify needs file names or a listfile: %w", err)
				}
			}

			failed := 0
			for _, name := range names {
				if err := a.VerifyFile(name); err != nil {
					fmt.Printf("FAIL %s: %v\n", name, err)
					failed++
					continue
				}
				fmt.Printf("ok   %s\n", name)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed verification", failed, len(names))
			}
			return nil
		},
	}
}
