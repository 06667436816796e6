package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DonMrMango/transcriptor/internal/pdf"
)

func newPDFCmd(app *appState) *cobra.Command {
	var dpi int

	cmd := &cobra.Command{
		Use:   "pdf",
		Short: "Merge, split and convert PDF files",
	}
	cmd.PersistentFlags().IntVar(&dpi, "dpi", 150, "Resolution for to-images")

	tool := func() *pdf.Tool {
		return pdf.New(app.log(), pdf.WithDPI(dpi))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "count <file.pdf>",
		Short: "Print the number of pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := tool().PageCount(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	})

	var mergeOutput string
	merge := &cobra.Command{
		Use:   "merge <a.pdf> <b.pdf> [more.pdf...]",
		Short: "Combine PDF files in the given order",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tool().Merge(args, mergeOutput); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), mergeOutput)
			return nil
		},
	}
	merge.Flags().StringVarP(&mergeOutput, "output", "o", "combined.pdf", "Output PDF path")
	cmd.AddCommand(merge)

	var splitDir string
	split := &cobra.Command{
		Use:   "split <file.pdf> <ranges>",
		Short: "Write one PDF per range, e.g. \"1-3, 5, 8-10\"",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := tool().SplitGroups(args[0], args[1], outputDir(splitDir, args[0]))
			if err != nil {
				return err
			}
			printFiles(cmd.OutOrStdout(), files)
			return nil
		},
	}
	split.Flags().StringVarP(&splitDir, "dir", "d", "", "Output directory (defaults to the input's directory)")
	cmd.AddCommand(split)

	var (
		fixedDir  string
		fixedSize int
	)
	splitFixed := &cobra.Command{
		Use:   "split-fixed <file.pdf>",
		Short: "Write one PDF per block of --size pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := tool().SplitFixed(args[0], fixedSize, outputDir(fixedDir, args[0]))
			if err != nil {
				return err
			}
			printFiles(cmd.OutOrStdout(), files)
			return nil
		},
	}
	splitFixed.Flags().IntVar(&fixedSize, "size", 1, "Pages per output file")
	splitFixed.Flags().StringVarP(&fixedDir, "dir", "d", "", "Output directory (defaults to the input's directory)")
	cmd.AddCommand(splitFixed)

	var (
		extractOutput   string
		extractDir      string
		extractAll      bool
		extractSeparate bool
	)
	extract := &cobra.Command{
		Use:   "extract <file.pdf> [pages]",
		Short: "Extract selected pages into one PDF, or one PDF per page",
		Long: "Extract selected pages, e.g. \"1, 3, 5-7\". The pages go into a single PDF unless\n" +
			"--separate is set. --all writes every page to its own file.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			t := tool()

			if extractAll {
				files, err := t.ExtractAll(input, outputDir(extractDir, input))
				if err != nil {
					return err
				}
				printFiles(cmd.OutOrStdout(), files)
				return nil
			}

			if len(args) < 2 {
				return errors.New("a page selection is required unless --all is set")
			}
			if extractSeparate {
				files, err := t.ExtractPages(input, args[1], outputDir(extractDir, input))
				if err != nil {
					return err
				}
				printFiles(cmd.OutOrStdout(), files)
				return nil
			}

			output := extractOutput
			if output == "" {
				output = siblingPath(input, "_selection.pdf")
			}
			if err := t.ExtractSelection(input, args[1], output); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	extract.Flags().StringVarP(&extractOutput, "output", "o", "", "Output PDF path for a single-file extraction")
	extract.Flags().StringVarP(&extractDir, "dir", "d", "", "Output directory for --separate and --all")
	extract.Flags().BoolVar(&extractAll, "all", false, "Write every page to its own PDF")
	extract.Flags().BoolVar(&extractSeparate, "separate", false, "Write each selected page to its own PDF")
	extract.MarkFlagsMutuallyExclusive("all", "separate")
	cmd.AddCommand(extract)

	var imagesOutput string
	fromImages := &cobra.Command{
		Use:   "from-images <image> [image...]",
		Short: "Build a PDF with one page per image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tool().ImagesToPDF(args, imagesOutput); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), imagesOutput)
			return nil
		},
	}
	fromImages.Flags().StringVarP(&imagesOutput, "output", "o", "images.pdf", "Output PDF path")
	cmd.AddCommand(fromImages)

	var toImagesDir string
	toImages := &cobra.Command{
		Use:   "to-images <file.pdf>",
		Short: "Render every page as a PNG (requires pdftoppm)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stop := startSpinner(app.progressEnabled(), "Rendering pages")
			files, err := tool().PDFToImages(cmd.Context(), args[0], outputDir(toImagesDir, args[0]))
			stop()
			if err != nil {
				return err
			}
			printFiles(cmd.OutOrStdout(), files)
			return nil
		},
	}
	toImages.Flags().StringVarP(&toImagesDir, "dir", "d", "", "Output directory (defaults to the input's directory)")
	cmd.AddCommand(toImages)

	return cmd
}

func outputDir(flag, input string) string {
	if strings.TrimSpace(flag) != "" {
		return flag
	}
	return filepath.Dir(input)
}

func siblingPath(input, suffix string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + suffix
}

func printFiles(out io.Writer, files []string) {
	for _, file := range files {
		fmt.Fprintln(out, file)
	}
}
