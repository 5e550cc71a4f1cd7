package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pborges/galc"
	"github.com/pborges/galc/internal/cupl"
	"github.com/pborges/galc/internal/dnf"
	"github.com/pborges/galc/internal/equiv"
	"github.com/pborges/galc/internal/gal"
	"github.com/pborges/galc/internal/jed"
	"github.com/pborges/galc/internal/lang"
	"github.com/pborges/galc/internal/tabledata"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// usageError makes main print usage and exit 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(os.Stderr, "error:", ue.msg)
			fmt.Fprint(os.Stderr, root.UsageString())
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "galc",
		Short:         "Compile truth tables and equations into GAL fuse maps",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			setupLogging(verbose)
		},
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringP("device", "d", "g22v10", "target device")
	root.PersistentFlags().String("device-file", "", "YAML or JSON device descriptor, overrides --device")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{msg: err.Error()}
	})

	root.AddCommand(newBuildCmd(), newAPICmd(), newDevicesCmd(), newVersionCmd())
	return root
}

func setupLogging(verbose bool) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{
		DisableColors:    !term.IsTerminal(int(os.Stderr.Fd())),
		DisableTimestamp: true,
	})
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageError{msg: fmt.Sprintf("%s expects %d argument(s), got %d", cmd.Name(), n, len(args))}
		}
		return nil
	}
}

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <source> [-o out.jed|out.json|out.pld]",
		Short: "Compile a source file into a JEDEC fuse map, truth-table JSON or CUPL",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath, _ := cmd.Flags().GetString("output")
			opts := writeOptions{}
			opts.security, _ = cmd.Flags().GetBool("security")
			opts.verify, _ = cmd.Flags().GetBool("verify")
			chip, err := deviceFromFlags(cmd)
			if err != nil {
				return err
			}
			inPath := args[0]
			if outPath == "" {
				outPath = strings.TrimSuffix(inPath, filepath.Ext(inPath)) + ".jed"
			}
			if !isOutputExt(outPath) {
				return usageError{msg: fmt.Sprintf("cannot write %s files", filepath.Ext(outPath))}
			}
			tables, err := readSource(chip, inPath)
			if err != nil {
				return err
			}
			if err := writeOutput(chip, tables, inPath, outPath, opts); err != nil {
				return err
			}
			fmt.Println("compilation successful, created", outPath)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "output file; the extension picks JEDEC (.jed), truth tables (.json) or CUPL (.pld)")
	cmd.Flags().Bool("security", false, "set the security fuse (*G1)")
	cmd.Flags().Bool("verify", true, "check the fuse map against the truth tables before writing")
	return cmd
}

func newAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api <in.json|in.jed> <out.jed|out.json|out.pld>",
		Short: "Convert between truth-table JSON, JEDEC and CUPL",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := writeOptions{}
			opts.security, _ = cmd.Flags().GetBool("security")
			opts.verify, _ = cmd.Flags().GetBool("verify")
			chip, err := deviceFromFlags(cmd)
			if err != nil {
				return err
			}
			in, out := args[0], args[1]
			if !(hasExt(in, ".json") || hasExt(in, ".jed")) || !isOutputExt(out) || strings.EqualFold(filepath.Ext(in), filepath.Ext(out)) {
				return usageError{msg: fmt.Sprintf("cannot convert %s to %s", filepath.Ext(in), filepath.Ext(out))}
			}
			var tables []dnf.TruthTable
			if hasExt(in, ".json") {
				tables, err = tabledata.ReadFile(in)
			} else {
				tables, err = readJEDTables(chip, in)
			}
			if err != nil {
				return err
			}
			if err := writeOutput(chip, tables, in, out, opts); err != nil {
				return err
			}
			fmt.Println("compilation successful, created", out)
			return nil
		},
	}
	cmd.Flags().Bool("security", false, "set the security fuse (*G1)")
	cmd.Flags().Bool("verify", true, "check the fuse map against the truth tables before writing")
	return cmd
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List built-in devices",
		Args:  exactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range gal.Devices() {
				chip, _ := gal.ParseChip(name)
				fmt.Println(deviceName(chip))
			}
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the galc version",
		Args:  exactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(galc.Version())
		},
	}
}

func hasExt(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}

func deviceFromFlags(cmd *cobra.Command) (*gal.Chip, error) {
	if path, _ := cmd.Flags().GetString("device-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		chip, err := gal.LoadChip(data)
		if err != nil {
			return nil, errors.Wrap(err, path)
		}
		return chip, nil
	}
	name, _ := cmd.Flags().GetString("device")
	return gal.ParseChip(name)
}

type writeOptions struct {
	security bool
	verify   bool
}

func isOutputExt(path string) bool {
	return hasExt(path, ".jed") || hasExt(path, ".json") || hasExt(path, ".pld")
}

func readSource(chip *gal.Chip, inPath string) ([]dnf.TruthTable, error) {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return nil, err
	}
	prog, err := lang.Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, inPath)
	}
	tables, err := prog.Tables(chip.InputCapacity())
	if err != nil {
		return nil, errors.Wrap(err, inPath)
	}
	return tables, nil
}

// writeOutput picks the output format from the extension of outPath.
func writeOutput(chip *gal.Chip, tables []dnf.TruthTable, inPath, outPath string, opts writeOptions) error {
	switch {
	case hasExt(outPath, ".json"):
		log.Debugf("writing %d tables to %s", len(tables), outPath)
		return tabledata.WriteFile(outPath, tables)
	case hasExt(outPath, ".pld"):
		return writePLD(chip, tables, outPath)
	default:
		return writeJED(chip, tables, inPath, outPath, opts)
	}
}

func writeJED(chip *gal.Chip, tables []dnf.TruthTable, inPath, outPath string, opts writeOptions) error {
	exprs, err := dnf.SynthesizeAll(tables, chip)
	if err != nil {
		return err
	}
	fuses, err := gal.AssembleAll(exprs, chip)
	if err != nil {
		return err
	}
	if opts.verify {
		if err := equiv.Fuses(tables, fuses, chip); err != nil {
			return errors.Wrap(err, "verify")
		}
	}
	jedText, err := jed.MakeJEDEC(jed.Config{
		SecurityBit: opts.security,
		Header:      headerLines(chip, inPath),
	}, chip, fuses)
	if err != nil {
		return err
	}
	log.Debugf("writing %d fuses to %s", len(fuses), outPath)
	return os.WriteFile(outPath, []byte(jedText), 0644)
}

func writePLD(chip *gal.Chip, tables []dnf.TruthTable, outPath string) error {
	text, err := cupl.Write(tables, cupl.Header{
		Name:     strings.TrimSuffix(filepath.Base(outPath), filepath.Ext(outPath)),
		PartNo:   "00",
		Revision: "01",
		Device:   deviceName(chip),
	})
	if err != nil {
		return err
	}
	log.Debugf("writing %d tables to %s", len(tables), outPath)
	return os.WriteFile(outPath, []byte(text), 0644)
}

// readJEDTables recovers one truth table per enabled output of a JEDEC file.
func readJEDTables(chip *gal.Chip, inPath string) ([]dnf.TruthTable, error) {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return nil, err
	}
	f, err := jed.Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, inPath)
	}
	if f.QF != chip.NumFuses() {
		return nil, errors.Errorf("%s: QF%d does not match %s (%d fuses)", inPath, f.QF, chip.Name(), chip.NumFuses())
	}
	exprs, err := gal.Disassemble(f.Fuses, chip)
	if err != nil {
		return nil, errors.Wrap(err, inPath)
	}
	if len(exprs) == 0 {
		return nil, errors.Wrapf(gal.ErrEmptyInput, "%s: no enabled outputs", inPath)
	}
	tables := make([]dnf.TruthTable, 0, len(exprs))
	for _, e := range exprs {
		t, err := dnf.Tabulate(e, chip)
		if err != nil {
			return nil, errors.Wrap(err, inPath)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func deviceName(chip *gal.Chip) string {
	return strings.ToLower(strings.Replace(chip.Name(), "GAL", "g", 1))
}

func headerLines(chip *gal.Chip, source string) []string {
	return []string{
		fmt.Sprintf("Created by galc %s", galc.Version()),
		fmt.Sprintf("Device          %s", strings.ToLower(strings.TrimPrefix(chip.Name(), "GAL"))),
		fmt.Sprintf("Source          %s", filepath.Base(source)),
	}
}
